package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envBinding ties one BANKMAIL_* variable to the flag that owns the same
// setting, so an explicitly passed flag always wins over the environment.
type envBinding struct {
	key   string
	flag  string
	apply func(cfg *Config, v string) error
	// unset reports whether cfg still holds the default for this setting.
	unset func(cfg *Config) bool
}

var envBindings = []envBinding{
	{"BANKMAIL_CREDENTIALS", "credentials",
		func(c *Config, v string) error { c.CredentialsPath = v; return nil },
		func(c *Config) bool { return c.CredentialsPath == "" || c.CredentialsPath == DefaultCredentialsPath }},
	{"BANKMAIL_TOKEN", "token",
		func(c *Config, v string) error { c.TokenPath = v; return nil },
		func(c *Config) bool { return c.TokenPath == "" || c.TokenPath == DefaultTokenPath }},
	{"BANKMAIL_USER", "user",
		func(c *Config, v string) error { c.UserID = v; return nil },
		func(c *Config) bool { return c.UserID == "" || c.UserID == DefaultUserID }},
	{"BANKMAIL_LABELS", "labels",
		func(c *Config, v string) error { c.LabelIDs = splitList(v); return nil },
		func(c *Config) bool { return len(c.LabelIDs) == 0 }},
	{"BANKMAIL_QUERY", "query",
		func(c *Config, v string) error { c.Query = v; return nil },
		func(c *Config) bool { return c.Query == "" }},
	{"BANKMAIL_FIELDS", "fields",
		func(c *Config, v string) error { c.Fields = splitList(v); return nil },
		func(c *Config) bool { return len(c.Fields) == 0 }},
	{"BANKMAIL_SOURCE_DIR", "source.dir",
		func(c *Config, v string) error { c.SourceDir = v; return nil },
		func(c *Config) bool { return c.SourceDir == "" }},
	{"BANKMAIL_MAX_MESSAGES", "max-messages",
		func(c *Config, v string) (err error) { c.MaxMessages, err = strconv.Atoi(v); return err },
		func(c *Config) bool { return c.MaxMessages == 0 }},
	{"BANKMAIL_TRAILING_LABEL", "trailing-label",
		func(c *Config, v string) error { c.TrailingLabel = v; return nil },
		func(c *Config) bool { return c.TrailingLabel == "" || c.TrailingLabel == DefaultTrailingLabel }},
	{"BANKMAIL_ALIGN", "align",
		func(c *Config, v string) (err error) { c.AlignColumns, err = strconv.ParseBool(v); return err },
		func(c *Config) bool { return !c.AlignColumns }},
	{"BANKMAIL_STRICT", "strict",
		func(c *Config, v string) (err error) { c.Strict, err = strconv.ParseBool(v); return err },
		func(c *Config) bool { return !c.Strict }},
	{"BANKMAIL_OUTPUT", "output",
		func(c *Config, v string) error { c.OutputPath = v; return nil },
		func(c *Config) bool { return c.OutputPath == "" || c.OutputPath == DefaultOutputPath }},
	{"BANKMAIL_OUTPUT_PDF", "output.pdf",
		func(c *Config, v string) error { c.OutputPDFPath = v; return nil },
		func(c *Config) bool { return c.OutputPDFPath == "" }},
	{"BANKMAIL_STATE_DIR", "state.dir",
		func(c *Config, v string) error { c.StateDir = v; return nil },
		func(c *Config) bool { return c.StateDir == "" || c.StateDir == DefaultStateDir }},
	{"BANKMAIL_CACHE_DIR", "cache.dir",
		func(c *Config, v string) error { c.CacheDir = v; return nil },
		func(c *Config) bool { return c.CacheDir == "" || c.CacheDir == DefaultCacheDir }},
	{"BANKMAIL_CACHE_MAX_AGE", "cache.maxAge",
		func(c *Config, v string) (err error) { c.CacheMaxAge, err = time.ParseDuration(v); return err },
		func(c *Config) bool { return c.CacheMaxAge == 0 }},
	{"BANKMAIL_RATE_LIMIT_BACKOFF", "rate-limit.backoff",
		func(c *Config, v string) (err error) { c.RateLimitBackoff, err = time.ParseDuration(v); return err },
		func(c *Config) bool { return c.RateLimitBackoff == 0 || c.RateLimitBackoff == DefaultRateLimitBackoff }},
	{"BANKMAIL_VERBOSE", "v",
		func(c *Config, v string) (err error) { c.Verbose, err = strconv.ParseBool(v); return err },
		func(c *Config) bool { return !c.Verbose }},
}

// ApplyEnvToConfig populates unset fields of cfg from BANKMAIL_* variables.
// Explicit cfg values take precedence over env. Unparseable values are ignored.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil { return }
	for _, b := range envBindings {
		v := strings.TrimSpace(os.Getenv(b.key))
		if v == "" || !b.unset(cfg) {
			continue
		}
		_ = b.apply(cfg, v)
	}
}

// ApplyEnvOverrides lets BANKMAIL_* variables override values that came from
// defaults or a config file. Settings whose flag name is present in explicit
// are left alone.
func ApplyEnvOverrides(cfg *Config, explicit map[string]bool) error {
	if cfg == nil { return nil }
	for _, b := range envBindings {
		if explicit[b.flag] {
			continue
		}
		v := strings.TrimSpace(os.Getenv(b.key))
		if v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("env %s: %w", b.key, err)
		}
	}
	return nil
}

// splitList splits a comma separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
