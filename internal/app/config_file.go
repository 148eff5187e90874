package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/bankmail/internal/extract"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Fields []string `yaml:"fields" json:"fields"`

	Gmail struct {
		Credentials string   `yaml:"credentials" json:"credentials"`
		Token       string   `yaml:"token" json:"token"`
		User        string   `yaml:"user" json:"user"`
		Labels      []string `yaml:"labels" json:"labels"`
		Query       string   `yaml:"query" json:"query"`
		PageSize    int64    `yaml:"pageSize" json:"pageSize"`
	} `yaml:"gmail" json:"gmail"`

	Source struct {
		Dir         string `yaml:"dir" json:"dir"`
		MaxMessages int    `yaml:"maxMessages" json:"maxMessages"`
	} `yaml:"source" json:"source"`

	Extract struct {
		TrailingLabel string `yaml:"trailingLabel" json:"trailingLabel"`
		Align         bool   `yaml:"align" json:"align"`
		Strict        bool   `yaml:"strict" json:"strict"`
	} `yaml:"extract" json:"extract"`

	Output    string `yaml:"output" json:"output"`
	OutputPDF string `yaml:"outputPDF" json:"outputPDF"`
	StateDir  string `yaml:"stateDir" json:"stateDir"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	RateLimit struct {
		Retries *int          `yaml:"retries" json:"retries"`
		Backoff time.Duration `yaml:"backoff" json:"backoff"`
	} `yaml:"rateLimit" json:"rateLimit"`

	ProgressEvery int  `yaml:"progressEvery" json:"progressEvery"`
	Verbose       bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc into cfg for every field that still
// holds its zero or default value, so explicit flags are preserved.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if len(cfg.Fields) == 0 && len(fc.Fields) > 0 { cfg.Fields = append([]string{}, fc.Fields...) }

	if (cfg.CredentialsPath == "" || cfg.CredentialsPath == DefaultCredentialsPath) && fc.Gmail.Credentials != "" { cfg.CredentialsPath = fc.Gmail.Credentials }
	if (cfg.TokenPath == "" || cfg.TokenPath == DefaultTokenPath) && fc.Gmail.Token != "" { cfg.TokenPath = fc.Gmail.Token }
	if (cfg.UserID == "" || cfg.UserID == DefaultUserID) && fc.Gmail.User != "" { cfg.UserID = fc.Gmail.User }
	if len(cfg.LabelIDs) == 0 && len(fc.Gmail.Labels) > 0 { cfg.LabelIDs = append([]string{}, fc.Gmail.Labels...) }
	if cfg.Query == "" && fc.Gmail.Query != "" { cfg.Query = fc.Gmail.Query }
	if (cfg.PageSize == 0 || cfg.PageSize == DefaultPageSize) && fc.Gmail.PageSize > 0 { cfg.PageSize = fc.Gmail.PageSize }

	if cfg.SourceDir == "" && fc.Source.Dir != "" { cfg.SourceDir = fc.Source.Dir }
	if cfg.MaxMessages == 0 && fc.Source.MaxMessages > 0 { cfg.MaxMessages = fc.Source.MaxMessages }

	if (cfg.TrailingLabel == "" || cfg.TrailingLabel == DefaultTrailingLabel) && fc.Extract.TrailingLabel != "" { cfg.TrailingLabel = fc.Extract.TrailingLabel }
	if !cfg.AlignColumns && fc.Extract.Align { cfg.AlignColumns = true }
	if !cfg.Strict && fc.Extract.Strict { cfg.Strict = true }

	if (cfg.OutputPath == "" || cfg.OutputPath == DefaultOutputPath) && fc.Output != "" { cfg.OutputPath = fc.Output }
	if cfg.OutputPDFPath == "" && fc.OutputPDF != "" { cfg.OutputPDFPath = fc.OutputPDF }
	if (cfg.StateDir == "" || cfg.StateDir == DefaultStateDir) && fc.StateDir != "" { cfg.StateDir = fc.StateDir }

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" { cfg.CacheDir = fc.Cache.Dir }
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 { cfg.CacheMaxAge = fc.Cache.MaxAge }
	if !cfg.CacheClear && fc.Cache.Clear { cfg.CacheClear = true }
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms { cfg.CacheStrictPerms = true }

	// Retries may legitimately be set to zero in the file to disable retrying.
	if cfg.RateLimitRetries == DefaultRateLimitRetries && fc.RateLimit.Retries != nil { cfg.RateLimitRetries = *fc.RateLimit.Retries }
	if (cfg.RateLimitBackoff == 0 || cfg.RateLimitBackoff == DefaultRateLimitBackoff) && fc.RateLimit.Backoff > 0 { cfg.RateLimitBackoff = fc.RateLimit.Backoff }

	if (cfg.ProgressEvery == 0 || cfg.ProgressEvery == DefaultProgressEvery) && fc.ProgressEvery > 0 { cfg.ProgressEvery = fc.ProgressEvery }
	if !cfg.Verbose && fc.Verbose { cfg.Verbose = true }
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if len(extract.NewLabelSet(cfg.Fields...).Labels()) == 0 {
		return ErrNoFields
	}
	if strings.TrimSpace(cfg.OutputPath) == "" {
		return errors.New("config: output path is required")
	}
	if strings.TrimSpace(cfg.StateDir) == "" {
		return errors.New("config: state dir is required")
	}
	if _, err := extract.ParseTrailingPolicy(cfg.TrailingLabel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if strings.TrimSpace(cfg.SourceDir) == "" && strings.TrimSpace(cfg.CredentialsPath) == "" {
		return errors.New("config: gmail.credentials is required unless source.dir is set")
	}
	if cfg.PageSize < 0 || cfg.MaxMessages < 0 || cfg.RateLimitRetries < 0 || cfg.ProgressEvery < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
