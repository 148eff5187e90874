package app

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfigFile_YAML(t *testing.T) {
	p := writeConfig(t, "bankmail.yaml", `
fields: [Date, Amount, Merchant]
gmail:
  labels: [Label_42]
  query: "from:alerts@bank.example"
  pageSize: 100
extract:
  trailingLabel: fail
  align: true
output: out/tx.csv
cache:
  maxAge: 72h
rateLimit:
  retries: 0
  backoff: 5s
`)
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	cfg := DefaultConfig()
	ApplyFileConfig(&cfg, fc)

	if !reflect.DeepEqual(cfg.Fields, []string{"Date", "Amount", "Merchant"}) {
		t.Fatalf("fields: %v", cfg.Fields)
	}
	if !reflect.DeepEqual(cfg.LabelIDs, []string{"Label_42"}) || cfg.Query != "from:alerts@bank.example" || cfg.PageSize != 100 {
		t.Fatalf("gmail settings not applied: %+v", cfg)
	}
	if cfg.TrailingLabel != "fail" || !cfg.AlignColumns {
		t.Fatalf("extract settings not applied: %+v", cfg)
	}
	if cfg.OutputPath != "out/tx.csv" || cfg.CacheMaxAge != 72*time.Hour {
		t.Fatalf("output/cache not applied: %+v", cfg)
	}
	if cfg.RateLimitRetries != 0 || cfg.RateLimitBackoff != 5*time.Second {
		t.Fatalf("rate limit not applied: retries=%d backoff=%v", cfg.RateLimitRetries, cfg.RateLimitBackoff)
	}
}

func TestApplyFileConfig_KeepsExplicitValues(t *testing.T) {
	p := writeConfig(t, "bankmail.json", `{"output":"file.csv","fields":["Date"],"stateDir":"st"}`)
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	cfg := DefaultConfig()
	cfg.OutputPath = "flag.csv"
	ApplyFileConfig(&cfg, fc)
	if cfg.OutputPath != "flag.csv" {
		t.Fatalf("explicit output overwritten: %q", cfg.OutputPath)
	}
	if cfg.StateDir != "st" {
		t.Fatalf("state dir from file not applied: %q", cfg.StateDir)
	}
}

func TestApplyEnvOverrides_Precedence(t *testing.T) {
	t.Setenv("BANKMAIL_OUTPUT", "env.csv")
	t.Setenv("BANKMAIL_FIELDS", "Date, Amount,,")
	t.Setenv("BANKMAIL_MAX_MESSAGES", "25")

	cfg := DefaultConfig()
	cfg.OutputPath = "file.csv"
	cfg.MaxMessages = 3
	// max-messages was passed on the command line.
	if err := ApplyEnvOverrides(&cfg, map[string]bool{"max-messages": true}); err != nil {
		t.Fatalf("ApplyEnvOverrides: %v", err)
	}
	if cfg.OutputPath != "env.csv" {
		t.Fatalf("env should beat file: %q", cfg.OutputPath)
	}
	if !reflect.DeepEqual(cfg.Fields, []string{"Date", "Amount"}) {
		t.Fatalf("fields: %v", cfg.Fields)
	}
	if cfg.MaxMessages != 3 {
		t.Fatalf("explicit flag should beat env: %d", cfg.MaxMessages)
	}
}

func TestApplyEnvOverrides_BadValue(t *testing.T) {
	t.Setenv("BANKMAIL_CACHE_MAX_AGE", "soon")
	cfg := DefaultConfig()
	if err := ApplyEnvOverrides(&cfg, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnvToConfig_OnlyFillsDefaults(t *testing.T) {
	t.Setenv("BANKMAIL_FIELDS", "Date")
	t.Setenv("BANKMAIL_TRAILING_LABEL", "fail")
	cfg := Config{Fields: []string{"Amount"}}
	ApplyEnvToConfig(&cfg)
	if !reflect.DeepEqual(cfg.Fields, []string{"Amount"}) {
		t.Fatalf("explicit fields replaced: %v", cfg.Fields)
	}
	if cfg.TrailingLabel != "fail" {
		t.Fatalf("trailing label: %q", cfg.TrailingLabel)
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); !errors.Is(err, ErrNoFields) {
		t.Fatalf("want ErrNoFields, got %v", err)
	}
	cfg.Fields = []string{"Date"}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cfg.TrailingLabel = "maybe"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("unknown trailing policy accepted")
	}
	cfg.TrailingLabel = "skip"
	cfg.CredentialsPath = ""
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("missing credentials accepted without source dir")
	}
	cfg.SourceDir = "msgs"
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("source dir config rejected: %v", err)
	}
}
