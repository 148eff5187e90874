package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperifyio/bankmail/internal/app"
	"github.com/hyperifyio/bankmail/internal/mailbox"
)

// Smoke test: run against a message directory writes the CSV dataset.
func TestRun_FileSource_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	msgs := filepath.Join(dir, "msgs")
	if err := os.MkdirAll(msgs, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	html := "<p>Date</p><p>2024-01-01</p><p>Amount</p><p>42.50</p>"
	text := fmt.Sprintf("{'payload': {'body': {'data': '%s'}}}", base64.URLEncoding.EncodeToString([]byte(html)))
	if err := os.WriteFile(filepath.Join(msgs, "0001.txt"), []byte(text), 0o644); err != nil {
		t.Fatalf("write message: %v", err)
	}
	cfg := app.DefaultConfig()
	cfg.Fields = []string{"Date", "Amount"}
	cfg.SourceDir = msgs
	cfg.OutputPath = filepath.Join(dir, "DATA.csv")
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.CacheDir = ""

	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run error: %v", err)
	}
	b, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got, want := string(b), "Date,Amount\n2024-01-01,42.50\n"; got != want {
		t.Fatalf("csv=%q, want %q", got, want)
	}
}

func TestRun_NoFields_Error(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.SourceDir = t.TempDir()
	if err := run(context.Background(), cfg); !errors.Is(err, app.ErrNoFields) {
		t.Fatalf("expected ErrNoFields, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("stopped after message %q: %w", "m1", mailbox.ErrRateLimited), exitRateLimited},
		{errors.New("boom"), exitFailure},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Fatalf("exitCode(%v)=%d, want %d", c.err, got, c.want)
		}
	}
}

func TestLoadLayers_Precedence(t *testing.T) {
	t.Setenv("BANKMAIL_OUTPUT", "")
	t.Setenv("BANKMAIL_QUERY", "")
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("BANKMAIL_OUTPUT=env.csv\nBANKMAIL_QUERY=from:env\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	cfgPath := filepath.Join(dir, "bankmail.yaml")
	if err := os.WriteFile(cfgPath, []byte("fields: [Date]\noutput: file.csv\ngmail:\n  query: from:file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := app.DefaultConfig()
	cfg.Query = "from:flag"
	if err := loadLayers(&cfg, cfgPath, []string{envPath}, map[string]bool{"query": true}); err != nil {
		t.Fatalf("loadLayers: %v", err)
	}
	if cfg.OutputPath != "env.csv" {
		t.Fatalf("env should beat file: %q", cfg.OutputPath)
	}
	if cfg.Query != "from:flag" {
		t.Fatalf("flag should beat env: %q", cfg.Query)
	}
	if len(cfg.Fields) != 1 || cfg.Fields[0] != "Date" {
		t.Fatalf("fields from file: %v", cfg.Fields)
	}
}
