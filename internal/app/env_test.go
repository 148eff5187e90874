package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("BANKMAIL_OUTPUT", "")
	t.Setenv("BANKMAIL_QUERY", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nBANKMAIL_OUTPUT=rows.csv\nexport BANKMAIL_QUERY='from:bank subject:\"Card payment\"'\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	if got := os.Getenv("BANKMAIL_OUTPUT"); got != "rows.csv" {
		t.Fatalf("BANKMAIL_OUTPUT=%q, want rows.csv", got)
	}
	if got := os.Getenv("BANKMAIL_QUERY"); got != `from:bank subject:"Card payment"` {
		t.Fatalf("BANKMAIL_QUERY=%q", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil { t.Fatalf("write a: %v", err) }
	if err := os.WriteFile(b, []byte("K=second # trailing note\n"), 0o600); err != nil { t.Fatalf("write b: %v", err) }

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestLoadEnvFiles_ProcessEnvWins(t *testing.T) {
	t.Setenv("K", "from-shell")
	p := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(p, []byte("K=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := LoadEnvFiles(p, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "from-shell" {
		t.Fatalf("K=%q, want from-shell", got)
	}
}
