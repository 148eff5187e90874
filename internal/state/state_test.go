package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTracker_PersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	tr, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if tr.AlreadyProcessed("a") {
		t.Fatalf("fresh tracker should be empty")
	}
	if err := tr.MarkProcessed("a", true); err != nil {
		t.Fatalf("mark a: %v", err)
	}
	if err := tr.MarkProcessed("b", false); err != nil {
		t.Fatalf("mark b: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	if !again.AlreadyProcessed("a") || !again.AlreadyProcessed("b") {
		t.Fatalf("expected both IDs to survive a restart")
	}
	snap := again.Snapshot()
	if snap.Processed != 2 || snap.LastProcessed != "b" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestTracker_EmptyIDIgnored(t *testing.T) {
	tr, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tr.Close()
	if err := tr.MarkProcessed("", true); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if tr.Snapshot().Processed != 0 {
		t.Fatalf("empty id should not be recorded")
	}
}

func TestOpen_CorruptLine(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte("{not json}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpen_EmptyDir(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatalf("expected error")
	}
}
