package mailbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestFileSource_ListPages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"c.txt":    "{'data': 'aGk='}",
		"a.json":   `{"id":"a"}`,
		"b.txt":    "x",
		"notes.md": "ignored",
		"a.txt":    "duplicate stem",
	})
	src := &FileSource{Dir: dir, PageSize: 2}
	ctx := context.Background()
	p1, err := src.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(p1.IDs, []string{"a", "b"}) || p1.NextPageToken != "2" {
		t.Fatalf("page 1: %+v", p1)
	}
	p2, err := src.List(ctx, p1.NextPageToken)
	if err != nil {
		t.Fatalf("list 2: %v", err)
	}
	if !reflect.DeepEqual(p2.IDs, []string{"c"}) || p2.NextPageToken != "" {
		t.Fatalf("page 2: %+v", p2)
	}
	if _, err := src.List(ctx, "nope"); err == nil {
		t.Fatalf("expected invalid token error")
	}
}

func TestFileSource_Get(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.json": `{"id":"ignored","payload":{"mimeType":"text/html","body":{"data":"aGk="}}}`,
		"b.txt":  "{'payload': {'body': {'data': 'aGk='}}}",
	})
	src := &FileSource{Dir: dir}
	ctx := context.Background()

	a, err := src.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if a.ID != "a" || a.Body == nil || a.Body.Data != "aGk=" || a.Text != "" {
		t.Fatalf("unexpected json message %+v", a)
	}

	b, err := src.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get b: %v", err)
	}
	if b.Body != nil || b.Text == "" {
		t.Fatalf("unexpected text message %+v", b)
	}

	if _, err := src.Get(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := src.Get(ctx, "../etc/passwd"); err == nil {
		t.Fatalf("expected invalid id error")
	}
}
