package mailbox

import (
	"context"
	"testing"

	"github.com/hyperifyio/bankmail/internal/cache"
	"github.com/hyperifyio/bankmail/internal/decode"
)

type countingSource struct {
	gets int
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) List(context.Context, string) (Page, error) {
	return Page{IDs: []string{"x"}}, nil
}

func (c *countingSource) Get(_ context.Context, id string) (Message, error) {
	c.gets++
	return Message{ID: id, Body: &decode.Part{MimeType: "text/html", Data: "aGk="}}, nil
}

func TestCached_ServesSecondGetFromDisk(t *testing.T) {
	inner := &countingSource{}
	src := &Cached{Source: inner, Cache: &cache.MessageCache{Dir: t.TempDir()}}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m, err := src.Get(ctx, "x")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if m.Body == nil || m.Body.Data != "aGk=" {
			t.Fatalf("get %d: unexpected message %+v", i, m)
		}
	}
	if inner.gets != 1 {
		t.Fatalf("expected 1 upstream fetch, got %d", inner.gets)
	}
	if src.Name() != "counting" {
		t.Fatalf("name should pass through")
	}
	page, err := src.List(ctx, "")
	if err != nil || len(page.IDs) != 1 {
		t.Fatalf("list should pass through: %+v %v", page, err)
	}
}
