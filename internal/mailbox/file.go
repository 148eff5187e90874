package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/api/gmail/v1"
)

// FileSource reads saved messages from a directory for offline runs and
// tests. Each <id>.json file holds a Gmail API message resource; each <id>.txt
// file holds a textual rendering of one. IDs are listed in lexical order.
type FileSource struct {
	Dir      string
	PageSize int
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) ids() ([]string, error) {
	if strings.TrimSpace(f.Dir) == "" {
		return nil, errors.New("file source dir is empty")
	}
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".json" && ext != ".txt" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// List pages through the directory. The page token is the offset of the next
// page.
func (f *FileSource) List(_ context.Context, pageToken string) (Page, error) {
	ids, err := f.ids()
	if err != nil {
		return Page{}, err
	}
	start := 0
	if pageToken != "" {
		start, err = strconv.Atoi(pageToken)
		if err != nil || start < 0 {
			return Page{}, fmt.Errorf("invalid page token %q", pageToken)
		}
	}
	if start > len(ids) {
		start = len(ids)
	}
	end := len(ids)
	if f.PageSize > 0 && start+f.PageSize < end {
		end = start + f.PageSize
	}
	page := Page{IDs: ids[start:end]}
	if end < len(ids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (f *FileSource) Get(_ context.Context, id string) (Message, error) {
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return Message{}, fmt.Errorf("invalid message id %q", id)
	}
	if b, err := os.ReadFile(filepath.Join(f.Dir, id+".json")); err == nil {
		var m gmail.Message
		if err := json.Unmarshal(b, &m); err != nil {
			return Message{}, fmt.Errorf("parse %s.json: %w", id, err)
		}
		msg := fromGmail(&m)
		msg.ID = id
		return msg, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Message{}, err
	}
	b, err := os.ReadFile(filepath.Join(f.Dir, id+".txt"))
	if errors.Is(err, os.ErrNotExist) {
		return Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Message{}, err
	}
	return Message{ID: id, Text: string(b)}, nil
}
