// Package state remembers which messages earlier runs already turned into
// rows, so a rerun appends only new transactions.
package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileName = "processed.jsonl"

// Snapshot summarizes the tracker.
type Snapshot struct {
	Processed     int
	LastProcessed string
}

type record struct {
	MessageID   string    `json:"message_id"`
	Row         bool      `json:"row"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Tracker persists handled message IDs as JSON lines in <dir>/processed.jsonl.
// It is not safe for concurrent use.
type Tracker struct {
	path      string
	processed map[string]struct{}
	last      string
	file      *os.File
	writer    *bufio.Writer
}

// Open loads the tracker file from dir, creating dir when needed.
func Open(dir string) (*Tracker, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	t := &Tracker{
		path:      filepath.Join(dir, fileName),
		processed: make(map[string]struct{}),
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open state file for append: %w", err)
	}
	t.file = f
	t.writer = bufio.NewWriter(f)
	return t, nil
}

func (t *Tracker) load() error {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return fmt.Errorf("parse state file line %d: %w", line, err)
		}
		if rec.MessageID == "" {
			continue
		}
		t.processed[rec.MessageID] = struct{}{}
		t.last = rec.MessageID
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read state file: %w", err)
	}
	return nil
}

// AlreadyProcessed reports whether id was handled by this or an earlier run.
func (t *Tracker) AlreadyProcessed(id string) bool {
	_, ok := t.processed[id]
	return ok
}

// MarkProcessed records id. row tells whether the message produced a row.
// The record is flushed immediately so an interrupted run loses nothing.
func (t *Tracker) MarkProcessed(id string, row bool) error {
	if id == "" {
		return nil
	}
	b, err := json.Marshal(record{MessageID: id, Row: row, ProcessedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if _, err := t.writer.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("flush state: %w", err)
	}
	t.processed[id] = struct{}{}
	t.last = id
	return nil
}

// LastProcessed returns the most recently recorded message ID.
func (t *Tracker) LastProcessed() string { return t.last }

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{Processed: len(t.processed), LastProcessed: t.last}
}

// Close flushes and closes the state file.
func (t *Tracker) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	ferr := t.writer.Flush()
	cerr := t.file.Close()
	t.file = nil
	if ferr != nil {
		return ferr
	}
	return cerr
}
