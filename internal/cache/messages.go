package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry describes one cached message.
type Entry struct {
	Source    string    `json:"source"`
	MessageID string    `json:"message_id"`
	SavedAt   time.Time `json:"saved_at"`
}

// MessageCache stores fetched messages on disk as <key>.meta.json and
// <key>.body where key is sha256(source + "\n" + message ID). Messages are
// immutable upstream, so entries never need revalidation.
type MessageCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600
	// on files. Cached bodies contain bank notifications.
	StrictPerms bool
}

func (c *MessageCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

func (c *MessageCache) fileMode() os.FileMode {
	if c.StrictPerms {
		return 0o600
	}
	return 0o644
}

// Key builds the cache key for a message of a given source.
func Key(source, messageID string) string {
	h := sha256.Sum256([]byte(source + "\n" + messageID))
	return hex.EncodeToString(h[:])
}

func (c *MessageCache) metaPath(key string) string { return filepath.Join(c.Dir, key+".meta.json") }
func (c *MessageCache) bodyPath(key string) string { return filepath.Join(c.Dir, key+".body") }

// Load returns the cached body. The boolean is false on a miss; a miss is not
// an error. An entry without metadata counts as a miss since Save writes the
// metadata last.
func (c *MessageCache) Load(_ context.Context, source, messageID string) ([]byte, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	key := Key(source, messageID)
	if _, err := os.Stat(c.metaPath(key)); err != nil {
		return nil, false, nil
	}
	b, err := os.ReadFile(c.bodyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// LoadMeta returns entry metadata if present.
func (c *MessageCache) LoadMeta(_ context.Context, source, messageID string) (*Entry, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.metaPath(Key(source, messageID)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var e Entry
	if err := json.NewDecoder(f).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Save stores a message body. The body is written first and the metadata is
// renamed into place afterwards.
func (c *MessageCache) Save(_ context.Context, source, messageID string, body []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	key := Key(source, messageID)
	if err := os.WriteFile(c.bodyPath(key), body, c.fileMode()); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	meta := Entry{Source: source, MessageID: messageID, SavedAt: time.Now().UTC()}
	tmp := c.metaPath(key) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, c.fileMode())
	if err != nil {
		return fmt.Errorf("create meta: %w", err)
	}
	if err := json.NewEncoder(f).Encode(&meta); err != nil {
		f.Close()
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, c.metaPath(key))
}
