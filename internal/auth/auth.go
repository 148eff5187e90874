// Package auth obtains and persists the OAuth token used to read the mailbox.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ConfigFromFile reads an OAuth client definition (credentials.json as
// downloaded from the Google Cloud console).
func ConfigFromFile(path string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return cfg, nil
}

// TokenStore keeps the token as JSON in a single file readable only by the
// owner.
type TokenStore struct {
	Path string
}

// Load returns the stored token. A missing file yields an error matching
// os.ErrNotExist.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tok, nil
}

// Save writes tok atomically.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return os.Rename(tmp, s.Path)
}

// Authorizer runs an interactive consent flow and returns a fresh token.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// TokenSource loads the stored token, or runs authz when there is none or it
// can no longer be refreshed. Refreshed tokens are written back to store.
func TokenSource(ctx context.Context, cfg *oauth2.Config, store *TokenStore, authz Authorizer) (oauth2.TokenSource, error) {
	tok, err := store.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", store.Path).Msg("token file unreadable; authorizing again")
	}
	if tok != nil && !tok.Valid() && tok.RefreshToken == "" {
		log.Info().Msg("stored token expired and has no refresh token")
		tok = nil
	}
	if tok == nil {
		if authz == nil {
			return nil, errors.New("no stored token and no authorizer configured")
		}
		tok, err = authz.Authorize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("authorize: %w", err)
		}
		if err := store.Save(tok); err != nil {
			return nil, fmt.Errorf("save token: %w", err)
		}
		log.Info().Str("path", store.Path).Msg("saved new token")
	}
	return &persistingSource{base: cfg.TokenSource(ctx, tok), store: store, last: tok.AccessToken}, nil
}

type persistingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store *TokenStore
	last  string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.store.Save(tok); err != nil {
			log.Warn().Err(err).Msg("could not persist refreshed token")
		} else {
			log.Debug().Msg("persisted refreshed token")
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
