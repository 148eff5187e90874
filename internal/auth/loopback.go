package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// LoopbackAuthorizer runs the installed-app flow: it listens on a loopback
// port, prints the consent URL, and exchanges the code the browser is
// redirected back with.
type LoopbackAuthorizer struct {
	// Listen defaults to 127.0.0.1:0 (any free port).
	Listen string
	// Timeout bounds the wait for the browser. Zero means five minutes.
	Timeout time.Duration
	// OnURL is called with the consent URL. Defaults to logging it.
	OnURL func(authURL string)
}

func (a *LoopbackAuthorizer) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	addr := a.Listen
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	state, err := randomState()
	if err != nil {
		ln.Close()
		return nil, err
	}
	c := *cfg
	c.RedirectURL = "http://" + ln.Addr().String() + "/"

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			var res result
			switch {
			case q.Get("state") != state:
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			case q.Get("error") != "":
				res.err = fmt.Errorf("consent denied: %s", q.Get("error"))
			case q.Get("code") == "":
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			default:
				res.code = q.Get("code")
			}
			_, _ = w.Write([]byte("Authorization finished. You can close this window.\n"))
			select {
			case done <- res:
			default:
			}
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if a.OnURL != nil {
		a.OnURL(authURL)
	} else {
		log.Info().Str("url", authURL).Msg("open this URL in a browser to authorize mailbox access")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-ctx.Done():
		return nil, errors.New("timed out waiting for authorization")
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := c.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("exchange code: %w", err)
		}
		return tok, nil
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
