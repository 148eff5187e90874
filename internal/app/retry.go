package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/hyperifyio/bankmail/internal/mailbox"
)

// withRateLimitRetry runs fn and, when the source reports rate limiting,
// waits RateLimitBackoff and tries again up to RateLimitRetries times. Any
// other error is returned at once.
func (a *App) withRateLimitRetry(ctx context.Context, fn func(context.Context) error) error {
	if a.cfg.RateLimitRetries <= 0 {
		return fn(ctx)
	}
	backoff := a.cfg.RateLimitBackoff
	if backoff <= 0 {
		backoff = DefaultRateLimitBackoff
	}
	b := retry.WithMaxRetries(uint64(a.cfg.RateLimitRetries), retry.NewConstant(backoff))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && mailbox.IsRateLimited(err) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("rate limited")
			return retry.RetryableError(err)
		}
		return err
	})
}
