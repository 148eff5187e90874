package mailbox

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/bankmail/internal/cache"
)

// Cached serves Get from an on-disk cache and fills it on a miss. Listing is
// never cached since new messages keep arriving.
type Cached struct {
	Source Source
	Cache  *cache.MessageCache
}

func (c *Cached) Name() string { return c.Source.Name() }

func (c *Cached) List(ctx context.Context, pageToken string) (Page, error) {
	return c.Source.List(ctx, pageToken)
}

func (c *Cached) Get(ctx context.Context, id string) (Message, error) {
	name := c.Source.Name()
	if b, ok, err := c.Cache.Load(ctx, name, id); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("message cache read failed")
	} else if ok {
		var m Message
		if err := json.Unmarshal(b, &m); err == nil {
			log.Debug().Str("id", id).Msg("message cache hit")
			return m, nil
		}
		log.Warn().Str("id", id).Msg("message cache entry corrupt; refetching")
	}
	m, err := c.Source.Get(ctx, id)
	if err != nil {
		return Message{}, err
	}
	b, err := json.Marshal(m)
	if err == nil {
		err = c.Cache.Save(ctx, name, id, b)
	}
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("message cache write failed")
	}
	return m, nil
}
