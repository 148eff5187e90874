// Package mailbox supplies bank notification messages one at a time, either
// from the Gmail API or from an offline directory of saved messages.
package mailbox

import (
	"context"
	"errors"

	"github.com/hyperifyio/bankmail/internal/decode"
)

// ErrRateLimited marks a request the provider refused because of quota or
// rate limits.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrNotFound is returned by Get for an unknown message ID.
var ErrNotFound = errors.New("message not found")

// Message is one retrieved message. Body is set when the source provides the
// structured part tree; Text is set when only a textual rendering exists.
type Message struct {
	ID   string       `json:"id"`
	Text string       `json:"text,omitempty"`
	Body *decode.Part `json:"body,omitempty"`
}

// Page is one page of message IDs.
type Page struct {
	IDs           []string
	NextPageToken string
}

// Source is a paginated message provider.
type Source interface {
	List(ctx context.Context, pageToken string) (Page, error)
	Get(ctx context.Context, id string) (Message, error)
	Name() string
}
