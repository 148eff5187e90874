package mailbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hyperifyio/bankmail/internal/decode"
)

// DefaultPageSize is the list page size. The API default is 100; 500 is its
// maximum.
const DefaultPageSize int64 = 500

// Gmail lists and fetches messages through the Gmail API.
type Gmail struct {
	Service  *gmail.Service
	UserID   string
	LabelIDs []string
	Query    string
	PageSize int64
}

// NewGmailService builds a Gmail API client authorized by ts. Extra options
// come after the token source so tests can replace the transport.
func NewGmailService(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*gmail.Service, error) {
	all := make([]option.ClientOption, 0, len(opts)+1)
	if ts != nil {
		all = append(all, option.WithTokenSource(ts))
	}
	all = append(all, opts...)
	svc, err := gmail.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return svc, nil
}

func (g *Gmail) Name() string { return "gmail" }

func (g *Gmail) userID() string {
	if g.UserID == "" {
		return "me"
	}
	return g.UserID
}

func (g *Gmail) List(ctx context.Context, pageToken string) (Page, error) {
	size := g.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	call := g.Service.Users.Messages.List(g.userID()).MaxResults(size).Context(ctx)
	if len(g.LabelIDs) > 0 {
		call = call.LabelIds(g.LabelIDs...)
	}
	if g.Query != "" {
		call = call.Q(g.Query)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return Page{}, apiError("list messages", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return Page{IDs: ids, NextPageToken: resp.NextPageToken}, nil
}

func (g *Gmail) Get(ctx context.Context, id string) (Message, error) {
	m, err := g.Service.Users.Messages.Get(g.userID(), id).Format("full").Context(ctx).Do()
	if err != nil {
		return Message{}, apiError("get message "+id, err)
	}
	return fromGmail(m), nil
}

func fromGmail(m *gmail.Message) Message {
	msg := Message{ID: m.Id}
	if m.Payload != nil {
		p := fromPart(m.Payload)
		msg.Body = &p
	}
	return msg
}

func fromPart(p *gmail.MessagePart) decode.Part {
	out := decode.Part{MimeType: p.MimeType}
	if p.Body != nil {
		out.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if child != nil {
			out.Parts = append(out.Parts, fromPart(child))
		}
	}
	return out
}

func apiError(op string, err error) error {
	if IsRateLimited(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrRateLimited, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRateLimited reports whether err is a Gmail API rate limit response:
// HTTP 429, or HTTP 403 with a rate limit reason.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if apiErr.Code == http.StatusForbidden {
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded":
				return true
			}
		}
	}
	return false
}
