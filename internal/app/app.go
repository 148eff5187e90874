package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/hyperifyio/bankmail/internal/auth"
	"github.com/hyperifyio/bankmail/internal/cache"
	"github.com/hyperifyio/bankmail/internal/decode"
	"github.com/hyperifyio/bankmail/internal/extract"
	"github.com/hyperifyio/bankmail/internal/mailbox"
	"github.com/hyperifyio/bankmail/internal/output"
	"github.com/hyperifyio/bankmail/internal/state"
)

// ErrNoFields is returned when no field labels are configured.
var ErrNoFields = errors.New("no field labels configured")

// Stop reasons recorded in Summary.Stopped.
const (
	StopRateLimited = "rate_limited"
	StopMaxMessages = "max_messages"
	StopStrict      = "strict"
)

// processedLog is the resume record Run consults. *state.Tracker implements it.
type processedLog interface {
	AlreadyProcessed(id string) bool
	MarkProcessed(id string, row bool) error
	LastProcessed() string
	Snapshot() state.Snapshot
	Close() error
}

type App struct {
	cfg       Config
	src       mailbox.Source
	labels    extract.LabelSet
	ext       extract.Extractor
	openState func(dir string) (processedLog, error)
}

func openTracker(dir string) (processedLog, error) {
	t, err := state.Open(dir)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// New builds the message source described by cfg (Gmail, or a directory when
// SourceDir is set), wraps it with the message cache and returns the App.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	var src mailbox.Source
	if strings.TrimSpace(cfg.SourceDir) != "" {
		src = &mailbox.FileSource{Dir: cfg.SourceDir, PageSize: int(cfg.PageSize)}
	} else {
		g, err := newGmailSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		src = g
	}
	if cfg.CacheDir != "" {
		// Apply cache invalidation controls
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("purged", n).Dur("max_age", cfg.CacheMaxAge).Msg("cache purged")
			}
		}
		src = &mailbox.Cached{Source: src, Cache: &cache.MessageCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}}
	}
	return NewWithSource(cfg, src)
}

// NewWithSource returns an App reading from src. The cache and authorization
// settings of cfg are not used.
func NewWithSource(cfg Config, src mailbox.Source) (*App, error) {
	if src == nil {
		return nil, errors.New("nil message source")
	}
	labels := extract.NewLabelSet(cfg.Fields...)
	if labels.Len() == 0 {
		return nil, ErrNoFields
	}
	policy, err := extract.ParseTrailingPolicy(cfg.TrailingLabel)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:       cfg,
		src:       src,
		labels:    labels,
		ext:       extract.LabelExtractor{Labels: labels, Trailing: policy},
		openState: openTracker,
	}, nil
}

func newGmailSource(ctx context.Context, cfg Config) (*mailbox.Gmail, error) {
	oauthCfg, err := auth.ConfigFromFile(cfg.CredentialsPath, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, err
	}
	// Token refreshes and API calls share one tuned transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newAPIHTTPClient())
	ts, err := auth.TokenSource(ctx, oauthCfg, &auth.TokenStore{Path: cfg.TokenPath}, &auth.LoopbackAuthorizer{})
	if err != nil {
		return nil, err
	}
	svc, err := mailbox.NewGmailService(ctx, nil, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, err
	}
	return &mailbox.Gmail{
		Service:  svc,
		UserID:   cfg.UserID,
		LabelIDs: cfg.LabelIDs,
		Query:    cfg.Query,
		PageSize: cfg.PageSize,
	}, nil
}

// Run pages through the source and appends one CSV row per message that
// carries a payload with at least one configured field. Messages recorded in
// the state directory by earlier runs are skipped. On rate limiting the rows
// written so far are kept and the returned error wraps
// mailbox.ErrRateLimited and names the last processed message.
//
// A row is flushed to the CSV before its message ID is recorded in the state
// directory. If the process dies between the two writes, or the state write
// fails, the next run fetches that message again and appends its row a
// second time. A failed state write stops the run with an error naming the
// message.
func (a *App) Run(ctx context.Context) (Summary, error) {
	sum := Summary{
		Source:    a.src.Name(),
		Fields:    a.labels.Labels(),
		Output:    a.cfg.OutputPath,
		StartedAt: time.Now().UTC(),
	}
	tracker, err := a.openState(a.cfg.StateDir)
	if err != nil {
		return sum, err
	}
	defer tracker.Close()
	if snap := tracker.Snapshot(); snap.Processed > 0 {
		log.Info().Int("already_processed", snap.Processed).Str("last", snap.LastProcessed).Msg("resuming")
	}

	w, err := output.OpenCSV(a.cfg.OutputPath, a.labels, a.cfg.AlignColumns)
	if err != nil {
		return sum, err
	}
	if w.Created() {
		log.Info().Str("path", a.cfg.OutputPath).Strs("fields", sum.Fields).Msg("created dataset")
	}
	runErr := a.loop(ctx, tracker, w, &sum)
	sum.Rows = w.Rows()
	if err := w.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close csv: %w", err)
	}
	sum.LastProcessed = tracker.LastProcessed()
	sum.FinishedAt = time.Now().UTC()

	if runErr == nil && a.cfg.OutputPDFPath != "" {
		if err := writeDatasetPDF(a.cfg.OutputPath, a.cfg.OutputPDFPath); err != nil {
			runErr = fmt.Errorf("pdf export: %w", err)
		} else {
			log.Info().Str("path", a.cfg.OutputPDFPath).Msg("wrote pdf")
		}
	}
	if err := writeRunManifest(deriveManifestSidecarPath(a.cfg.OutputPath), sum); err != nil {
		log.Warn().Err(err).Msg("write run manifest")
	}

	ev := log.Info()
	if runErr != nil {
		ev = log.Warn().Err(runErr)
	}
	ev.Str("source", sum.Source).
		Int("seen", sum.Seen).
		Int("skipped", sum.Skipped).
		Int("processed", sum.Processed).
		Int("rows", sum.Rows).
		Int("failed", sum.Failed).
		Str("last_processed", sum.LastProcessed).
		Str("stopped", sum.Stopped).
		Msg("run finished")
	return sum, runErr
}

func (a *App) loop(ctx context.Context, tracker processedLog, w *output.CSVWriter, sum *Summary) error {
	pageToken := ""
	for {
		var page mailbox.Page
		err := a.withRateLimitRetry(ctx, func(ctx context.Context) error {
			var err error
			page, err = a.src.List(ctx, pageToken)
			return err
		})
		if err != nil {
			return a.stop(err, tracker, sum)
		}
		for _, id := range page.IDs {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum.Seen++
			if tracker.AlreadyProcessed(id) {
				sum.Skipped++
				continue
			}
			if a.cfg.MaxMessages > 0 && sum.Processed >= a.cfg.MaxMessages {
				sum.Stopped = StopMaxMessages
				log.Info().Int("max_messages", a.cfg.MaxMessages).Msg("message cap reached")
				return nil
			}
			var msg mailbox.Message
			err := a.withRateLimitRetry(ctx, func(ctx context.Context) error {
				var err error
				msg, err = a.src.Get(ctx, id)
				return err
			})
			if err != nil {
				return a.stop(err, tracker, sum)
			}
			wrote, err := a.handle(msg, w, sum)
			if err != nil {
				return err
			}
			if err := tracker.MarkProcessed(id, wrote); err != nil {
				return fmt.Errorf("record message %s as processed (row written: %t): %w", id, wrote, err)
			}
			sum.Processed++
			if a.cfg.ProgressEvery > 0 && sum.Processed%a.cfg.ProgressEvery == 0 {
				log.Info().Int("processed", sum.Processed).Int("rows", w.Rows()).Str("last", id).Msg("progress")
			}
		}
		if page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

// handle decodes and extracts one message and appends its row. A message the
// core rejects is logged and skipped unless Strict is set.
func (a *App) handle(msg mailbox.Message, w *output.CSVWriter, sum *Summary) (bool, error) {
	fields, found, err := a.process(msg)
	switch {
	case err != nil:
		sum.Failed++
		if a.cfg.Strict {
			sum.Stopped = StopStrict
			return false, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		log.Warn().Err(err).Str("id", msg.ID).Msg("skipping message")
		return false, nil
	case !found:
		sum.NoPayload++
		log.Debug().Str("id", msg.ID).Msg("no payload")
		return false, nil
	case len(fields) == 0:
		sum.Empty++
		log.Debug().Str("id", msg.ID).Msg("no configured fields")
		return false, nil
	}
	if err := w.WriteFields(fields); err != nil {
		return false, err
	}
	log.Debug().Str("id", msg.ID).Int("fields", len(fields)).Msg("row written")
	return true, nil
}

// process runs the decode and extract core on one message. The structured
// part tree is preferred; the textual rendering is the fallback.
func (a *App) process(msg mailbox.Message) ([]extract.Field, bool, error) {
	var (
		body []byte
		ok   bool
		err  error
	)
	if msg.Body != nil {
		body, ok, err = decode.DecodePart(*msg.Body)
	}
	if err == nil && !ok && msg.Text != "" {
		body, ok, err = decode.Decode(msg.Text)
	}
	if err != nil || !ok {
		return nil, false, err
	}
	fields, err := a.ext.Extract(body)
	return fields, true, err
}

// stop converts a source failure into the run error. Rate limiting names the
// last processed message so the operator knows where the next run resumes.
func (a *App) stop(err error, tracker processedLog, sum *Summary) error {
	if mailbox.IsRateLimited(err) {
		if !errors.Is(err, mailbox.ErrRateLimited) {
			err = fmt.Errorf("%w: %w", mailbox.ErrRateLimited, err)
		}
		sum.Stopped = StopRateLimited
		last := tracker.LastProcessed()
		log.Warn().Str("last_processed", last).Msg("rate limited; stopping")
		return fmt.Errorf("stopped after message %q: %w", last, err)
	}
	return err
}
