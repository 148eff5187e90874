package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/bankmail/internal/app"
	"github.com/hyperifyio/bankmail/internal/mailbox"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitRateLimited = 2
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		configPath  string
		envFiles    string
		showVersion bool
		fields      string
		labels      string
		cfg         = app.DefaultConfig()
	)

	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load before reading BANKMAIL_* variables")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.StringVar(&fields, "fields", "", "Comma-separated field labels; also the CSV header, in order")
	flag.StringVar(&cfg.CredentialsPath, "credentials", cfg.CredentialsPath, "OAuth client credentials JSON from Google Cloud")
	flag.StringVar(&cfg.TokenPath, "token", cfg.TokenPath, "Where the authorized user token is stored")
	flag.StringVar(&cfg.UserID, "user", cfg.UserID, "Gmail user ID")
	flag.StringVar(&labels, "labels", "", "Comma-separated Gmail label IDs to list")
	flag.StringVar(&cfg.Query, "query", "", "Gmail search query, e.g. 'from:alerts@bank.example'")
	flag.Int64Var(&cfg.PageSize, "page-size", cfg.PageSize, "Messages per list page (max 500)")
	flag.IntVar(&cfg.MaxMessages, "max-messages", 0, "Stop after handling this many messages; 0 means no cap")
	flag.StringVar(&cfg.SourceDir, "source.dir", "", "Read *.json/*.txt messages from this directory instead of Gmail")
	flag.StringVar(&cfg.TrailingLabel, "trailing-label", cfg.TrailingLabel, "What to do with a label in the last paragraph: skip or fail")
	flag.BoolVar(&cfg.AlignColumns, "align", false, "Place values under their label's column instead of document order")
	flag.BoolVar(&cfg.Strict, "strict", false, "Abort on the first message that cannot be decoded or extracted")
	flag.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "CSV dataset to append to")
	flag.StringVar(&cfg.OutputPDFPath, "output.pdf", "", "Also render the dataset as a PDF table at this path")
	flag.StringVar(&cfg.StateDir, "state.dir", cfg.StateDir, "Directory holding the processed message log")
	flag.StringVar(&cfg.CacheDir, "cache.dir", cfg.CacheDir, "Message cache directory; empty disables caching")
	flag.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this (e.g. 168h); 0 disables")
	flag.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear cache directory before run")
	flag.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	flag.IntVar(&cfg.RateLimitRetries, "rate-limit.retries", cfg.RateLimitRetries, "Retries after a rate limit response before stopping")
	flag.DurationVar(&cfg.RateLimitBackoff, "rate-limit.backoff", cfg.RateLimitBackoff, "Wait before retrying a rate limited call")
	flag.IntVar(&cfg.ProgressEvery, "progress", cfg.ProgressEvery, "Log progress every N messages; 0 disables")
	flag.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	flag.Parse()

	if showVersion {
		fmt.Println(app.VersionString())
		return
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if s := strings.TrimSpace(fields); s != "" {
		cfg.Fields = splitComma(s)
	}
	if s := strings.TrimSpace(labels); s != "" {
		cfg.LabelIDs = splitComma(s)
	}

	if err := loadLayers(&cfg, configPath, splitComma(envFiles), explicit); err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(exitFailure)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := run(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
	}
	stop()
	os.Exit(exitCode(err))
}

// loadLayers applies dotenv files, the config file and BANKMAIL_* variables
// on top of the parsed flags. Precedence: flags > env > file > defaults.
func loadLayers(cfg *app.Config, configPath string, envFiles []string, explicit map[string]bool) error {
	if err := app.LoadEnvFiles(envFiles...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(cfg, fc)
	}
	return app.ApplyEnvOverrides(cfg, explicit)
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	_, err = a.Run(ctx)
	return err
}

// exitCode maps a run error to the process exit status. A rate limited run
// gets its own code so wrappers can reschedule it.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, mailbox.ErrRateLimited):
		return exitRateLimited
	default:
		return exitFailure
	}
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
