package app

import "time"

// Defaults shared by flag parsing and the config overlays. A field still
// holding its default may be replaced by a lower precedence source.
const (
	DefaultCredentialsPath  = "credentials.json"
	DefaultTokenPath        = "token_creds.json"
	DefaultUserID           = "me"
	DefaultPageSize         = 500
	DefaultOutputPath       = "DATA.csv"
	DefaultStateDir         = ".bankmail-state"
	DefaultCacheDir         = ".bankmail-cache"
	DefaultTrailingLabel    = "skip"
	DefaultRateLimitRetries = 1
	DefaultRateLimitBackoff = 2 * time.Second
	DefaultProgressEvery    = 15
)

// Config holds runtime configuration for the application.
type Config struct {
	// Mailbox
	CredentialsPath string
	TokenPath       string
	UserID          string
	LabelIDs        []string
	Query           string
	PageSize        int64
	// MaxMessages caps messages handled per run; zero means no cap.
	MaxMessages int
	// SourceDir switches to the offline directory source.
	SourceDir string

	// Extraction
	Fields        []string
	TrailingLabel string
	AlignColumns  bool
	// Strict aborts the run on the first message the extractor rejects.
	Strict bool

	// Output
	OutputPath    string
	OutputPDFPath string
	StateDir      string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// Rate limiting
	RateLimitRetries int
	RateLimitBackoff time.Duration

	ProgressEvery int
	Verbose       bool
}

// DefaultConfig returns a Config populated with the defaults above.
func DefaultConfig() Config {
	return Config{
		CredentialsPath:  DefaultCredentialsPath,
		TokenPath:        DefaultTokenPath,
		UserID:           DefaultUserID,
		PageSize:         DefaultPageSize,
		OutputPath:       DefaultOutputPath,
		StateDir:         DefaultStateDir,
		CacheDir:         DefaultCacheDir,
		TrailingLabel:    DefaultTrailingLabel,
		RateLimitRetries: DefaultRateLimitRetries,
		RateLimitBackoff: DefaultRateLimitBackoff,
		ProgressEvery:    DefaultProgressEvery,
	}
}
