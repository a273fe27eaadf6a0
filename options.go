package voom

import (
	"errors"
	"log/slog"
	"time"

	"github.com/albertocavalcante/go-voom/manifest"
)

// DefaultConcurrency bounds how many repositories are processed at once.
const DefaultConcurrency = 4

// DefaultProgressInterval is the minimum spacing between progress events.
const DefaultProgressInterval = 500 * time.Millisecond

// Option configures scanners, resolvers and rewriters.
type Option func(*config) error

type config struct {
	reader           *manifest.Reader
	cache            ManifestCache
	onProgress       func(ProgressEvent)
	progressInterval time.Duration
	concurrency      int
	longSHA          bool
	anyVersion       bool

	// logger receives diagnostics. Never nil after newConfig; defaults to a
	// discarding handler so the library stays silent unless asked.
	logger *slog.Logger
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		progressInterval: DefaultProgressInterval,
		concurrency:      DefaultConcurrency,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.reader == nil {
		cfg.reader = manifest.NewReader()
	}
	if cfg.cache == nil {
		cfg.cache = NoopCache{}
	}
	return cfg, nil
}

// WithLogger sets a structured logger for diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "voom")
//	scanner, err := voom.NewScanner(repo, voom.WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

// WithManifestReader sets the manifest formats used to recognize and parse
// build descriptors. Defaults to [manifest.NewReader].
func WithManifestReader(r *manifest.Reader) Option {
	return func(c *config) error {
		c.reader = r
		return nil
	}
}

// WithCache sets a cache for manifest contents read from history.
func WithCache(cache ManifestCache) Option {
	return func(c *config) error {
		c.cache = cache
		return nil
	}
}

// WithProgress sets a callback for progress events. Events are rate limited
// to one per interval, plus a final [StageDone] event; an interval of zero
// keeps [DefaultProgressInterval]. Scans of several repositories may call
// fn from different goroutines.
func WithProgress(fn func(ProgressEvent), interval time.Duration) Option {
	return func(c *config) error {
		c.onProgress = fn
		if interval != 0 {
			c.progressInterval = interval
		}
		return nil
	}
}

// WithConcurrency bounds the number of repositories worked on in parallel.
func WithConcurrency(n int) Option {
	return func(c *config) error {
		c.concurrency = n
		return nil
	}
}

// WithLongSHA makes qualified versions carry the full commit sha.
func WithLongSHA(long bool) Option {
	return func(c *config) error {
		c.longSHA = long
		return nil
	}
}

// WithAnyVersion lets freshen move a dependency to any version, instead of
// staying within its current base version.
func WithAnyVersion(any bool) Option {
	return func(c *config) error {
		c.anyVersion = any
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *config) validate() error {
	if c.concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.progressInterval < 0 {
		return errors.New("progress interval must not be negative")
	}
	return nil
}
