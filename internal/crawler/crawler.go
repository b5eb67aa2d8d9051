package crawler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/mailspider/internal/metrics"
)

// Crawler starts crawl sessions, one at a time.
//
// Design decision: We keep the per-run state in a Session rather than in
// the Crawler because:
//  1. The loop goroutine owns it exclusively, so no locking is needed
//  2. A stopped session can finish its last fetch while the caller already
//     holds a fresh Session handle from the next Start
//  3. Consumers cannot reach into the frontier or the visited set
type Crawler struct {
	// fetcher retrieves documents.
	fetcher Fetcher

	// logger is used for structured logging.
	logger *slog.Logger

	// metrics is optional.
	metrics *metrics.Recorder

	// maxPages limits the number of targets fetched per session.
	// 0 means unlimited.
	maxPages int

	// filter holds the optional ignore/follow path patterns.
	filter pathFilter

	// mu guards active.
	mu sync.Mutex

	// active is the session that has neither been stopped nor emitted its
	// terminal event yet.
	active *Session
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets a metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Crawler) {
		c.metrics = r
	}
}

// WithMaxPages sets the maximum number of targets fetched per session.
// Zero or a negative value means unlimited.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		if n < 0 {
			n = 0
		}
		c.maxPages = n
	}
}

// WithIgnorePatterns sets URL path glob patterns that are never crawled
// (e.g., "/logout*", "*.pdf").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.filter.ignore = patterns
	}
}

// WithFollowPatterns restricts crawling to URL paths matching at least one
// glob pattern. The seed is always fetched.
func WithFollowPatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.filter.follow = patterns
	}
}

// New creates a Crawler that fetches documents with fetcher.
func New(fetcher Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a new session from seedURL and returns without waiting for
// it. Events are delivered to sink in emission order; sink may be nil.
//
// Start fails with ErrAlreadyRunning while a previous session has not been
// stopped or emitted its terminal event, and with ErrInvalidSeed when seedURL is not an
// absolute http(s) URL. In both cases nothing is started.
//
// ctx bounds the whole session: its cancellation is treated like Stop, but
// it also aborts an in-flight fetch.
func (c *Crawler) Start(ctx context.Context, seedURL string, sink Sink) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrAlreadyRunning
	}

	seed, normalized, err := parseSeed(seedURL)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		Seed:      normalized,
		StartedAt: time.Now(),
		seed:      seed,
		fetcher:   c.fetcher,
		logger:    c.logger,
		metrics:   c.metrics,
		maxPages:  c.maxPages,
		filter:    c.filter,
		frontier:  []string{normalized},
		visited:   make(map[string]struct{}),
		emails:    make(map[string]struct{}),
		events:    newDispatcher(sink),
		release:   c.release,
	}
	c.active = s

	go s.run(ctx)

	return s, nil
}

// release emits the terminal event of s and frees the Crawler in one
// critical section, so a consumer reacting to the terminal event can Start
// again immediately.
func (c *Crawler) release(s *Session, terminal Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s.events.emit(terminal)
	if c.active == s {
		c.active = nil
	}
}

// Stop requests cancellation of the active session, if any, and frees the
// Crawler for the next Start. It is idempotent and does not wait for the
// session to finish: the stopped session completes its in-flight fetch and
// delivers Cancelled to its own sink.
func (c *Crawler) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.Stop()
		c.active = nil
	}
}

// Running reports whether a session is active, i.e. it has neither been
// stopped through the Crawler nor emitted its terminal event yet.
func (c *Crawler) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}
