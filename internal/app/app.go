package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/mailspider/internal/crawler"
	"github.com/nao1215/mailspider/internal/model"
)

// App drives crawl sessions and accumulates their results.
//
// Design decision: We accumulate across sessions in the App rather than in
// the crawler because:
//  1. Every crawler session starts with empty sets, so a running crawl is
//     never affected by a previous one
//  2. Clearing displayed results is a consumer concern, handled by ResetState
type App struct {
	// crawler runs the sessions.
	crawler *crawler.Crawler

	// logger is used for structured logging.
	logger *slog.Logger

	// listener receives every event after the App has recorded it.
	listener crawler.Sink

	// now returns the current time.
	now func() time.Time

	// mu guards the fields below.
	mu sync.Mutex

	// current is the latest session.
	current *session

	// links are every visited URL across sessions, in event order.
	links []string

	// emails are the distinct emails across sessions, in discovery order.
	emails []model.Email

	// seen indexes emails by address.
	seen map[string]struct{}

	// failures are the failed pages across sessions.
	failures []model.Failure

	// epoch is bumped by ResetState. Sessions started in an older epoch
	// still record into their own harvest but no longer into the totals.
	epoch uint64
}

// session tracks one crawler session on the App side.
type session struct {
	handle  *crawler.Session
	harvest *model.Harvest

	// epoch is the App epoch the session was started in.
	epoch uint64

	// stopped is set by StopCrawl. A stopped session no longer counts as
	// running, even before its Cancelled event arrives.
	stopped bool

	// done is closed after the terminal event was recorded and forwarded.
	done chan struct{}
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithListener registers a sink that receives every event after the App
// has recorded it, on the crawler's dispatch goroutine.
func WithListener(listener crawler.Sink) Option {
	return func(a *App) {
		a.listener = listener
	}
}

// New creates an App driving c.
func New(c *crawler.Crawler, opts ...Option) *App {
	a := &App{
		crawler: c,
		logger:  slog.Default(),
		now:     time.Now,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StartCrawl starts a session from seedURL. Surrounding whitespace is
// trimmed; a blank seed fails with ErrEmptySeed. Errors from the crawler
// (crawler.ErrInvalidSeed, crawler.ErrAlreadyRunning) are wrapped.
func (a *App) StartCrawl(ctx context.Context, seedURL string) error {
	seed := strings.TrimSpace(seedURL)
	if seed == "" {
		return ErrEmptySeed
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Events cannot be handled before a.mu is released, so the harvest is
	// in place before the first one arrives.
	s := &session{done: make(chan struct{}), epoch: a.epoch}
	handle, err := a.crawler.Start(ctx, seed, func(ev crawler.Event) {
		a.handle(s, ev)
	})
	if err != nil {
		return fmt.Errorf("start crawl: %w", err)
	}
	s.handle = handle
	s.harvest = model.NewHarvest(handle.ID, handle.Seed, handle.StartedAt)
	a.current = s

	a.logger.Info("crawl session started", "session", handle.ID, "seed", handle.Seed)
	return nil
}

// StopCrawl requests cooperative cancellation of the running session.
// It returns immediately and a new session may be started right away; use
// Wait before starting again to observe the terminal event.
func (a *App) StopCrawl() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		a.current.stopped = true
	}
	a.crawler.Stop()
}

// ResetState clears the accumulated links, emails and failures and forgets
// the latest session. It fails with ErrSessionRunning while a session runs.
func (a *App) ResetState() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runningLocked() {
		return ErrSessionRunning
	}

	a.current = nil
	a.epoch++
	a.links = nil
	a.emails = nil
	a.seen = make(map[string]struct{})
	a.failures = nil
	return nil
}

// Running reports whether the latest session has neither been stopped nor
// delivered its terminal event yet.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runningLocked()
}

func (a *App) runningLocked() bool {
	return a.current != nil && !a.current.stopped && !a.current.harvest.Finished()
}

// Wait blocks until the latest session has delivered its terminal event
// and returns a copy of its harvest.
func (a *App) Wait(ctx context.Context) (*model.Harvest, error) {
	a.mu.Lock()
	s := a.current
	a.mu.Unlock()

	if s == nil {
		return nil, ErrNoSession
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return s.harvest.Clone(), nil
}

// Snapshot returns a copy of the latest session's harvest, or nil.
func (a *App) Snapshot() *model.Harvest {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return nil
	}
	return a.current.harvest.Clone()
}

// Emails returns the emails accumulated since the last reset.
func (a *App) Emails() []model.Email {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.emails)
}

// Links returns every visited URL since the last reset.
func (a *App) Links() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.links)
}

// Failures returns the failed pages since the last reset.
func (a *App) Failures() []model.Failure {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.failures)
}

// FilterDisplayedEmails returns the accumulated addresses containing substr,
// ignoring case. A blank substr returns all of them. It reads a snapshot
// and never affects a running crawl.
func (a *App) FilterDisplayedEmails(substr string) []string {
	a.mu.Lock()
	emails := slices.Clone(a.emails)
	a.mu.Unlock()

	return model.Addresses(model.FilterEmails(emails, substr))
}

// handle records ev and forwards it to the listener.
func (a *App) handle(s *session, ev crawler.Event) {
	a.mu.Lock()
	now := a.now()
	terminal := false
	current := s.epoch == a.epoch

	switch ev := ev.(type) {
	case crawler.LinkVisited:
		s.harvest.AddLink(ev.URL)
		if current {
			a.links = append(a.links, ev.URL)
		}
	case crawler.EmailFound:
		s.harvest.AddEmail(ev.Email, ev.Page, now)
		if _, ok := a.seen[ev.Email]; current && !ok {
			a.seen[ev.Email] = struct{}{}
			a.emails = append(a.emails, model.Email{Address: ev.Email, Page: ev.Page, FoundAt: now})
		}
	case crawler.FetchFailed:
		reason := ""
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		s.harvest.AddFailure(ev.URL, reason)
		if current {
			a.failures = append(a.failures, model.Failure{URL: ev.URL, Reason: reason})
		}
	case crawler.Completed:
		s.harvest.Finish(model.StatusCompleted, now)
		terminal = true
	case crawler.Cancelled:
		s.harvest.Finish(model.StatusCancelled, now)
		terminal = true
	}
	a.mu.Unlock()

	if terminal {
		h := s.harvest
		a.logger.Info("crawl session finished",
			"session", h.SessionID,
			"status", h.Status.String(),
			"links", len(h.Links),
			"emails", len(h.Emails),
			"failures", len(h.Failures),
		)
	}

	if a.listener != nil {
		a.listener(ev)
	}

	if terminal {
		close(s.done)
	}
}
