package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/nao1215/mailspider/internal/extract"
	"github.com/nao1215/mailspider/internal/metrics"
)

// Session is one run of the crawl loop from a seed URL to completion or
// cancellation. Its frontier, visited set and email set are owned by the
// loop goroutine and are never exposed; results leave only as events.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	// Seed is the normalized seed URL.
	Seed string

	// StartedAt is when Start created the session.
	StartedAt time.Time

	seed     *url.URL
	fetcher  Fetcher
	logger   *slog.Logger
	metrics  *metrics.Recorder
	maxPages int
	filter   pathFilter

	// frontier is the FIFO queue of normalized targets.
	frontier []string

	// visited holds targets already dequeued and processed.
	visited map[string]struct{}

	// emails holds addresses already reported in this session.
	emails map[string]struct{}

	// stopped is the cancellation flag shared with Stop.
	stopped atomic.Bool

	events *dispatcher

	// release emits the terminal event and frees the owning Crawler.
	release func(*Session, Event)
}

// Stop requests cancellation. It is idempotent and never blocks; the loop
// observes the request at its next iteration boundary.
func (s *Session) Stop() {
	s.stopped.Store(true)
}

// Done returns a channel closed once the terminal event has been delivered
// to the sink.
func (s *Session) Done() <-chan struct{} {
	return s.events.done
}

// Wait blocks until the terminal event has been delivered or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.events.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the crawl loop. It is the only code touching frontier, visited and
// emails.
func (s *Session) run(ctx context.Context) {
	s.logger.Info("crawl started", "session", s.ID, "seed", s.Seed)

	for {
		if s.stopped.Load() || ctx.Err() != nil {
			s.logger.Info("crawl cancelled", "session", s.ID, "visited", len(s.visited), "emails", len(s.emails))
			s.metrics.SessionFinished(metrics.OutcomeCancelled)
			s.release(s, Cancelled{})
			return
		}

		if len(s.frontier) == 0 || s.budgetSpent() {
			s.logger.Info("crawl completed", "session", s.ID, "visited", len(s.visited), "emails", len(s.emails))
			s.metrics.SessionFinished(metrics.OutcomeCompleted)
			s.release(s, Completed{})
			return
		}

		target := s.frontier[0]
		s.frontier[0] = ""
		s.frontier = s.frontier[1:]
		s.metrics.SetFrontierLength(len(s.frontier))

		s.events.emit(LinkVisited{URL: target})
		s.metrics.LinkVisited()

		// A target may be queued several times before its first visit.
		if _, seen := s.visited[target]; seen {
			continue
		}
		s.visited[target] = struct{}{}

		s.visit(ctx, target)
	}
}

// budgetSpent reports whether the optional page budget is used up.
func (s *Session) budgetSpent() bool {
	return s.maxPages > 0 && len(s.visited) >= s.maxPages
}

// visit fetches one target, reports new emails and enqueues its links.
func (s *Session) visit(ctx context.Context, target string) {
	doc, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		// Cancellation through ctx is reported by the loop, not as a page error.
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("fetch failed", "url", target, "error", err)
		s.metrics.FetchFailed(failureReason(err))
		s.events.emit(FetchFailed{URL: target, Err: err})
		return
	}
	s.metrics.PageFetched()

	for _, email := range extract.Emails(doc.Markup) {
		if _, seen := s.emails[email]; seen {
			continue
		}
		s.emails[email] = struct{}{}
		s.events.emit(EmailFound{Email: email, Page: target})
		s.metrics.EmailFound()
	}

	enqueued := 0
	for _, link := range doc.Links {
		if s.enqueue(link) {
			enqueued++
		}
	}
	s.metrics.SetFrontierLength(len(s.frontier))

	s.logger.Debug("page processed",
		"url", target,
		"links", len(doc.Links),
		"enqueued", enqueued,
		"frontier", len(s.frontier),
	)
}

// enqueue appends link to the frontier if it is an http(s) URL on the
// seed's host that has not been visited yet and passes the path patterns.
// Malformed links are dropped silently.
func (s *Session) enqueue(link string) bool {
	normalized, err := NormalizeURL(link)
	if err != nil {
		return false
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !sameHostname(s.seed, u) {
		return false
	}
	if _, seen := s.visited[normalized]; seen {
		return false
	}
	if s.filter.allows(u) != nil {
		return false
	}

	s.frontier = append(s.frontier, normalized)
	return true
}
