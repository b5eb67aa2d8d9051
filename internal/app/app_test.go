package app

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/mailspider/internal/crawler"
	"github.com/nao1215/mailspider/internal/model"
)

// staticSite serves canned markup and links keyed by URL.
func staticSite(pages map[string]*crawler.Document) crawler.Fetcher {
	return crawler.FetcherFunc(func(_ context.Context, target string) (*crawler.Document, error) {
		doc, ok := pages[target]
		if !ok {
			return nil, &crawler.FetchError{URL: target, StatusCode: 404, Err: crawler.ErrUnexpectedStatus}
		}
		return doc, nil
	})
}

func waitHarvest(t *testing.T, a *App) *model.Harvest {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := a.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	return h
}

func exampleSite() crawler.Fetcher {
	return staticSite(map[string]*crawler.Document{
		"http://example.com/": {
			Markup: "Contact sales@example.com",
			Links:  []string{"http://example.com/team", "http://example.com/gone"},
		},
		"http://example.com/team": {
			Markup: "alice@example.com, Bob@Other.org, sales@example.com",
		},
	})
}

func TestAppStartCrawl(t *testing.T) {
	t.Parallel()

	t.Run("collects a harvest", func(t *testing.T) {
		t.Parallel()

		a := New(crawler.New(exampleSite()))
		if err := a.StartCrawl(context.Background(), "  http://example.com/ "); err != nil {
			t.Fatalf("StartCrawl failed: %v", err)
		}
		h := waitHarvest(t, a)

		if h.Status != model.StatusCompleted {
			t.Errorf("expected completed, got %s", h.Status)
		}
		if h.SessionID == "" {
			t.Error("expected a session ID")
		}
		wantEmails := []string{"sales@example.com", "alice@example.com", "Bob@Other.org"}
		if got := h.Addresses(); !reflect.DeepEqual(got, wantEmails) {
			t.Errorf("emails = %v, want %v", got, wantEmails)
		}
		wantLinks := []string{"http://example.com/", "http://example.com/team", "http://example.com/gone"}
		if !reflect.DeepEqual(h.Links, wantLinks) {
			t.Errorf("links = %v, want %v", h.Links, wantLinks)
		}
		if len(h.Failures) != 1 || h.Failures[0].URL != "http://example.com/gone" {
			t.Errorf("unexpected failures: %v", h.Failures)
		}
		if a.Running() {
			t.Error("expected app to be idle")
		}
	})

	t.Run("blank seed", func(t *testing.T) {
		t.Parallel()

		a := New(crawler.New(exampleSite()))
		if err := a.StartCrawl(context.Background(), "   "); !errors.Is(err, ErrEmptySeed) {
			t.Errorf("expected ErrEmptySeed, got %v", err)
		}
		if a.Snapshot() != nil {
			t.Error("expected no session")
		}
	})

	t.Run("invalid seed", func(t *testing.T) {
		t.Parallel()

		a := New(crawler.New(exampleSite()))
		if err := a.StartCrawl(context.Background(), "example.com"); !errors.Is(err, crawler.ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}
	})

	t.Run("already running", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		fetcher := crawler.FetcherFunc(func(_ context.Context, target string) (*crawler.Document, error) {
			<-release
			return &crawler.Document{URL: target, Markup: "first@example.com"}, nil
		})
		a := New(crawler.New(fetcher))

		if err := a.StartCrawl(context.Background(), "http://example.com/"); err != nil {
			t.Fatalf("StartCrawl failed: %v", err)
		}
		if err := a.StartCrawl(context.Background(), "http://example.org/"); !errors.Is(err, crawler.ErrAlreadyRunning) {
			t.Errorf("expected ErrAlreadyRunning, got %v", err)
		}
		if err := a.ResetState(); !errors.Is(err, ErrSessionRunning) {
			t.Errorf("expected ErrSessionRunning, got %v", err)
		}

		close(release)
		h := waitHarvest(t, a)
		if h.Seed != "http://example.com/" {
			t.Errorf("the running session must be untouched, got seed %q", h.Seed)
		}
		if got := h.Addresses(); !reflect.DeepEqual(got, []string{"first@example.com"}) {
			t.Errorf("unexpected emails: %v", got)
		}
	})
}

func TestAppStopCrawl(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fetcher := crawler.FetcherFunc(func(_ context.Context, target string) (*crawler.Document, error) {
		once.Do(func() { close(entered) })
		<-release
		return &crawler.Document{URL: target, Links: []string{target + "next"}}, nil
	})
	a := New(crawler.New(fetcher))

	if err := a.StartCrawl(context.Background(), "http://example.com/"); err != nil {
		t.Fatalf("StartCrawl failed: %v", err)
	}
	<-entered
	a.StopCrawl()
	close(release)

	h := waitHarvest(t, a)
	if h.Status != model.StatusCancelled {
		t.Errorf("expected cancelled, got %s", h.Status)
	}
	if h.FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be set")
	}
}

func TestAppRestartAfterStop(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	fetcher := crawler.FetcherFunc(func(_ context.Context, target string) (*crawler.Document, error) {
		if target == "http://example.com/" {
			close(entered)
			<-release
			return &crawler.Document{URL: target, Markup: "old@example.com"}, nil
		}
		return &crawler.Document{URL: target, Markup: "info@example.org"}, nil
	})
	a := New(crawler.New(fetcher))
	defer close(release)

	if err := a.StartCrawl(context.Background(), "http://example.com/"); err != nil {
		t.Fatalf("StartCrawl failed: %v", err)
	}
	<-entered
	a.StopCrawl()

	if a.Running() {
		t.Error("expected the stopped session not to count as running")
	}
	if err := a.ResetState(); err != nil {
		t.Fatalf("ResetState right after StopCrawl failed: %v", err)
	}
	if err := a.StartCrawl(context.Background(), "http://example.org/"); err != nil {
		t.Fatalf("StartCrawl right after StopCrawl failed: %v", err)
	}

	h := waitHarvest(t, a)
	if h.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", h.Status)
	}
	if h.Seed != "http://example.org/" {
		t.Errorf("expected the new session harvest, got seed %q", h.Seed)
	}
	if got, want := a.Links(), []string{"http://example.org/"}; !reflect.DeepEqual(got, want) {
		t.Errorf("links mismatch\n got: %v\nwant: %v", got, want)
	}
	if got, want := a.FilterDisplayedEmails(""), []string{"info@example.org"}; !reflect.DeepEqual(got, want) {
		t.Errorf("emails mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestAppAccumulatesAcrossSessions(t *testing.T) {
	t.Parallel()

	a := New(crawler.New(exampleSite()))

	for range 2 {
		if err := a.StartCrawl(context.Background(), "http://example.com/"); err != nil {
			t.Fatalf("StartCrawl failed: %v", err)
		}
		h := waitHarvest(t, a)
		if len(h.Emails) != 3 {
			t.Errorf("each session reports its own emails, got %v", h.Addresses())
		}
	}

	if got := len(a.Emails()); got != 3 {
		t.Errorf("expected 3 accumulated emails, got %d", got)
	}
	if got := len(a.Links()); got != 6 {
		t.Errorf("expected 6 accumulated link visits, got %d", got)
	}
	if got := len(a.Failures()); got != 2 {
		t.Errorf("expected 2 accumulated failures, got %d", got)
	}

	if err := a.ResetState(); err != nil {
		t.Fatalf("ResetState failed: %v", err)
	}
	if len(a.Emails()) != 0 || len(a.Links()) != 0 || len(a.Failures()) != 0 {
		t.Error("expected empty state after reset")
	}
	if a.Snapshot() != nil {
		t.Error("expected no snapshot after reset")
	}
	if _, err := a.Wait(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestAppFilterDisplayedEmails(t *testing.T) {
	t.Parallel()

	a := New(crawler.New(exampleSite()))
	if err := a.StartCrawl(context.Background(), "http://example.com/"); err != nil {
		t.Fatalf("StartCrawl failed: %v", err)
	}
	waitHarvest(t, a)

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"sales@example.com", "alice@example.com", "Bob@Other.org"}},
		{"OTHER", []string{"Bob@Other.org"}},
		{"example", []string{"sales@example.com", "alice@example.com"}},
		{"nobody", []string{}},
	}
	for _, tt := range tests {
		if got := a.FilterDisplayedEmails(tt.filter); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FilterDisplayedEmails(%q) = %v, want %v", tt.filter, got, tt.want)
		}
	}
}

func TestAppListener(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []crawler.Event
	listener := func(ev crawler.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}

	a := New(crawler.New(exampleSite()), WithListener(listener))
	if err := a.StartCrawl(context.Background(), "http://example.com/"); err != nil {
		t.Fatalf("StartCrawl failed: %v", err)
	}
	waitHarvest(t, a)

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 {
		t.Fatal("expected events to be forwarded")
	}
	if !crawler.IsTerminal(events[len(events)-1]) {
		t.Errorf("expected terminal event last, got %#v", events[len(events)-1])
	}
}
