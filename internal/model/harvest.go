package model

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Status is the lifecycle state of a crawl session.
type Status string

const (
	// StatusRunning means the session has not emitted a terminal event yet.
	StatusRunning Status = "running"

	// StatusCompleted means the frontier was exhausted or the page budget
	// was spent.
	StatusCompleted Status = "completed"

	// StatusCancelled means the session observed a stop request.
	StatusCancelled Status = "cancelled"
)

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// Email is an address discovered during a crawl.
type Email struct {
	// Address is the email exactly as it appeared in the markup.
	Address string `json:"address"`

	// Page is the URL whose markup contained the address first.
	Page string `json:"page"`

	// FoundAt is when the address was reported.
	FoundAt time.Time `json:"found_at"`
}

// Failure is a page that could not be fetched.
type Failure struct {
	// URL is the target that failed.
	URL string `json:"url"`

	// Reason is the error message.
	Reason string `json:"reason"`
}

// Harvest is the result of one crawl session.
//
// Design decision: We keep Links as distinct URLs and count visits
// separately because:
//  1. A target may be dequeued more than once, and reports should not
//     repeat it
//  2. LinksVisited still matches the number of link events received
type Harvest struct {
	// SessionID is the crawler session ID.
	SessionID string `json:"session_id"`

	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// StartedAt is when the session started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the terminal event arrived. Zero while running.
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// LinksVisited counts link events, including repeated targets.
	LinksVisited int `json:"links_visited"`

	// Links are the distinct visited URLs in first-visit order.
	Links []string `json:"links"`

	// Emails are the distinct emails in discovery order.
	Emails []Email `json:"emails"`

	// Failures are the pages that could not be fetched.
	Failures []Failure `json:"failures"`

	// seenLinks indexes Links. It is rebuilt lazily after decoding.
	seenLinks map[string]struct{}

	// seenEmails indexes Emails by address.
	seenEmails map[string]struct{}
}

// NewHarvest creates a running Harvest.
func NewHarvest(sessionID, seed string, startedAt time.Time) *Harvest {
	return &Harvest{
		SessionID: sessionID,
		Seed:      seed,
		StartedAt: startedAt,
		Status:    StatusRunning,
		Links:     make([]string, 0),
		Emails:    make([]Email, 0),
		Failures:  make([]Failure, 0),
	}
}

// AddLink records a visited URL. It reports whether the URL was new.
func (h *Harvest) AddLink(url string) bool {
	h.LinksVisited++

	if h.seenLinks == nil {
		h.seenLinks = make(map[string]struct{}, len(h.Links))
		for _, l := range h.Links {
			h.seenLinks[l] = struct{}{}
		}
	}
	if _, ok := h.seenLinks[url]; ok {
		return false
	}
	h.seenLinks[url] = struct{}{}
	h.Links = append(h.Links, url)
	return true
}

// AddEmail records an email. Addresses are compared exactly, so
// "A@B.COM" and "a@b.com" are distinct. It reports whether the email
// was new.
func (h *Harvest) AddEmail(address, page string, foundAt time.Time) bool {
	if h.seenEmails == nil {
		h.seenEmails = make(map[string]struct{}, len(h.Emails))
		for _, e := range h.Emails {
			h.seenEmails[e.Address] = struct{}{}
		}
	}
	if _, ok := h.seenEmails[address]; ok {
		return false
	}
	h.seenEmails[address] = struct{}{}
	h.Emails = append(h.Emails, Email{Address: address, Page: page, FoundAt: foundAt})
	return true
}

// AddFailure records a page that could not be fetched.
func (h *Harvest) AddFailure(url, reason string) {
	h.Failures = append(h.Failures, Failure{URL: url, Reason: reason})
}

// Finish marks the harvest as terminated with status.
func (h *Harvest) Finish(status Status, at time.Time) {
	h.Status = status
	h.FinishedAt = at
}

// Finished reports whether the session has terminated.
func (h *Harvest) Finished() bool {
	return h.Status != StatusRunning
}

// Duration returns how long the session ran, or has run so far.
func (h *Harvest) Duration() time.Duration {
	if h.FinishedAt.IsZero() {
		return time.Since(h.StartedAt)
	}
	return h.FinishedAt.Sub(h.StartedAt)
}

// Addresses returns the email addresses in discovery order.
func (h *Harvest) Addresses() []string {
	return Addresses(h.Emails)
}

// FilterEmails returns the emails whose address contains substr,
// ignoring case. A blank substr returns every email.
func (h *Harvest) FilterEmails(substr string) []Email {
	return FilterEmails(h.Emails, substr)
}

// Filtered returns a copy of h whose Emails are narrowed by FilterEmails.
func (h *Harvest) Filtered(substr string) *Harvest {
	c := h.Clone()
	c.Emails = FilterEmails(h.Emails, substr)
	c.seenEmails = nil
	return c
}

// Restricted returns a copy of h keeping only the emails whose address is
// in addresses. Order follows h.
func (h *Harvest) Restricted(addresses []string) *Harvest {
	c := h.Clone()
	keep := make([]Email, 0, len(addresses))
	for _, e := range h.Emails {
		if slices.Contains(addresses, e.Address) {
			keep = append(keep, e)
		}
	}
	c.Emails = keep
	return c
}

// Clone returns a deep copy of h.
func (h *Harvest) Clone() *Harvest {
	c := *h
	c.Links = slices.Clone(h.Links)
	c.Emails = slices.Clone(h.Emails)
	c.Failures = slices.Clone(h.Failures)
	c.seenLinks = nil
	c.seenEmails = nil
	if c.Links == nil {
		c.Links = make([]string, 0)
	}
	if c.Emails == nil {
		c.Emails = make([]Email, 0)
	}
	if c.Failures == nil {
		c.Failures = make([]Failure, 0)
	}
	return &c
}

// Summary returns the compact form of h.
func (h *Harvest) Summary() Summary {
	return Summary{
		SessionID:    h.SessionID,
		Seed:         h.Seed,
		StartedAt:    h.StartedAt,
		FinishedAt:   h.FinishedAt,
		Status:       h.Status,
		LinkCount:    len(h.Links),
		EmailCount:   len(h.Emails),
		FailureCount: len(h.Failures),
	}
}

// Summary is a compact view of a Harvest used by listings.
type Summary struct {
	SessionID    string    `json:"session_id"`
	Seed         string    `json:"seed"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Status       Status    `json:"status"`
	LinkCount    int       `json:"link_count"`
	EmailCount   int       `json:"email_count"`
	FailureCount int       `json:"failure_count"`
}

// FilterEmails returns the emails whose address contains substr under
// Unicode case folding. Leading and trailing space in substr is ignored and
// a blank substr returns every email. The input is never modified.
func FilterEmails(emails []Email, substr string) []Email {
	substr = strings.TrimSpace(substr)
	out := make([]Email, 0, len(emails))
	if substr == "" {
		return append(out, emails...)
	}

	fold := cases.Fold()
	needle := fold.String(substr)
	for _, e := range emails {
		if strings.Contains(fold.String(e.Address), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Addresses returns the addresses of emails, in order.
func Addresses(emails []Email) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		out = append(out, e.Address)
	}
	return out
}
