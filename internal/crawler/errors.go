package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeed is returned by Start when the seed URL is empty, does
	// not parse, or is not an absolute http(s) URL with a host. No session
	// is created.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrAlreadyRunning is returned by Start while a previous session of the
	// same Crawler has not emitted its terminal event yet. The running
	// session is left untouched.
	ErrAlreadyRunning = errors.New("a crawl session is already running")

	// ErrUnexpectedStatus is wrapped by FetchError for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrUnsupportedContent is wrapped by FetchError when the response is
	// not a markup document.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// FetchError describes a page that could not be fetched or parsed.
// The crawl continues past it.
type FetchError struct {
	// URL is the target that failed.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %v (status %d)", e.URL, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// failureReason maps a fetch error to a short, low-cardinality label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnexpectedStatus):
		return "status"
	case errors.Is(err, ErrUnsupportedContent):
		return "content_type"
	default:
		return "network"
	}
}
