package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed URL specified: provide the URL to start crawling from")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page budget is negative.
	// Use 0 for an unlimited crawl.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownFormat is returned for a report format other than
	// text, json, markdown or xlsx.
	ErrUnknownFormat = errors.New("unknown report format: use text, json, markdown or xlsx")

	// ErrXLSXNeedsOutput is returned when the xlsx format is requested
	// without --output. A spreadsheet is never written to a terminal.
	ErrXLSXNeedsOutput = errors.New("xlsx format requires --output")

	// ErrConflictingTransport is returned when both --proxy and --tor are set.
	ErrConflictingTransport = errors.New("conflicting transports: --proxy and --tor cannot be used together")

	// ErrInvalidTorStartupTimeout is returned when --tor is set with a
	// non-positive startup timeout.
	ErrInvalidTorStartupTimeout = errors.New("invalid tor startup timeout: must be positive")
)
