package app

import "errors"

var (
	// ErrEmptySeed is returned by StartCrawl when the seed is blank.
	ErrEmptySeed = errors.New("seed URL is empty")

	// ErrSessionRunning is returned by ResetState while a session has not
	// delivered its terminal event.
	ErrSessionRunning = errors.New("a crawl session is running")

	// ErrNoSession is returned by Wait before any session was started.
	ErrNoSession = errors.New("no crawl session has been started")
)
