// Package crawler implements the crawl-and-extract engine.
//
// # Architecture
//
// A Crawler hands out at most one Session at a time. The Session owns the
// frontier (FIFO queue of pending URLs), the visited set and the set of
// emails already reported, and it is driven by a single goroutine:
//
//	dequeue -> LinkVisited -> fetch -> extract emails -> enqueue same-host links
//
// Pages are fetched strictly one after another, so the loop needs no locks.
// The only state shared with other goroutines is the stop flag, an
// atomic.Bool.
//
// # Events
//
// Results leave the session only as Events delivered to a Sink:
// LinkVisited, EmailFound, FetchFailed, and exactly one terminal Completed or
// Cancelled. Events are queued without bound and delivered in emission
// order by a dispatcher goroutine, so a slow consumer never stalls the crawl.
//
// # Cancellation
//
// Stop is cooperative. The flag is checked at the top of every iteration;
// an in-flight fetch is allowed to finish first.
//
// # Usage
//
//	c := crawler.New(crawler.NewHTTPFetcher(http.DefaultClient))
//	s, err := c.Start(ctx, "https://example.com/", func(ev crawler.Event) {
//	    // exhaustive type switch over ev
//	})
//	...
//	c.Stop()
//	err = s.Wait(ctx)
package crawler
