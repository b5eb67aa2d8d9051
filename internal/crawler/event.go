package crawler

// Event is a message emitted by a crawl session. The set of
// implementations is closed: LinkVisited, EmailFound, FetchFailed,
// Completed and Cancelled. Consumers switch on the concrete type.
type Event interface {
	isEvent()
}

// LinkVisited is emitted once for every target dequeued from the frontier,
// including targets that were already visited and are therefore skipped.
type LinkVisited struct {
	// URL is the normalized target.
	URL string
}

// EmailFound is emitted the first time an email is seen in a session.
type EmailFound struct {
	// Email is the address exactly as it appeared in the markup.
	Email string

	// Page is the target whose markup contained the email.
	Page string
}

// FetchFailed is informational: the target was marked visited and skipped.
// It never terminates the session.
type FetchFailed struct {
	URL string
	Err error
}

// Completed is the terminal event of a session whose frontier was exhausted
// (or whose page budget was spent).
type Completed struct{}

// Cancelled is the terminal event of a session that observed a stop request.
type Cancelled struct{}

func (LinkVisited) isEvent() {}
func (EmailFound) isEvent()  {}
func (FetchFailed) isEvent() {}
func (Completed) isEvent()   {}
func (Cancelled) isEvent()   {}

// IsTerminal reports whether ev ends a session.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case Completed, Cancelled:
		return true
	default:
		return false
	}
}

// Sink receives the events of one session, in emission order, from a single
// goroutine.
type Sink func(Event)
