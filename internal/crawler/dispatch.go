package crawler

import "sync"

// dispatcher delivers events to a Sink in order without ever blocking the
// producer. Events are buffered without bound; the crawl emits a handful
// of events per fetched page, so the buffer is bounded in practice by the
// consumer's lag.
type dispatcher struct {
	sink Sink

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	closed  bool

	// done is closed after the terminal event has been delivered.
	done chan struct{}
}

// newDispatcher starts a dispatcher goroutine delivering to sink.
// A nil sink discards events.
func newDispatcher(sink Sink) *dispatcher {
	if sink == nil {
		sink = func(Event) {}
	}
	d := &dispatcher{
		sink: sink,
		done: make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// emit queues ev. A terminal event closes the dispatcher; anything emitted
// afterwards is dropped.
func (d *dispatcher) emit(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.pending = append(d.pending, ev)
	if IsTerminal(ev) {
		d.closed = true
	}
	d.cond.Signal()
}

func (d *dispatcher) loop() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.closed {
			d.cond.Wait()
		}
		batch := d.pending
		d.pending = nil
		closed := d.closed
		d.mu.Unlock()

		for _, ev := range batch {
			d.sink(ev)
		}

		if closed {
			return
		}
	}
}
