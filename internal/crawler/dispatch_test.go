package crawler

import (
	"fmt"
	"testing"
	"time"
)

func TestDispatcher(t *testing.T) {
	t.Parallel()

	t.Run("delivers in order without blocking the producer", func(t *testing.T) {
		t.Parallel()

		gate := make(chan struct{})
		var got []Event
		d := newDispatcher(func(ev Event) {
			<-gate
			got = append(got, ev)
		})

		// The sink is blocked, so every emit must return immediately.
		for i := range 100 {
			d.emit(LinkVisited{URL: fmt.Sprintf("http://example.com/%d", i)})
		}
		d.emit(Completed{})
		d.emit(LinkVisited{URL: "http://example.com/late"})
		close(gate)

		select {
		case <-d.done:
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not finish")
		}

		if len(got) != 101 {
			t.Fatalf("expected 101 events, got %d", len(got))
		}
		for i := range 100 {
			want := LinkVisited{URL: fmt.Sprintf("http://example.com/%d", i)}
			if got[i] != want {
				t.Fatalf("event %d = %#v, want %#v", i, got[i], want)
			}
		}
		if got[100] != (Completed{}) {
			t.Errorf("expected Completed last, got %#v", got[100])
		}
	})

	t.Run("nil sink discards events", func(t *testing.T) {
		t.Parallel()

		d := newDispatcher(nil)
		d.emit(EmailFound{Email: "a@b.com"})
		d.emit(Cancelled{})

		select {
		case <-d.done:
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not finish")
		}
	})
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev   Event
		want bool
	}{
		{LinkVisited{}, false},
		{EmailFound{}, false},
		{FetchFailed{}, false},
		{Completed{}, true},
		{Cancelled{}, true},
	}
	for _, tt := range tests {
		if got := IsTerminal(tt.ev); got != tt.want {
			t.Errorf("IsTerminal(%T) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}
