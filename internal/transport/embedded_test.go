package transport

import (
	"errors"
	"testing"
	"time"
)

// TestNewEmbeddedTor tests EmbeddedTor construction without starting Tor.
func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("uses default timeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if embedded.startupTimeout != DefaultTorStartupTimeout {
			t.Errorf("expected default timeout, got %v", embedded.startupTimeout)
		}
	})

	t.Run("applies WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute))
		if embedded.startupTimeout != 5*time.Minute {
			t.Errorf("expected timeout 5m, got %v", embedded.startupTimeout)
		}
	})
}

// TestEmbeddedTorNotStarted tests accessors on an unstarted daemon.
func TestEmbeddedTorNotStarted(t *testing.T) {
	t.Parallel()

	embedded := NewEmbeddedTor()

	if embedded.IsRunning() {
		t.Error("expected IsRunning to be false before start")
	}
	if embedded.SocksAddr() != "" || embedded.ControlAddr() != "" {
		t.Error("expected empty addresses before start")
	}
	if err := embedded.Stop(); err != nil {
		t.Errorf("expected no error stopping unstarted instance, got %v", err)
	}
	if _, err := embedded.NewClient(30 * time.Second); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("expected ErrTorNotRunning, got %v", err)
	}
}
