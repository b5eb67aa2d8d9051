package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestNewClient tests the Client constructor.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("direct client has no proxy", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(30 * time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.UsesProxy() {
			t.Error("expected direct client")
		}
		if client.ProxyAddress() != "" {
			t.Errorf("ProxyAddress() = %q, expected empty", client.ProxyAddress())
		}
	})

	t.Run("valid proxy address creates client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(30*time.Second, WithProxy("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !client.UsesProxy() {
			t.Error("expected proxied client")
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q, expected %q", client.ProxyAddress(), "127.0.0.1:9050")
		}
	})

	t.Run("invalid proxy address returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient(30*time.Second, WithProxy("127.0.0.1"))
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

// TestIsValidProxyAddress tests the proxy address validation function.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		address  string
		expected bool
	}{
		{"valid IPv4 with port", "127.0.0.1:9050", true},
		{"valid localhost with port", "localhost:9050", true},
		{"valid IPv6 with port", "[::1]:9050", true},
		{"empty string", "", false},
		{"no port", "127.0.0.1", false},
		{"empty host", ":9050", false},
		{"empty port", "127.0.0.1:", false},
		{"multiple colons", "127.0.0.1:9050:extra", false},
		{"port zero", "127.0.0.1:0", false},
		{"port too large", "127.0.0.1:65536", false},
		{"non-numeric port", "127.0.0.1:tor", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := isValidProxyAddress(tc.address); got != tc.expected {
				t.Errorf("isValidProxyAddress(%q) = %v, expected %v", tc.address, got, tc.expected)
			}
		})
	}
}

// TestProxyStatus tests status strings and errors.
func TestProxyStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status ProxyStatus
		str    string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tc := range testCases {
		t.Run(tc.str, func(t *testing.T) {
			t.Parallel()

			if tc.status.String() != tc.str {
				t.Errorf("String() = %q, expected %q", tc.status.String(), tc.str)
			}
			if !errors.Is(tc.status.Err(), tc.err) {
				t.Errorf("Err() = %v, expected %v", tc.status.Err(), tc.err)
			}
		})
	}

	if ProxyStatus(99).String() != "unknown" {
		t.Error("expected unknown status string")
	}
	if ProxyStatus(99).Err() == nil {
		t.Error("expected error for unknown status")
	}
}

// TestHTTPClient tests the created HTTP client against a local server.
func TestHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("injects cookie and headers for matching host", func(t *testing.T) {
		t.Parallel()

		received := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received <- r.Header.Clone()
			fmt.Fprint(w, "ok")
		}))
		defer server.Close()

		client, err := NewClient(5*time.Second, WithSites(func(host string) (string, map[string]string) {
			if host != "127.0.0.1" {
				return "", nil
			}
			return "session=abc123", map[string]string{"X-Custom": "value"}
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		resp, err := client.HTTPClient().Get(server.URL) //nolint:noctx // test code
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		header := <-received
		gotCookie, gotHeader := header.Get("Cookie"), header.Get("X-Custom")
		if gotCookie != "session=abc123" {
			t.Errorf("Cookie = %q, expected session=abc123", gotCookie)
		}
		if gotHeader != "value" {
			t.Errorf("X-Custom = %q, expected value", gotHeader)
		}
	})

	t.Run("stops after too many redirects", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/loop", http.StatusFound)
		}))
		defer server.Close()

		client, err := NewClient(5 * time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = client.HTTPClient().Get(server.URL) //nolint:noctx,bodyclose // test code; error expected
		if !errors.Is(err, ErrTooManyRedirects) {
			t.Errorf("expected ErrTooManyRedirects, got %v", err)
		}
	})

	t.Run("uses configured timeout", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(45 * time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.HTTPClient().Timeout != 45*time.Second {
			t.Errorf("Timeout = %v, expected 45s", client.HTTPClient().Timeout)
		}
	})
}

// TestHeaderInjectingTransport tests that the caller's request is untouched.
func TestHeaderInjectingTransport(t *testing.T) {
	t.Parallel()

	var seen *http.Request
	transport := &headerInjectingTransport{
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			seen = r
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("")), Request: r}, nil
		}),
		sites: func(string) (string, map[string]string) {
			return "b=2", nil
		},
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.com/", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Cookie", "a=1")

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	resp.Body.Close()

	if seen.Header.Get("Cookie") != "a=1; b=2" {
		t.Errorf("sent Cookie = %q, expected %q", seen.Header.Get("Cookie"), "a=1; b=2")
	}
	if req.Header.Get("Cookie") != "a=1" {
		t.Errorf("original request was modified: %q", req.Header.Get("Cookie"))
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// serveOnce accepts one connection, reads the greeting and writes reply.
func serveOnce(t *testing.T, reply []byte) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		_, _ = io.ReadFull(conn, buf)
		_, _ = conn.Write(reply)
	}()

	return listener.Addr().String()
}

// TestCheckProxy tests the SOCKS5 handshake check.
func TestCheckProxy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		reply    []byte
		expected ProxyStatus
	}{
		{"SOCKS5 without auth", []byte{socks5Version, socks5AuthNone}, ProxyStatusOK},
		{"SOCKS5 requiring auth", []byte{socks5Version, socks5AuthNoAccept}, ProxyStatusWrongType},
		{"SOCKS4 reply", []byte{0x04, 0x00}, ProxyStatusWrongType},
		{"HTTP server", []byte("HTTP/1.1 200 OK\r\n\r\n"), ProxyStatusWrongType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(time.Second, WithProxy(serveOnce(t, tc.reply)))
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}
			if got := client.CheckProxy(context.Background()); got != tc.expected {
				t.Errorf("CheckProxy() = %v, expected %v", got, tc.expected)
			}
		})
	}

	t.Run("direct client is always OK", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(time.Second)
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if got := client.CheckProxy(context.Background()); got != ProxyStatusOK {
			t.Errorf("CheckProxy() = %v, expected OK", got)
		}
	})

	t.Run("closed port cannot connect", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		listener.Close()

		client, err := NewClient(time.Second, WithProxy(addr))
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		if got := client.CheckProxy(context.Background()); got != ProxyStatusCannotConnect {
			t.Errorf("CheckProxy() = %v, expected CannotConnect", got)
		}
	})
}
