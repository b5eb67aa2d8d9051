package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// MaxRedirects is the number of redirects a request may follow.
const MaxRedirects = 10

// checkProxyTimeout bounds the SOCKS5 handshake in CheckProxy.
// This is a connectivity check, not a request through the proxy.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// SiteResolver returns the cookie and extra headers to send to host.
// Both may be empty.
type SiteResolver func(host string) (cookie string, headers map[string]string)

// Client builds HTTP clients that dial directly or through a SOCKS5 proxy.
//
// Design decision: We separate Client from *http.Client because:
//  1. The proxy check needs the raw address, not an HTTP client
//  2. Creating the client does no network I/O, so it can be built before
//     the proxy is running
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" format.
	// Empty means direct connections.
	proxyAddress string

	// dialer routes connections through the proxy. Nil when direct.
	dialer proxy.Dialer

	// timeout is the per-request timeout of created HTTP clients.
	timeout time.Duration

	// sites supplies per-host cookies and headers.
	sites SiteResolver
}

// Option configures a Client.
type Option func(*Client)

// WithProxy routes every connection through the SOCKS5 proxy at address.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithSites injects per-host cookies and headers into every request.
func WithSites(resolver SiteResolver) Option {
	return func(c *Client) {
		c.sites = resolver
	}
}

// NewClient creates a Client with the given per-request timeout.
//
// The proxy address is validated but not contacted. Call CheckProxy to
// verify it before crawling.
func NewClient(timeout time.Duration, opts ...Option) (*Client, error) {
	c := &Client{timeout: timeout}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress == "" {
		return c, nil
	}
	if !isValidProxyAddress(c.proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// nil auth: Tor's SOCKS port and most local proxies accept no auth.
	dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	c.dialer = dialer
	return c, nil
}

// isValidProxyAddress reports whether address is "host:port" with a
// non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address, or "" when direct.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// UsesProxy reports whether connections go through a proxy.
func (c *Client) UsesProxy() bool {
	return c.dialer != nil
}

// CheckProxy verifies that the proxy speaks SOCKS5 without authentication.
// It returns ProxyStatusOK when no proxy is configured.
//
// Design decision: We perform the greeting ourselves rather than dialing a
// real host because:
//  1. It detects an HTTP proxy or unrelated service on the port
//  2. It does not send any crawl traffic before the crawl starts
func (c *Client) CheckProxy(ctx context.Context) ProxyStatus {
	if c.dialer == nil {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, "no authentication".
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if resp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	// socks5AuthNoAccept means every offered method was refused.
	if resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// HTTPClient creates an HTTP client for crawling.
//
// Design decisions:
//   - A cookie jar keeps server-set session cookies across pages
//   - Redirects stop at MaxRedirects with ErrTooManyRedirects
//   - Compression stays off through a proxy to limit size side channels
func (c *Client) HTTPClient() *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	base.MaxIdleConnsPerHost = 4
	base.IdleConnTimeout = 30 * time.Second

	if c.dialer != nil {
		base.Proxy = nil
		base.DialContext = c.dialContext
		base.MaxIdleConns = 10
		base.MaxIdleConnsPerHost = 2
		base.DisableCompression = true
	}

	var rt http.RoundTripper = base
	if c.sites != nil {
		rt = &headerInjectingTransport{base: base, sites: c.sites}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}

// dialContext dials through the proxy, honoring ctx when the dialer can.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// headerInjectingTransport wraps an http.RoundTripper to inject the
// cookie and headers configured for each request's host.
type headerInjectingTransport struct {
	base  http.RoundTripper
	sites SiteResolver
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cookie, headers := t.sites(req.URL.Hostname())
	if cookie == "" && len(headers) == 0 {
		return t.base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	if cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+cookie)
		} else {
			clone.Header.Set("Cookie", cookie)
		}
	}
	for key, value := range headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
