package crawler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent is sent when no other User-Agent is configured.
const DefaultUserAgent = "mailspider/1.0 (+https://github.com/nao1215/mailspider)"

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

// Document is a fetched page as seen by the crawl loop.
type Document struct {
	// URL is the final URL after redirects.
	URL string

	// Markup is the page markup decoded to UTF-8.
	Markup string

	// Links are the href targets of every <a href> element, resolved to
	// absolute URLs. They are not filtered or deduplicated.
	Links []string
}

// Fetcher retrieves a document. Implementations own timeouts; the crawl
// loop never retries.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*Document, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, target string) (*Document, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, target string) (*Document, error) {
	return f(ctx, target)
}

// HTTPFetcher fetches pages over HTTP and parses them with
// golang.org/x/net/html.
//
// Design decision: We require an external *http.Client because:
//  1. Proxy and Tor configuration is handled by the transport package
//  2. Timeouts belong to the client, not to the crawl loop
//  3. Tests can point it at httptest servers
type HTTPFetcher struct {
	// client performs the requests.
	client *http.Client

	// userAgent is the User-Agent header to use.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher using client.
// A nil client means http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...HTTPFetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch implements Fetcher. Every failure is returned as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isMarkup(contentType) {
		return nil, &FetchError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType),
		}
	}

	// Decode to UTF-8 using the declared or sniffed charset.
	body := io.LimitReader(resp.Body, f.maxBodySize)
	decoded, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	raw, err := io.ReadAll(decoded)
	if err != nil {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	base := resp.Request.URL
	if base == nil {
		base, err = url.Parse(target)
		if err != nil {
			return nil, &FetchError{URL: target, Err: err}
		}
	}

	markup := string(raw)
	links, err := extractLinks(markup, base)
	if err != nil {
		return nil, &FetchError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	return &Document{
		URL:    base.String(),
		Markup: markup,
		Links:  links,
	}, nil
}

// extractLinks parses markup and resolves every a[href] against the page
// URL, or against <base href> when the document declares one.
func extractLinks(markup string, pageURL *url.URL) ([]string, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = pageURL.ResolveReference(ref)
		}
	}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})

	return links, nil
}

// isMarkup reports whether a Content-Type names a document worth parsing.
// A missing header is accepted and left to sniffing.
func isMarkup(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/xml":
		return true
	case strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+xml"):
		return true
	default:
		return false
	}
}
