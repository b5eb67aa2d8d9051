package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// NormalizeURL returns the identity of a crawl target: the absolute URL with
// the fragment removed and the scheme and host lower-cased. Path and query
// are kept byte for byte.
//
// Design decision: We normalize conservatively because:
//  1. The fragment never changes what the server returns
//  2. Hosts are case-insensitive by definition, paths are not
//  3. Rewriting paths or sorting queries can merge distinct resources
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return "", fmt.Errorf("not an absolute URL with a host: %q", raw)
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	return u.String(), nil
}

// parseSeed validates and normalizes a seed URL.
func parseSeed(seed string) (*url.URL, string, error) {
	if strings.TrimSpace(seed) == "" {
		return nil, "", fmt.Errorf("%w: empty", ErrInvalidSeed)
	}

	normalized, err := NormalizeURL(seed)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}

	return u, normalized, nil
}

// SameHost reports whether two URLs name the same host. Hostnames are
// compared case-insensitively and ports are ignored. A URL that does not
// parse or has no host fails closed.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return sameHostname(ua, ub)
}

func sameHostname(a, b *url.URL) bool {
	ha, hb := a.Hostname(), b.Hostname()
	if ha == "" || hb == "" {
		return false
	}
	return strings.EqualFold(ha, hb)
}

// errPatternMismatch marks a URL excluded by ignore/follow patterns.
var errPatternMismatch = errors.New("excluded by path pattern")

// pathFilter applies optional glob patterns to URL paths.
type pathFilter struct {
	// ignore patterns exclude matching paths.
	ignore []string

	// follow patterns, when set, are the only paths allowed.
	follow []string
}

// allows checks a target against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and none matches, skip it
//  3. Otherwise, crawl it
func (f pathFilter) allows(target *url.URL) error {
	if len(f.ignore) == 0 && len(f.follow) == 0 {
		return nil
	}

	path := target.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.ignore {
		if matchPattern(pattern, path) {
			return errPatternMismatch
		}
	}

	if len(f.follow) == 0 {
		return nil
	}
	for _, pattern := range f.follow {
		if matchPattern(pattern, path) {
			return nil
		}
	}
	return errPatternMismatch
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users" and "/admin/a/b"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Bare file patterns such as "report-??.html" match the last segment.
	if !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
