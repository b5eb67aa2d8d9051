package crawler

import (
	"net/url"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "drops fragment", input: "http://example.com/a#section", want: "http://example.com/a"},
		{name: "lower-cases scheme and host", input: "HTTP://Example.COM/Path", want: "http://example.com/Path"},
		{name: "keeps query", input: "http://example.com/a?b=1&a=2", want: "http://example.com/a?b=1&a=2"},
		{name: "keeps port", input: "http://example.com:8080/", want: "http://example.com:8080/"},
		{name: "keeps empty path", input: "http://example.com", want: "http://example.com"},
		{name: "trims space", input: "  http://example.com/  ", want: "http://example.com/"},
		{name: "relative", input: "/a/b", wantErr: true},
		{name: "no host", input: "mailto:a@b.com", wantErr: true},
		{name: "garbage", input: "::", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeURL(%q) = %q, expected error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"http://example.com/", "http://example.com/about", true},
		{"http://example.com/", "https://EXAMPLE.com/", true},
		{"http://example.com/", "http://example.com:8080/", true},
		{"http://example.com/", "http://www.example.com/", false},
		{"http://example.com/", "http://other.org/", false},
		{"http://example.com/", "mailto:a@example.com", false},
		{"http://example.com/", "/relative", false},
		{"::", "http://example.com/", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+" "+tt.b, func(t *testing.T) {
			t.Parallel()
			if got := SameHost(tt.a, tt.b); got != tt.want {
				t.Errorf("SameHost(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPathFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter pathFilter
		path   string
		want   bool
	}{
		{name: "no patterns", filter: pathFilter{}, path: "/anything", want: true},
		{name: "ignored prefix", filter: pathFilter{ignore: []string{"/admin/*"}}, path: "/admin/users", want: false},
		{name: "ignored prefix root", filter: pathFilter{ignore: []string{"/admin/*"}}, path: "/admin", want: false},
		{name: "ignored extension", filter: pathFilter{ignore: []string{"*.pdf"}}, path: "/docs/file.pdf", want: false},
		{name: "not ignored", filter: pathFilter{ignore: []string{"*.pdf"}}, path: "/docs/file.html", want: true},
		{name: "follow match", filter: pathFilter{follow: []string{"/blog/*"}}, path: "/blog/post", want: true},
		{name: "follow miss", filter: pathFilter{follow: []string{"/blog/*"}}, path: "/shop", want: false},
		{name: "ignore wins over follow", filter: pathFilter{ignore: []string{"/blog/private*"}, follow: []string{"/blog/*"}}, path: "/blog/private", want: false},
		{name: "empty path is root", filter: pathFilter{follow: []string{"/"}}, path: "", want: true},
		{name: "bare file pattern", filter: pathFilter{ignore: []string{"report-??.html"}}, path: "/a/report-01.html", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.filter.allows(&url.URL{Path: tt.path})
			if got := err == nil; got != tt.want {
				t.Errorf("allows(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
