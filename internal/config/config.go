package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout applies to each HTTP request, not to the whole crawl.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages of 0 means the crawl runs until the frontier is empty.
	DefaultMaxPages = 0

	// AppName is the application name used for XDG directory paths.
	AppName = "mailspider"

	// DefaultUserAgent identifies mailspider in HTTP requests.
	DefaultUserAgent = "mailspider/1.0 (+https://github.com/nao1215/mailspider)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory exhaustion
	// from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Format is a report output format.
type Format string

// Supported report formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat converts a flag value into a Format. Matching ignores case
// and accepts "md" for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Config holds all configuration options for mailspider.
// This struct is populated from CLI flags and passed through the
// application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// because the number of options is small and every command reads only a
// handful of them.
type Config struct {
	// Seed is the URL the crawl starts from.
	Seed string

	// Timeout is the timeout of each HTTP request.
	Timeout time.Duration

	// MaxPages is the maximum number of pages fetched per session.
	// 0 means unlimited.
	MaxPages int

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and crawls through it.
	// Mutually exclusive with ProxyAddress.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used when UseTor is true.
	TorStartupTimeout time.Duration

	// Filter narrows the reported emails to those containing the substring,
	// ignoring case. Empty means no filtering.
	Filter string

	// Format is the report format.
	Format Format

	// ReportFile is the output file path for the report.
	// When empty, the report is written to stdout.
	ReportFile string

	// ShowLinks lists every visited URL in the text report.
	ShowLinks bool

	// Quiet suppresses the live link/email stream.
	Quiet bool

	// Save stores the finished harvest in the archive database.
	Save bool

	// DBDir is the directory of the archive database.
	// Defaults to the XDG data directory (~/.local/share/mailspider on Linux).
	DBDir string

	// MetricsAddr exposes Prometheus metrics on this address while
	// crawling. Empty disables the endpoint.
	MetricsAddr string

	// ConfigFilePath is the path to the site configuration file.
	// If empty, the tool searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the site configurations loaded from the config file.
	SiteConfigs *File

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because several defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:           DefaultTimeout,
		MaxPages:          DefaultMaxPages,
		MaxBodySize:       DefaultMaxBodySize,
		UserAgent:         DefaultUserAgent,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Format:            FormatText,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for mailspider.
// On Linux: ~/.local/share/mailspider
// On macOS: ~/Library/Application Support/mailspider
// On Windows: %LOCALAPPDATA%\mailspider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for mailspider.
// On Linux: ~/.config/mailspider
// On macOS: ~/Library/Application Support/mailspider
// On Windows: %APPDATA%\mailspider
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Seed) == "" {
		return ErrNoSeed
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	switch c.Format {
	case FormatText, FormatJSON, FormatMarkdown:
	case FormatXLSX:
		if c.ReportFile == "" {
			return ErrXLSXNeedsOutput
		}
	default:
		return ErrUnknownFormat
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingTransport
	}

	if c.UseTor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTorStartupTimeout
	}

	return nil
}

// CrawlSettings are the effective settings for crawling one host.
type CrawlSettings struct {
	UserAgent      string
	MaxPages       int
	Cookie         string
	Headers        map[string]string
	IgnorePatterns []string
	FollowPatterns []string
}

// CrawlSettings merges the global options with the site file entry for
// host. Values set in the site file take precedence.
func (c *Config) CrawlSettings(host string) CrawlSettings {
	s := CrawlSettings{
		UserAgent: c.UserAgent,
		MaxPages:  c.MaxPages,
	}
	if c.SiteConfigs == nil {
		return s
	}

	site := c.SiteConfigs.GetSiteConfig(host)
	if site.UserAgent != "" {
		s.UserAgent = site.UserAgent
	}
	if site.MaxPages != 0 {
		s.MaxPages = site.MaxPages
	}
	s.Cookie = site.Cookie
	s.Headers = site.Headers
	s.IgnorePatterns = site.IgnorePatterns
	s.FollowPatterns = site.FollowPatterns
	return s
}
