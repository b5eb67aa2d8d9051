package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/mailspider/internal/app"
	"github.com/nao1215/mailspider/internal/config"
	"github.com/nao1215/mailspider/internal/crawler"
	"github.com/nao1215/mailspider/internal/metrics"
	"github.com/nao1215/mailspider/internal/model"
	"github.com/nao1215/mailspider/internal/report"
	"github.com/nao1215/mailspider/internal/store"
	"github.com/nao1215/mailspider/internal/transport"
)

// metricsShutdownTimeout bounds the metrics server shutdown after a crawl.
const metricsShutdownTimeout = 5 * time.Second

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site and collect email addresses",
		Long: `Crawl visits every page reachable from the seed URL on the same host
and collects the email addresses found in the page markup.

Visited links and new addresses are printed to stderr as they are found.
When the crawl ends the report is written to stdout or --output. Press
Ctrl+C to stop early; the report then contains the partial results.

Examples:
  # Crawl a site and print a text report
  mailspider crawl https://example.com

  # Only report addresses containing "sales", as JSON
  mailspider crawl --filter sales --format json https://example.com

  # Stop after 100 pages and write an Excel workbook
  mailspider crawl --max-pages 100 --format xlsx -o emails.xlsx https://example.com

  # Crawl through a SOCKS5 proxy and archive the result
  mailspider crawl --proxy 127.0.0.1:9050 --save https://example.com

  # Crawl through an embedded Tor daemon
  mailspider crawl --tor http://exampleonion.onion

Configuration file (.mailspider) example:
  defaults:
    ignorePatterns:
      - "/logout*"
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      maxPages: 200`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Transport flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().String("proxy", "",
		"Route requests through the SOCKS5 proxy at host:port")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and crawl through it")
	cmd.Flags().Duration("tor-startup-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Crawl behavior flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Stop after visiting this many pages (0 = unlimited)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from each response body")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .mailspider in current or home directory)")

	// Report flags
	cmd.Flags().StringP("filter", "f", "",
		"Only report emails containing this text (case-insensitive)")
	cmd.Flags().String("format", string(config.FormatText),
		"Report format: text, json, markdown or xlsx")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("links", false,
		"List visited URLs in the text report")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not print links and emails while crawling")

	// Archive and metrics flags
	cmd.Flags().Bool("save", false,
		"Store the result in the archive database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the archive database")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address while crawling (e.g., :9090)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)
	slog.SetDefault(logger)

	path, err := cfg.LoadSiteConfigs()
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}
	if path != "" {
		logger.Info("loaded configuration file", "path", path)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	c := &crawlCommand{
		cfg:    cfg,
		logger: logger,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}
	return c.run(ctx)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if len(args) > 0 {
		cfg.Seed = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-startup-timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.Filter, err = flags.GetString("filter"); err != nil {
		return nil, err
	}

	format, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}
	if cfg.Format, err = config.ParseFormat(format); err != nil {
		return nil, err
	}

	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ShowLinks, err = flags.GetBool("links"); err != nil {
		return nil, err
	}
	if cfg.Quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, err
	}
	if cfg.Save, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// crawlCommand holds what one crawl invocation needs.
type crawlCommand struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// run crawls cfg.Seed, then writes, and optionally archives, the report.
func (c *crawlCommand) run(ctx context.Context) error {
	client, stopTransport, err := c.newTransport(ctx)
	if err != nil {
		return err
	}
	defer stopTransport()

	settings := c.cfg.CrawlSettings(seedHost(c.cfg.Seed))
	recorder := metrics.NewRecorder()

	fetcher := crawler.NewHTTPFetcher(client.HTTPClient(),
		crawler.WithUserAgent(settings.UserAgent),
		crawler.WithMaxBodySize(c.cfg.MaxBodySize),
	)
	spider := crawler.New(fetcher,
		crawler.WithLogger(c.logger),
		crawler.WithMetrics(recorder),
		crawler.WithMaxPages(settings.MaxPages),
		crawler.WithIgnorePatterns(settings.IgnorePatterns),
		crawler.WithFollowPatterns(settings.FollowPatterns),
	)

	var listener crawler.Sink
	if !c.cfg.Quiet {
		listener = newStreamPrinter(c.stderr)
	}
	a := app.New(spider, app.WithLogger(c.logger), app.WithListener(listener))

	if err := a.StartCrawl(ctx, c.cfg.Seed); err != nil {
		return err
	}

	stopSignals := c.handleSignals(a)
	defer stopSignals()

	harvest, err := c.wait(ctx, a, recorder)
	if err != nil {
		return err
	}

	if c.cfg.Save {
		if err := c.save(ctx, harvest); err != nil {
			return err
		}
	}

	if c.cfg.Filter != "" {
		matches := a.FilterDisplayedEmails(c.cfg.Filter)
		c.logger.Info("applied email filter", "filter", c.cfg.Filter, "matches", len(matches))
		harvest = harvest.Restricted(matches)
	}

	return c.outputReport(harvest)
}

// wait blocks until the crawl ends. When MetricsAddr is set, a metrics
// server runs alongside and is shut down afterwards.
func (c *crawlCommand) wait(ctx context.Context, a *app.App, recorder *metrics.Recorder) (*model.Harvest, error) {
	g, gctx := errgroup.WithContext(ctx)
	crawlDone := make(chan struct{})

	var harvest *model.Harvest
	g.Go(func() error {
		defer close(crawlDone)
		// Every session ends with a terminal event once stopped, so this
		// does not need a cancellable context.
		h, err := a.Wait(context.WithoutCancel(gctx))
		harvest = h
		return err
	})

	// Stop the crawl if a sibling fails.
	g.Go(func() error {
		select {
		case <-gctx.Done():
			a.StopCrawl()
		case <-crawlDone:
		}
		return nil
	})

	if c.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              c.cfg.MetricsAddr,
			Handler:           metricsMux(recorder),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			c.logger.Info("serving metrics", "addr", c.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-crawlDone:
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return harvest, nil
}

// metricsMux serves the recorder on /metrics.
func metricsMux(recorder *metrics.Recorder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	return mux
}

// handleSignals makes the first SIGINT or SIGTERM stop the crawl
// cooperatively. The returned function stops listening.
func (c *crawlCommand) handleSignals(a *app.App) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
			c.logger.Info("received shutdown signal, stopping crawl...")
			fmt.Fprintln(c.stderr, "Stopping crawl, writing partial report...")
			a.StopCrawl()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// newTransport builds the HTTP transport selected by the flags. The
// returned function releases it, stopping an embedded Tor daemon.
func (c *crawlCommand) newTransport(ctx context.Context) (*transport.Client, func(), error) {
	opts := []transport.Option{transport.WithSites(siteResolver(c.cfg))}
	noop := func() {}

	switch {
	case c.cfg.UseTor:
		return c.startEmbeddedTor(ctx, opts)

	case c.cfg.ProxyAddress != "":
		client, err := transport.NewClient(c.cfg.Timeout, append(opts, transport.WithProxy(c.cfg.ProxyAddress))...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckProxy(ctx); status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Err(), c.cfg.ProxyAddress)
		}
		c.logger.Info("proxy connection verified", "address", c.cfg.ProxyAddress)
		return client, noop, nil

	default:
		client, err := transport.NewClient(c.cfg.Timeout, opts...)
		if err != nil {
			return nil, nil, err
		}
		return client, noop, nil
	}
}

// startEmbeddedTor starts a Tor daemon and returns a client routed through it.
func (c *crawlCommand) startEmbeddedTor(ctx context.Context, opts []transport.Option) (*transport.Client, func(), error) {
	fmt.Fprintln(c.stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(c.stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(c.cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		c.logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			c.logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	c.logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)

	client, err := embeddedTor.NewClient(c.cfg.Timeout, opts...)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckProxy(ctx); status != transport.ProxyStatusOK {
		stop()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}

	fmt.Fprintf(c.stderr, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", embeddedTor.SocksAddr())
	return client, stop, nil
}

// siteResolver exposes the per-host cookie and headers to the transport.
func siteResolver(cfg *config.Config) transport.SiteResolver {
	return func(host string) (string, map[string]string) {
		s := cfg.CrawlSettings(host)
		return s.Cookie, s.Headers
	}
}

// seedHost returns the hostname of seed, or "" when it does not parse.
// The crawler reports invalid seeds itself.
func seedHost(seed string) string {
	u, err := url.Parse(seed)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// save archives the unfiltered harvest.
func (c *crawlCommand) save(ctx context.Context, h *model.Harvest) error {
	archive, err := store.Open(c.cfg.DBDir, store.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	if err := archive.SaveHarvest(context.WithoutCancel(ctx), h); err != nil {
		return fmt.Errorf("failed to save harvest: %w", err)
	}

	c.logger.Info("harvest saved", "session", h.SessionID, "path", archive.Path())
	fmt.Fprintf(c.stderr, "Saved session %s to %s\n", h.SessionID, archive.Path())
	return nil
}

// outputReport writes h in the configured format.
func (c *crawlCommand) outputReport(h *model.Harvest) error {
	output := c.stdout
	if c.cfg.ReportFile != "" {
		dir := filepath.Dir(c.cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// 0600: reports list harvested addresses.
		f, err := os.OpenFile(c.cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(c.cfg.Format, output, c.cfg.ShowLinks).Write(h)
	return err
}

// newReportWriter returns the writer for format. Unknown formats fall back
// to text; Validate rejects them earlier. showLinks only affects text.
func newReportWriter(format config.Format, output io.Writer, showLinks bool) report.Writer {
	switch format {
	case config.FormatJSON:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case config.FormatMarkdown:
		return report.NewMarkdownWriter(output)
	case config.FormatXLSX:
		return report.NewXLSXWriter(output)
	default:
		return report.NewTextWriter(output, report.WithLinks(showLinks))
	}
}

// newStreamPrinter returns a sink printing one line per event.
func newStreamPrinter(w io.Writer) crawler.Sink {
	return func(ev crawler.Event) {
		switch ev := ev.(type) {
		case crawler.LinkVisited:
			fmt.Fprintf(w, "link %s\n", ev.URL)
		case crawler.EmailFound:
			fmt.Fprintf(w, "email %s\n", ev.Email)
		case crawler.FetchFailed:
			fmt.Fprintf(w, "failed %s: %v\n", ev.URL, ev.Err)
		case crawler.Completed:
			fmt.Fprintln(w, "completed")
		case crawler.Cancelled:
			fmt.Fprintln(w, "cancelled")
		}
	}
}
