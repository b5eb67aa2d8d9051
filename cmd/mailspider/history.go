package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/mailspider/internal/config"
	"github.com/nao1215/mailspider/internal/report"
	"github.com/nao1215/mailspider/internal/store"
)

// defaultHistoryLimit is how many sessions history lists by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show archived crawl results",
		Long: `History reads the results archived with "crawl --save".

Without arguments it lists the most recent sessions. With a session ID it
prints that session's report. --filter searches every archived email
address instead.

Examples:
  # List recent sessions
  mailspider history

  # Show one session as Markdown
  mailspider history --format markdown 3f2b7c1e-...

  # Find archived addresses containing "example.org"
  mailspider history --filter example.org

  # Delete a session
  mailspider history --delete 3f2b7c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the archive database")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of sessions to list (0 = all)")
	cmd.Flags().StringP("filter", "f", "",
		"Search archived emails containing this text (case-insensitive)")
	cmd.Flags().String("format", string(config.FormatText),
		"Report format when showing a session: text, json or markdown")
	cmd.Flags().Bool("links", false,
		"List visited URLs when showing a session as text")
	cmd.Flags().String("delete", "",
		"Delete the session with this ID")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	dbDir     string
	limit     int
	filter    string
	format    config.Format
	deleteID  string
	sessionID string
	showLinks bool
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger(cmd)

	archive, err := store.Open(opts.dbDir, store.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open archive (run \"crawl --save\" first): %w", err)
	}
	defer archive.Close()
	logger.Debug("archive opened", "path", archive.Path())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case opts.deleteID != "":
		if err := archive.DeleteSession(ctx, opts.deleteID); err != nil {
			return historyError(opts.deleteID, err)
		}
		fmt.Fprintf(out, "Deleted session %s\n", opts.deleteID)
		return nil

	case opts.sessionID != "":
		h, err := archive.GetHarvest(ctx, opts.sessionID)
		if err != nil {
			return historyError(opts.sessionID, err)
		}
		if opts.filter != "" {
			h = h.Filtered(opts.filter)
		}
		_, err = newReportWriter(opts.format, out, opts.showLinks).Write(h)
		return err

	case opts.filter != "":
		hits, err := archive.SearchEmails(ctx, opts.filter)
		if err != nil {
			return fmt.Errorf("failed to search archive: %w", err)
		}
		return writeEmailHits(out, hits)

	default:
		summaries, err := archive.ListSummaries(ctx, opts.limit)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(out, "No archived sessions.")
			return nil
		}
		return report.WriteSummaries(out, summaries)
	}
}

// parseHistoryOptions reads the history flags.
func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var opts historyOptions
	var err error
	flags := cmd.Flags()

	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.filter, err = flags.GetString("filter"); err != nil {
		return opts, err
	}
	if opts.deleteID, err = flags.GetString("delete"); err != nil {
		return opts, err
	}
	if opts.showLinks, err = flags.GetBool("links"); err != nil {
		return opts, err
	}

	format, err := flags.GetString("format")
	if err != nil {
		return opts, err
	}
	if opts.format, err = config.ParseFormat(format); err != nil {
		return opts, err
	}
	// The workbook is binary and history always writes to stdout.
	if opts.format == config.FormatXLSX {
		return opts, config.ErrXLSXNeedsOutput
	}

	if len(args) > 0 {
		opts.sessionID = args[0]
	}
	if opts.limit < 0 {
		return opts, errors.New("limit must be zero or positive")
	}
	if opts.deleteID != "" && opts.sessionID != "" {
		return opts, errors.New("--delete cannot be combined with a session ID argument")
	}
	return opts, nil
}

// historyError adds context to a lookup error. ErrNotFound already names
// the session.
func historyError(sessionID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return fmt.Errorf("failed to access session %s: %w", sessionID, err)
}

// writeEmailHits lists search results, one address per line.
func writeEmailHits(w io.Writer, hits []store.EmailHit) error {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matching emails.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tPAGE\tSESSION\tSEED")
	for _, hit := range hits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", hit.Address, hit.Page, hit.SessionID, hit.Seed)
	}
	return tw.Flush()
}
