package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/mailspider/internal/model"
)

// TextWriter outputs human-readable text reports.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
//  1. It works in all terminals without compatibility issues
//  2. It's easier to pipe to files or other tools
type TextWriter struct {
	baseWriter

	// showLinks lists every visited URL, not just the count.
	showLinks bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithLinks lists visited URLs in the report.
func WithLinks(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showLinks = show
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the harvest in human-readable format.
func (w *TextWriter) Write(h *model.Harvest) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, h)
	w.writeEmails(&sb, h)
	if w.showLinks {
		w.writeLinks(&sb, h)
	}
	w.writeFailures(&sb, h)

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeHeader(sb *strings.Builder, h *model.Harvest) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         MAILSPIDER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:      %s\n", h.Seed)
	fmt.Fprintf(sb, "Session:   %s\n", h.SessionID)
	fmt.Fprintf(sb, "Started:   %s\n", h.StartedAt.Local().Format(timeLayout))
	if h.Finished() {
		fmt.Fprintf(sb, "Duration:  %s\n", formatDuration(h.Duration()))
	}
	fmt.Fprintf(sb, "Status:    %s\n", statusText(h))
	fmt.Fprintf(sb, "Pages:     %d visited, %d failed\n", len(h.Links), len(h.Failures))
	fmt.Fprintf(sb, "Emails:    %d\n\n", len(h.Emails))
}

func (w *TextWriter) writeEmails(sb *strings.Builder, h *model.Harvest) {
	sb.WriteString("EMAILS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	if len(h.Emails) == 0 {
		sb.WriteString("  (none found)\n\n")
		return
	}
	for _, e := range h.Emails {
		fmt.Fprintf(sb, "  %s\n", e.Address)
		fmt.Fprintf(sb, "      found on %s\n", e.Page)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeLinks(sb *strings.Builder, h *model.Harvest) {
	sb.WriteString("VISITED LINKS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, l := range h.Links {
		fmt.Fprintf(sb, "  %s\n", l)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeFailures(sb *strings.Builder, h *model.Harvest) {
	if len(h.Failures) == 0 {
		return
	}
	sb.WriteString("FAILED PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	for _, f := range h.Failures {
		fmt.Fprintf(sb, "  %s\n      %s\n", f.URL, f.Reason)
	}
	sb.WriteString("\n")
}
