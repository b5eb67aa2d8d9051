package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nao1215/mailspider/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the harvest to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(h *model.Harvest) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is used for every human-readable timestamp.
const timeLayout = "2006-01-02 15:04:05 MST"

// statusText describes how a session ended.
func statusText(h *model.Harvest) string {
	switch h.Status {
	case model.StatusCompleted:
		return "Completed"
	case model.StatusCancelled:
		return "Cancelled (partial results)"
	default:
		return "Running"
	}
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// emailDomain returns the part after the last "@".
func emailDomain(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return strings.ToLower(address[i+1:])
	}
	return address
}

// WriteSummaries writes one aligned line per archived session.
func WriteSummaries(output io.Writer, summaries []model.Summary) error {
	tw := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tSTATUS\tLINKS\tEMAILS\tFAILURES\tSEED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			s.SessionID,
			s.StartedAt.Local().Format(timeLayout),
			s.Status,
			s.LinkCount,
			s.EmailCount,
			s.FailureCount,
			s.Seed,
		)
	}
	return tw.Flush()
}
