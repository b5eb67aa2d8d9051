package report

import (
	"cmp"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/mailspider/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
//  1. Tables without hand-written pipe escaping
//  2. GitHub-flavored markdown alerts and collapsible details
//  3. Mermaid charts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the harvest in Markdown format.
func (w *MarkdownWriter) Write(h *model.Harvest) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, h)
	w.writeEmails(md, h)
	w.writeLinks(md, h)
	w.writeFailures(md, h)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the session table and an alert describing the outcome.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, h *model.Harvest) {
	md.H1("mailspider Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + h.Seed + "`"},
		{"Session", "`" + h.SessionID + "`"},
		{"Started", h.StartedAt.Local().Format(timeLayout)},
	}
	if h.Finished() {
		rows = append(rows, []string{"Duration", formatDuration(h.Duration())})
	}
	rows = append(rows,
		[]string{"Status", statusText(h)},
		[]string{"Pages Visited", strconv.Itoa(len(h.Links))},
		[]string{"Failed Pages", strconv.Itoa(len(h.Failures))},
		[]string{"Emails", strconv.Itoa(len(h.Emails))},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case h.Status == model.StatusCancelled:
		md.Warningf("The crawl was cancelled after %d page(s). Results are partial.", len(h.Links))
	case len(h.Emails) == 0:
		md.Note("No email addresses were found.")
	default:
		md.Tip("Crawl completed. Every reachable page on the seed host was visited.")
	}
	md.PlainText("")
}

// writeEmails writes the email table and a domain distribution chart.
func (w *MarkdownWriter) writeEmails(md *markdown.Markdown, h *model.Harvest) {
	md.H2("Emails")
	md.PlainText("")

	if len(h.Emails) == 0 {
		md.PlainText("No email addresses found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(h.Emails))
	for i, e := range h.Emails {
		rows[i] = []string{"`" + e.Address + "`", e.Page}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Address", "Found On"},
		Rows:   rows,
	})
	md.PlainText("")

	domains := domainCounts(h.Emails)
	if len(domains) > 1 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Emails by Domain"),
			piechart.WithShowData(true),
		)
		for _, d := range domains {
			chart.LabelAndIntValue(d.domain, uint64(d.count)) //nolint:gosec // count is positive
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

// writeLinks writes the visited URLs inside a collapsible block.
func (w *MarkdownWriter) writeLinks(md *markdown.Markdown, h *model.Harvest) {
	md.H2("Visited Links")
	md.PlainText("")

	if len(h.Links) == 0 {
		md.PlainText("No pages were visited.")
		md.PlainText("")
		return
	}

	md.Details(strconv.Itoa(len(h.Links))+" page(s)", "- "+strings.Join(h.Links, "\n- "))
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, h *model.Harvest) {
	if len(h.Failures) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")

	rows := make([][]string, len(h.Failures))
	for i, f := range h.Failures {
		rows[i] = []string{f.URL, truncateString(f.Reason, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [mailspider](https://github.com/nao1215/mailspider)*")
}

type domainCount struct {
	domain string
	count  int
}

// domainCounts groups emails by domain, most frequent first.
func domainCounts(emails []model.Email) []domainCount {
	counts := make(map[string]int)
	for _, e := range emails {
		counts[emailDomain(e.Address)]++
	}

	out := make([]domainCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, domainCount{domain: d, count: n})
	}
	slices.SortFunc(out, func(a, b domainCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.domain, b.domain)
	})
	return out
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
