// Package report renders a model.Harvest for people and tools.
//
// This package contains writers for different output formats:
//   - TextWriter: plain text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: GitHub flavored Markdown for sharing
//   - XLSXWriter: an Excel workbook with one sheet per section
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) so new output formats never touch the
// crawl or the archive.
package report
