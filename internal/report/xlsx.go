package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/mailspider/internal/model"
)

// Sheet names used by XLSXWriter.
const (
	SheetSummary  = "Summary"
	SheetEmails   = "Emails"
	SheetLinks    = "Links"
	SheetFailures = "Failures"
)

// XLSXWriter outputs reports as an Excel workbook with one sheet per
// section. The output should be a file; the format is binary.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the harvest as an XLSX workbook.
func (w *XLSXWriter) Write(h *model.Harvest) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return 0, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1565C0"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}

	summary := [][]string{
		{"Seed", h.Seed},
		{"Session", h.SessionID},
		{"Started", h.StartedAt.Local().Format(timeLayout)},
		{"Status", statusText(h)},
		{"Pages Visited", strconv.Itoa(len(h.Links))},
		{"Failed Pages", strconv.Itoa(len(h.Failures))},
		{"Emails", strconv.Itoa(len(h.Emails))},
	}
	if h.Finished() {
		summary = append(summary, []string{"Duration", formatDuration(h.Duration())})
	}
	if err := writeRows(f, SheetSummary, nil, summary, headerStyle); err != nil {
		return 0, err
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 18)
	_ = f.SetColWidth(SheetSummary, "B", "B", 60)

	emails := make([][]string, len(h.Emails))
	for i, e := range h.Emails {
		emails[i] = []string{e.Address, emailDomain(e.Address), e.Page, e.FoundAt.Local().Format(timeLayout)}
	}
	if err := addSheet(f, SheetEmails, []string{"Address", "Domain", "Found On", "Found At"}, emails, headerStyle); err != nil {
		return 0, err
	}

	links := make([][]string, len(h.Links))
	for i, l := range h.Links {
		links[i] = []string{l}
	}
	if err := addSheet(f, SheetLinks, []string{"URL"}, links, headerStyle); err != nil {
		return 0, err
	}

	failures := make([][]string, len(h.Failures))
	for i, fl := range h.Failures {
		failures[i] = []string{fl.URL, fl.Reason}
	}
	if err := addSheet(f, SheetFailures, []string{"URL", "Reason"}, failures, headerStyle); err != nil {
		return 0, err
	}

	n, err := f.WriteTo(w.output)
	return int(n), err
}

// addSheet creates a sheet with a frozen, filterable header row.
func addSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	if err := writeRows(f, sheet, header, rows, headerStyle); err != nil {
		return err
	}

	for i := range header {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		_ = f.SetColWidth(sheet, col, col, 40)
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1), nil); err != nil {
		return fmt.Errorf("failed to add filter to %s: %w", sheet, err)
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeRows writes an optional header row followed by rows.
func writeRows(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	rowIdx := 1
	if header != nil {
		if err := setRow(f, sheet, rowIdx, header); err != nil {
			return err
		}
		lastCell, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", lastCell, headerStyle); err != nil {
			return err
		}
		rowIdx++
	}

	for _, row := range rows {
		if err := setRow(f, sheet, rowIdx, row); err != nil {
			return err
		}
		rowIdx++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowIdx int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", rowIdx, sheet, err)
	}
	return nil
}
