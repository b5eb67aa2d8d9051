package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/mailspider/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
//  1. The model already carries json tags, including omitzero
//  2. Output size is bounded by one crawl session
type JSONWriter struct {
	baseWriter

	// indent is the indentation string. Empty means compact output.
	indent string

	// version is recorded in the report envelope.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = "  "
	}
}

// WithVersion records the program version in the report.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the envelope written by JSONWriter.
//
// Design decision: We wrap the harvest rather than adding fields to it
// because the version is output metadata, not crawl data.
type JSONReport struct {
	// Version is the mailspider version that generated this report.
	Version string `json:"version,omitempty"`

	// Harvest is the session result.
	Harvest *model.Harvest `json:"harvest"`
}

// Write outputs the harvest wrapped in a JSONReport.
func (w *JSONWriter) Write(h *model.Harvest) (int, error) {
	var data []byte
	var err error

	report := JSONReport{Version: w.version, Harvest: h}
	if w.indent != "" {
		data, err = json.MarshalIndent(report, "", w.indent)
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
