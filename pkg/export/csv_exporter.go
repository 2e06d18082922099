package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM lets spreadsheet applications detect UTF-8, which Arabic names need.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := e.Write(buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset as CSV into w, prefixed with a UTF-8 byte order mark.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if err := data.validate("csv"); err != nil {
		return err
	}
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write csv bom: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(data.record(row)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
