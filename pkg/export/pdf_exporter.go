package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a tabular A4 report.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and subtitle above the table.
func (e *PDFExporter) Render(data Dataset, title, subtitle string) ([]byte, error) {
	if err := data.validate("pdf"); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	}
	if subtitle != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, tr(subtitle), "", 1, "L", false, 0, "")
	}
	if title != "" || subtitle != "" {
		pdf.Ln(4)
	}

	widths := columnWidths(data, 190.0)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(66, 133, 244)
	pdf.SetTextColor(255, 255, 255)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range data.Rows {
		for i, value := range data.record(row) {
			align := ""
			if data.Numeric[data.Headers[i]] {
				align = "C"
			}
			pdf.CellFormat(widths[i], 7, tr(value), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths gives text columns twice the width of numeric ones.
func columnWidths(data Dataset, total float64) []float64 {
	units := 0.0
	for _, header := range data.Headers {
		if data.Numeric[header] {
			units++
		} else {
			units += 2
		}
	}
	widths := make([]float64, len(data.Headers))
	for i, header := range data.Headers {
		share := 2.0
		if data.Numeric[header] {
			share = 1
		}
		widths[i] = total * share / units
	}
	return widths
}
