package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
	"github.com/noah-isme/gradebook/pkg/export"
)

// ExportFormat names a downloadable document type.
type ExportFormat string

const (
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatCSV  ExportFormat = "csv"
)

const (
	gradesSheetName  = "Grades"
	maxFilenameRunes = 100
)

// ExportDocument is a rendered file ready to be sent to the client.
type ExportDocument struct {
	Filename    string
	ContentType string
	Body        []byte
}

type exportSource interface {
	ExportRows(subjectID string) (models.Subject, []models.ExportRow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportService renders per subject grade reports.
type ExportService struct {
	source  exportSource
	csv     csvRenderer
	pdf     pdfRenderer
	xlsx    xlsxRenderer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers default to the pkg/export implementations.
func NewExportService(source exportSource, metrics *MetricsService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, xlsx: xlsx, metrics: metrics, logger: logger}
}

// ParseExportFormat validates a format query value.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch format := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case ExportFormatPDF, ExportFormatXLSX, ExportFormatCSV:
		return format, nil
	case "":
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// Render builds the report of subjectID in format.
func (s *ExportService) Render(ctx context.Context, subjectID string, format ExportFormat) (*ExportDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subject, rows, err := s.source.ExportRows(subjectID)
	if err != nil {
		return nil, err
	}

	var doc ExportDocument
	switch format {
	case ExportFormatPDF:
		doc.Body, err = s.pdf.Render(pdfDataset(rows), subject.NameEn, "Subject Code: "+subject.Code)
		doc.Filename = sanitizeFilename(subject.NameEn) + "_Report.pdf"
		doc.ContentType = "application/pdf"
	case ExportFormatXLSX:
		doc.Body, err = s.xlsx.Render(sheetDataset(rows, "0"), gradesSheetName)
		doc.Filename = sanitizeFilename(subject.NameEn) + "_Grades.xlsx"
		doc.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatCSV:
		doc.Body, err = s.csv.Render(sheetDataset(rows, "-"))
		doc.Filename = sanitizeFilename(subject.NameEn) + "_Grades.csv"
		doc.ContentType = "text/csv; charset=utf-8"
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		s.logger.Error("render export failed", zap.String("subject_id", subjectID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render export")
	}

	s.metrics.RecordExport(string(format))
	s.logger.Info("export rendered", zap.String("subject_id", subjectID), zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return &doc, nil
}

// pdfDataset shows unset components as "-" and an unset total as 0.
func pdfDataset(rows []models.ExportRow) export.Dataset {
	data := export.Dataset{
		Headers: []string{"ID", "Name", "Ex1", "Ex2", "CW", "Final", "Total", "Abs"},
		Rows:    make([]map[string]string, 0, len(rows)),
		Numeric: map[string]bool{"Ex1": true, "Ex2": true, "CW": true, "Final": true, "Total": true, "Abs": true},
	}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"ID":    row.Username,
			"Name":  row.FullName,
			"Ex1":   row.Exam1.Format("-"),
			"Ex2":   row.Exam2.Format("-"),
			"CW":    row.Coursework.Format("-"),
			"Final": row.FinalExam.Format("-"),
			"Total": row.Total.Format("0"),
			"Abs":   strconv.Itoa(row.AbsenceCount),
		})
	}
	return data
}

// sheetDataset renders unset scores, including the total, as placeholder.
func sheetDataset(rows []models.ExportRow, placeholder string) export.Dataset {
	data := export.Dataset{
		Headers: []string{"ID", "Name", "Exam1", "Exam2", "Coursework", "Final", "Total", "Absences"},
		Rows:    make([]map[string]string, 0, len(rows)),
		Numeric: map[string]bool{"Exam1": true, "Exam2": true, "Coursework": true, "Final": true, "Total": true, "Absences": true},
	}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"ID":         row.Username,
			"Name":       row.FullName,
			"Exam1":      row.Exam1.Format(placeholder),
			"Exam2":      row.Exam2.Format(placeholder),
			"Coursework": row.Coursework.Format(placeholder),
			"Final":      row.FinalExam.Format(placeholder),
			"Total":      row.Total.Format(placeholder),
			"Absences":   strconv.Itoa(row.AbsenceCount),
		})
	}
	return data
}

func sanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "subject"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "\"", "", "..", ".", "\n", " ", "\r", " ")
	result := []rune(replacer.Replace(raw))
	if len(result) > maxFilenameRunes {
		result = result[:maxFilenameRunes]
	}
	return string(result)
}
