package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
	"github.com/noah-isme/gradebook/pkg/export"
)

type exportSourceStub struct {
	subject models.Subject
	rows    []models.ExportRow
	err     error
}

func (s exportSourceStub) ExportRows(string) (models.Subject, []models.ExportRow, error) {
	return s.subject, s.rows, s.err
}

type recordingPDF struct {
	data     export.Dataset
	title    string
	subtitle string
}

func (r *recordingPDF) Render(data export.Dataset, title, subtitle string) ([]byte, error) {
	r.data, r.title, r.subtitle = data, title, subtitle
	return []byte("%PDF-1.3"), nil
}

type failingCSV struct{}

func (failingCSV) Render(export.Dataset) ([]byte, error) {
	return nil, errors.New("writer closed")
}

func exportFixture() exportSourceStub {
	return exportSourceStub{
		subject: models.Subject{ID: "sub-1", Code: "PHY-2", NameEn: "Physics / Lab", NameAr: "فيزياء"},
		rows: []models.ExportRow{
			{StudentID: "s1", Username: "2023001", FullName: "أحمد علي", Exam1: models.ScoreOf(18), Exam2: models.ScoreOf(0), Total: models.ScoreOf(18), AbsenceCount: 2},
			{StudentID: "s2", Username: "2023002", FullName: "Bob"},
		},
	}
}

func TestParseExportFormat(t *testing.T) {
	cases := map[string]ExportFormat{"": ExportFormatPDF, "pdf": ExportFormatPDF, " XLSX ": ExportFormatXLSX, "csv": ExportFormatCSV}
	for raw, want := range cases {
		got, err := ParseExportFormat(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseExportFormat("docx")
	assert.True(t, errors.Is(err, appErrors.ErrUnsupportedFormat))
}

func TestExportServicePDFDataset(t *testing.T) {
	pdf := &recordingPDF{}
	svc := NewExportService(exportFixture(), nil, zap.NewNop(), nil, pdf, nil)

	doc, err := svc.Render(context.Background(), "sub-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "Physics - Lab_Report.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "Physics / Lab", pdf.title)
	assert.Equal(t, "Subject Code: PHY-2", pdf.subtitle)
	assert.Equal(t, []string{"ID", "Name", "Ex1", "Ex2", "CW", "Final", "Total", "Abs"}, pdf.data.Headers)

	first := pdf.data.Rows[0]
	assert.Equal(t, "2023001", first["ID"])
	assert.Equal(t, "18", first["Ex1"])
	assert.Equal(t, "0", first["Ex2"])
	assert.Equal(t, "-", first["CW"])
	assert.Equal(t, "2", first["Abs"])

	second := pdf.data.Rows[1]
	assert.Equal(t, "-", second["Final"])
	assert.Equal(t, "0", second["Total"])
}

func TestExportServiceRealPDF(t *testing.T) {
	svc := NewExportService(exportFixture(), nil, nil, nil, nil, nil)

	doc, err := svc.Render(context.Background(), "sub-1", ExportFormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))
}

func TestExportServiceXLSX(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewExportService(exportFixture(), metrics, nil, nil, nil, nil)

	doc, err := svc.Render(context.Background(), "sub-1", ExportFormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "Physics - Lab_Grades.xlsx", doc.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(doc.Body))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	assert.Equal(t, []string{"Grades"}, f.GetSheetList())
	rows, err := f.GetRows("Grades")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Name", "Exam1", "Exam2", "Coursework", "Final", "Total", "Absences"}, rows[0])
	assert.Equal(t, []string{"2023001", "أحمد علي", "18", "0", "0", "0", "18", "2"}, rows[1])
	assert.Equal(t, []string{"2023002", "Bob", "0", "0", "0", "0", "0", "0"}, rows[2])

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, family := range families {
		if family.GetName() == "gradebook_exports_total" {
			found = true
			assert.Equal(t, 1.0, family.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestExportServiceCSV(t *testing.T) {
	svc := NewExportService(exportFixture(), nil, nil, nil, nil, nil)

	doc, err := svc.Render(context.Background(), "sub-1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "Physics - Lab_Grades.csv", doc.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", doc.ContentType)

	body := string(bytes.TrimPrefix(doc.Body, []byte{0xEF, 0xBB, 0xBF}))
	assert.Equal(t, "ID,Name,Exam1,Exam2,Coursework,Final,Total,Absences\n"+
		"2023001,أحمد علي,18,0,-,-,18,2\n"+
		"2023002,Bob,-,-,-,-,-,0\n", body)
}

func TestExportServiceErrors(t *testing.T) {
	missing := exportSourceStub{err: appErrors.Clone(appErrors.ErrNotFound, "subject not found")}
	svc := NewExportService(missing, nil, nil, nil, nil, nil)
	_, err := svc.Render(context.Background(), "ghost", ExportFormatPDF)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	svc = NewExportService(exportFixture(), nil, nil, failingCSV{}, nil, nil)
	_, err = svc.Render(context.Background(), "sub-1", ExportFormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	_, err = svc.Render(context.Background(), "sub-1", ExportFormat("odt"))
	assert.True(t, errors.Is(err, appErrors.ErrUnsupportedFormat))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Render(ctx, "sub-1", ExportFormatPDF)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "subject", sanitizeFilename("   "))
	assert.Equal(t, "a-b-c", sanitizeFilename("a/b\\c"))
	assert.Equal(t, "Report", sanitizeFilename(`"Report"`))
}

func TestSanitizeFilenameTruncatesByRune(t *testing.T) {
	name := sanitizeFilename(strings.Repeat("ع", 150))
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, 100, utf8.RuneCountInString(name))
	assert.Equal(t, "Math", sanitizeFilename("Math"))
}
