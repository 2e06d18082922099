package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeCSV  = "text/csv"
	mimeText = "text/plain"
	mimeZip  = "application/zip"
)

type studentImporter interface {
	ImportStudents(candidates []models.Student) models.ImportSummary
}

// ImportResult reports a completed spreadsheet import.
type ImportResult struct {
	Format     string `json:"format"`
	Candidates int    `json:"candidates"`
	models.ImportSummary
}

// ImportService turns uploaded spreadsheets into students.
type ImportService struct {
	resolver *ImportResolver
	store    studentImporter
	maxSize  int64
	logger   *zap.Logger
}

// NewImportService constructs an ImportService. maxSize <= 0 disables the size check.
func NewImportService(resolver *ImportResolver, store studentImporter, maxSize int64, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewImportResolver(nil, logger)
	}
	return &ImportService{resolver: resolver, store: store, maxSize: maxSize, logger: logger}
}

// ImportFile reads an XLSX or CSV upload, resolves its columns and adds the
// students whose usernames are new. Nothing is added when resolution fails.
func (s *ImportService) ImportFile(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	data, err := s.readAll(r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, rows, err := ReadSpreadsheet(filename, data)
	if err != nil {
		return nil, err
	}

	candidates, err := s.resolver.Resolve(rows)
	if err != nil {
		s.logger.Info("student import rejected", zap.String("file", filename), zap.Error(err))
		return nil, err
	}

	summary := s.store.ImportStudents(candidates)
	s.logger.Info("student import finished",
		zap.String("file", filename),
		zap.String("format", format),
		zap.Int("candidates", len(candidates)),
		zap.Int("added", summary.AddedCount()),
		zap.Int("skipped", len(summary.Skipped)),
	)
	return &ImportResult{Format: format, Candidates: len(candidates), ImportSummary: summary}, nil
}

func (s *ImportService) readAll(r io.Reader) ([]byte, error) {
	if s.maxSize <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.maxSize))
	}
	return data, nil
}

// ReadSpreadsheet detects the file type from its content and returns the
// cell grid of the first sheet.
func ReadSpreadsheet(filename string, data []byte) (string, [][]string, error) {
	mtype := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case mtype.Is(mimeXLSX), mtype.Is(mimeZip) && ext == ".xlsx":
		rows, err := readXLSX(data)
		return "xlsx", rows, err
	case mtype.Is(mimeCSV), mtype.Is(mimeText):
		rows, err := readCSV(data)
		return "csv", rows, err
	default:
		return "", nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported file type %s", mtype.String()))
	}
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, "unreadable xlsx file")
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, "unreadable xlsx sheet")
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, "malformed csv file")
	}
	return rows, nil
}
