package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
)

// Header synonyms per student field, English and Arabic. Matching is case
// sensitive and a header matches when it contains one of the synonyms.
var (
	firstNameHeaders = []string{"الاسم الأول", "First Name", "Firstname", "first_name"}
	lastNameHeaders  = []string{"الاسم الأخير", "Last Name", "Lastname", "last_name", "العائلة", "اللقب"}
	emailHeaders     = []string{"البريد", "Email", "email", "mail"}
	usernameHeaders  = []string{"المستخدم", "Username", "username", "User", "ID", "user_id"}
)

const unknownFullName = "Unknown"

// ColumnMap holds the resolved column index per field, -1 when absent.
type ColumnMap struct {
	FirstName int `json:"first_name"`
	LastName  int `json:"last_name"`
	Email     int `json:"email"`
	Username  int `json:"username"`
}

// MissingColumnsDetails is attached to IMPORT_MISSING_COLUMNS errors.
type MissingColumnsDetails struct {
	Headers []string `json:"headers"`
}

// ImportResolver maps an arbitrary spreadsheet grid onto student candidates.
type ImportResolver struct {
	now    func() time.Time
	logger *zap.Logger
}

// NewImportResolver constructs a resolver. now defaults to time.Now.
func NewImportResolver(now func() time.Time, logger *zap.Logger) *ImportResolver {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportResolver{now: now, logger: logger}
}

// ResolveColumns finds the first column, in column order, whose header matches each field.
func ResolveColumns(headers []string) ColumnMap {
	return ColumnMap{
		FirstName: findHeader(headers, firstNameHeaders),
		LastName:  findHeader(headers, lastNameHeaders),
		Email:     findHeader(headers, emailHeaders),
		Username:  findHeader(headers, usernameHeaders),
	}
}

func findHeader(headers, synonyms []string) int {
	for idx, header := range headers {
		for _, synonym := range synonyms {
			if strings.Contains(header, synonym) {
				return idx
			}
		}
	}
	return -1
}

// Resolve turns rows (header first) into candidates in input order. Candidate
// ids are left empty; the store assigns them on insert.
func (r *ImportResolver) Resolve(rows [][]string) ([]models.Student, error) {
	var headers []string
	if len(rows) > 0 {
		headers = make([]string, len(rows[0]))
		for i, cell := range rows[0] {
			headers[i] = strings.TrimSpace(cell)
		}
	}

	columns := ResolveColumns(headers)
	r.logger.Debug("import columns resolved", zap.Strings("headers", headers), zap.Any("columns", columns))

	if columns.Username == -1 && columns.FirstName == -1 {
		msg := fmt.Sprintf("could not find required columns, found headers: %s", strings.Join(headers, ", "))
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrImportMissingColumns, msg), MissingColumnsDetails{Headers: headers})
	}

	stamp := r.now().UnixMilli()
	students := make([]models.Student, 0, len(rows))
	for idx, row := range dataRows(rows) {
		firstName := cell(row, columns.FirstName)
		lastName := cell(row, columns.LastName)
		email := cell(row, columns.Email)
		username := cell(row, columns.Username)

		if username == "" && firstName == "" {
			r.logger.Debug("skipping blank import row", zap.Int("row", idx+2))
			continue
		}

		fullName := strings.TrimSpace(firstName + " " + lastName)
		if fullName == "" {
			fullName = unknownFullName
		}
		if username == "" {
			username = fmt.Sprintf("user_%d_%d", stamp, idx)
		}

		students = append(students, models.Student{
			Username: username,
			FullName: fullName,
			Email:    email,
		})
	}

	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrImportNoValidRows, "no valid students found, check the column headers")
	}
	return students, nil
}

func dataRows(rows [][]string) [][]string {
	if len(rows) < 2 {
		return nil
	}
	return rows[1:]
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
