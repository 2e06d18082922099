package models

import "time"

// ExportRow is the per student projection consumed by document exporters.
type ExportRow struct {
	StudentID    string `json:"student_id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	Exam1        Score  `json:"exam1"`
	Exam2        Score  `json:"exam2"`
	Coursework   Score  `json:"coursework"`
	FinalExam    Score  `json:"final_exam"`
	Total        Score  `json:"total"`
	AbsenceCount int    `json:"absence_count"`
}

// GradeSheetRow extends ExportRow with the derived pass and attendance status.
type GradeSheetRow struct {
	ExportRow
	Percent     float64  `json:"percent"`
	Passing     bool     `json:"passing"`
	LastAbsence string   `json:"last_absence,omitempty"`
	Severity    Severity `json:"severity"`
}

// GradeSheet is the grade table of one subject.
type GradeSheet struct {
	Subject  Subject         `json:"subject"`
	MaxTotal float64         `json:"max_total"`
	Rows     []GradeSheetRow `json:"rows"`
}

// DashboardSummary aggregates headline counts.
type DashboardSummary struct {
	StudentCount int     `json:"student_count"`
	SubjectCount int     `json:"subject_count"`
	GradeCount   int     `json:"grade_count"`
	AverageTotal float64 `json:"average_total"`
}

// ImportSummary reports the outcome of a bulk student import.
type ImportSummary struct {
	Added   []Student `json:"added"`
	Skipped []string  `json:"skipped_usernames"`
}

// AddedCount returns how many students were inserted.
func (s ImportSummary) AddedCount() int {
	return len(s.Added)
}

// SyncStatus describes the persistence state of the in-memory gradebook.
type SyncStatus struct {
	Backend       string     `json:"backend"`
	Dirty         bool       `json:"dirty"`
	Saving        bool       `json:"saving"`
	Revision      uint64     `json:"revision"`
	SavedRevision uint64     `json:"saved_revision"`
	LastSavedAt   *time.Time `json:"last_saved_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
	LoadWarning   string     `json:"load_warning,omitempty"`
}
