package models

import "sort"

// AbsenceType classifies a recorded absence date.
type AbsenceType string

const (
	AbsenceAbsent  AbsenceType = "Absent"
	AbsenceExcused AbsenceType = "Excused"
	AbsenceLate    AbsenceType = "Late"
)

// Valid reports whether t is one of the known absence types.
func (t AbsenceType) Valid() bool {
	switch t {
	case AbsenceAbsent, AbsenceExcused, AbsenceLate:
		return true
	default:
		return false
	}
}

// Severity buckets an absence count against the configured threshold.
type Severity string

const (
	SeverityNone     Severity = "None"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// GradeKey is the composite identity of a grade record.
type GradeKey struct {
	SubjectID string
	StudentID string
}

// GradeRecord stores the scores and attendance of one student in one subject.
type GradeRecord struct {
	SubjectID        string                 `json:"subject_id" validate:"required"`
	StudentID        string                 `json:"student_id" validate:"required"`
	Exam1            Score                  `json:"exam1" validate:"omitempty,gte=0,lte=1000000"`
	Exam2            Score                  `json:"exam2" validate:"omitempty,gte=0,lte=1000000"`
	Coursework       Score                  `json:"coursework" validate:"omitempty,gte=0,lte=1000000"`
	FinalExam        Score                  `json:"final_exam" validate:"omitempty,gte=0,lte=1000000"`
	Total            Score                  `json:"total"`
	CourseworkScores map[string]float64     `json:"coursework_scores"`
	Absences         []string               `json:"absences" validate:"unique,dive,datetime=2006-01-02"`
	AbsenceTypes     map[string]AbsenceType `json:"absence_types" validate:"dive,keys,datetime=2006-01-02,endkeys,absence_type"`
}

// EmptyGradeRecord materializes the record used when a pair has no entry yet.
func EmptyGradeRecord(subjectID, studentID string) GradeRecord {
	return GradeRecord{
		SubjectID:        subjectID,
		StudentID:        studentID,
		CourseworkScores: map[string]float64{},
		Absences:         []string{},
		AbsenceTypes:     map[string]AbsenceType{},
	}
}

// Key returns the composite identity of the record.
func (g GradeRecord) Key() GradeKey {
	return GradeKey{SubjectID: g.SubjectID, StudentID: g.StudentID}
}

// Clone returns a deep copy of the record.
func (g GradeRecord) Clone() GradeRecord {
	clone := g
	clone.CourseworkScores = make(map[string]float64, len(g.CourseworkScores))
	for k, v := range g.CourseworkScores {
		clone.CourseworkScores[k] = v
	}
	clone.Absences = append([]string{}, g.Absences...)
	clone.AbsenceTypes = make(map[string]AbsenceType, len(g.AbsenceTypes))
	for k, v := range g.AbsenceTypes {
		clone.AbsenceTypes[k] = v
	}
	return clone
}

// NormalizeAbsences sorts and dedupes the absence dates and keeps the type
// map keyed by exactly the same dates. Dates missing a type default to Absent.
func (g *GradeRecord) NormalizeAbsences() {
	seen := make(map[string]struct{}, len(g.Absences))
	dates := make([]string, 0, len(g.Absences))
	for _, date := range g.Absences {
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		dates = append(dates, date)
	}
	sort.Strings(dates)

	types := make(map[string]AbsenceType, len(dates))
	for _, date := range dates {
		t, ok := g.AbsenceTypes[date]
		if !ok || t == "" {
			t = AbsenceAbsent
		}
		types[date] = t
	}
	g.Absences = dates
	g.AbsenceTypes = types
	if g.CourseworkScores == nil {
		g.CourseworkScores = map[string]float64{}
	}
}

// AddAbsence records date with type t. An already recorded date is left unchanged.
func (g *GradeRecord) AddAbsence(date string, t AbsenceType) {
	idx := sort.SearchStrings(g.Absences, date)
	if idx < len(g.Absences) && g.Absences[idx] == date {
		return
	}
	g.Absences = append(g.Absences, "")
	copy(g.Absences[idx+1:], g.Absences[idx:])
	g.Absences[idx] = date
	if g.AbsenceTypes == nil {
		g.AbsenceTypes = map[string]AbsenceType{}
	}
	g.AbsenceTypes[date] = t
}

// RemoveAbsence drops date from both the date list and the type map.
func (g *GradeRecord) RemoveAbsence(date string) {
	idx := sort.SearchStrings(g.Absences, date)
	if idx < len(g.Absences) && g.Absences[idx] == date {
		g.Absences = append(g.Absences[:idx], g.Absences[idx+1:]...)
	}
	delete(g.AbsenceTypes, date)
}

// LastAbsence returns the latest absence date, or "" when none is recorded.
func (g GradeRecord) LastAbsence() string {
	if len(g.Absences) == 0 {
		return ""
	}
	return g.Absences[len(g.Absences)-1]
}

// AbsenceEntry is a single absence to add to a record.
type AbsenceEntry struct {
	Date string      `json:"date" validate:"required,datetime=2006-01-02"`
	Type AbsenceType `json:"type" validate:"required,absence_type"`
}

// PassResult is the pass/fail outcome of a record against a subject.
type PassResult struct {
	Passing bool    `json:"passing"`
	Percent float64 `json:"percent"`
}
