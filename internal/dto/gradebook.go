package dto

import "github.com/noah-isme/gradebook/internal/models"

// SubjectRequest is the payload for creating or replacing a subject.
type SubjectRequest struct {
	ID                   string                      `json:"id,omitempty"`
	Code                 string                      `json:"code"`
	NameEn               string                      `json:"name_en"`
	NameAr               string                      `json:"name_ar"`
	MaxExam1             float64                     `json:"max_exam1"`
	MaxExam2             float64                     `json:"max_exam2"`
	MaxCoursework        float64                     `json:"max_coursework"`
	MaxFinalExam         float64                     `json:"max_final_exam"`
	CourseworkCategories []models.CourseworkCategory `json:"coursework_categories"`
}

// ToModel builds the subject. A non-empty id overrides the payload id.
func (r SubjectRequest) ToModel(id string) models.Subject {
	if id == "" {
		id = r.ID
	}
	return models.Subject{
		ID:                   id,
		Code:                 r.Code,
		NameEn:               r.NameEn,
		NameAr:               r.NameAr,
		MaxExam1:             r.MaxExam1,
		MaxExam2:             r.MaxExam2,
		MaxCoursework:        r.MaxCoursework,
		MaxFinalExam:         r.MaxFinalExam,
		CourseworkCategories: r.CourseworkCategories,
	}
}

// StudentRequest is the payload for creating or replacing a student.
type StudentRequest struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// ToModel builds the student. A non-empty id overrides the payload id.
func (r StudentRequest) ToModel(id string) models.Student {
	if id == "" {
		id = r.ID
	}
	return models.Student{ID: id, Username: r.Username, FullName: r.FullName, Email: r.Email}
}

// GradeRecordRequest carries the scores of one student in one subject. Any
// supplied total is ignored; it is always recomputed.
type GradeRecordRequest struct {
	Exam1            models.Score                  `json:"exam1"`
	Exam2            models.Score                  `json:"exam2"`
	Coursework       models.Score                  `json:"coursework"`
	FinalExam        models.Score                  `json:"final_exam"`
	CourseworkScores map[string]float64            `json:"coursework_scores"`
	Absences         []string                      `json:"absences"`
	AbsenceTypes     map[string]models.AbsenceType `json:"absence_types"`
}

// ToModel builds the record for the (subjectID, studentID) pair.
func (r GradeRecordRequest) ToModel(subjectID, studentID string) models.GradeRecord {
	record := models.EmptyGradeRecord(subjectID, studentID)
	record.Exam1 = r.Exam1
	record.Exam2 = r.Exam2
	record.Coursework = r.Coursework
	record.FinalExam = r.FinalExam
	for k, v := range r.CourseworkScores {
		record.CourseworkScores[k] = v
	}
	record.Absences = append(record.Absences, r.Absences...)
	for k, v := range r.AbsenceTypes {
		record.AbsenceTypes[k] = v
	}
	return record
}

// AbsenceUpdateRequest adds and/or removes one absence date.
type AbsenceUpdateRequest struct {
	Add    *models.AbsenceEntry `json:"add,omitempty"`
	Remove string               `json:"remove,omitempty"`
}

// ReadinessResponse reports whether the service can take traffic.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Sync   models.SyncStatus `json:"sync"`
}
