package service

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
)

func fields(result ValidationResult) []string {
	out := make([]string, 0, len(result.Errors))
	for _, fe := range result.Errors {
		out = append(out, fe.Field)
	}
	return out
}

func TestValidateSubjectReportsEveryField(t *testing.T) {
	v := NewDomainValidator(nil)

	result := v.ValidateSubject(models.Subject{MaxExam1: -1, MaxFinalExam: -5})
	require.False(t, result.Valid())
	assert.ElementsMatch(t, []string{"name_en", "name_ar", "max_exam1", "max_final_exam"}, fields(result))

	assert.True(t, v.ValidateSubject(mathSubject()).Valid())
}

func TestValidateSubjectCategories(t *testing.T) {
	v := NewDomainValidator(nil)
	subject := mathSubject()
	subject.CourseworkCategories = []models.CourseworkCategory{{ID: "c1", Name: "", MaxPoints: -1}}

	result := v.ValidateSubject(subject)
	assert.ElementsMatch(t, []string{"coursework_categories[0].name", "coursework_categories[0].max_points"}, fields(result))
}

func TestValidateStudent(t *testing.T) {
	v := NewDomainValidator(nil)

	result := v.ValidateStudent(models.Student{})
	assert.ElementsMatch(t, []string{"username", "full_name"}, fields(result))
	assert.True(t, v.ValidateStudent(models.Student{Username: "u", FullName: "N", Email: "not-an-email"}).Valid())
}

func TestValidateGradeRecord(t *testing.T) {
	v := NewDomainValidator(nil)

	record := models.EmptyGradeRecord("sub-1", "stu-1")
	record.Exam1 = models.ScoreOf(-1)
	record.Exam2 = models.ScoreOf(math.NaN())
	record.Coursework = models.ScoreOf(0)
	record.Absences = []string{"2024-13-01", "2024-01-02"}
	record.AbsenceTypes = map[string]models.AbsenceType{
		"2024-13-01": models.AbsenceAbsent,
		"2024-01-02": "Sick",
		"2024-02-02": models.AbsenceLate,
	}

	result := v.ValidateGradeRecord(record)
	got := fields(result)
	assert.Contains(t, got, "exam1")
	assert.Contains(t, got, "exam2")
	assert.NotContains(t, got, "coursework")
	assert.NotContains(t, got, "final_exam")
	assert.Contains(t, got, "absences[0]")
	assert.Contains(t, got, "absence_types[2024-01-02]")
	assert.Contains(t, got, "absence_types[2024-02-02]")
}

func TestValidateBoundsLargeScoresAndCapacities(t *testing.T) {
	v := NewDomainValidator(nil)

	record := models.EmptyGradeRecord("sub-1", "stu-1")
	record.Exam1 = models.ScoreOf(1e308)
	record.Exam2 = models.ScoreOf(1e308)
	got := fields(v.ValidateGradeRecord(record))
	assert.Contains(t, got, "exam1")
	assert.Contains(t, got, "exam2")

	record.Exam1 = models.ScoreOf(math.Inf(1))
	record.Exam2 = models.ScoreOf(10)
	assert.Contains(t, fields(v.ValidateGradeRecord(record)), "total")

	subject := mathSubject()
	subject.MaxExam1 = 1e308
	subject.MaxExam2 = 1e308
	assert.ElementsMatch(t, []string{"max_exam1", "max_exam2"}, fields(v.ValidateSubject(subject)))
}

func TestValidateGradeRecordUnsetScoresPass(t *testing.T) {
	v := NewDomainValidator(nil)
	record := models.EmptyGradeRecord("sub-1", "stu-1")
	record.AddAbsence("2024-01-02", models.AbsenceExcused)

	assert.True(t, v.ValidateGradeRecord(record).Valid())
	assert.False(t, v.ValidateGradeRecord(models.GradeRecord{}).Valid())
}

func TestValidateGradeRecordDuplicateDates(t *testing.T) {
	v := NewDomainValidator(nil)
	record := models.EmptyGradeRecord("sub-1", "stu-1")
	record.Absences = []string{"2024-01-02", "2024-01-02"}
	record.AbsenceTypes = map[string]models.AbsenceType{"2024-01-02": models.AbsenceAbsent}

	result := v.ValidateGradeRecord(record)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "absences", result.Errors[0].Field)
	assert.Equal(t, "unique", result.Errors[0].Rule)
}

func TestValidateGradeRecordParity(t *testing.T) {
	v := NewDomainValidator(nil)
	record := models.EmptyGradeRecord("sub-1", "stu-1")
	record.Absences = []string{"2024-01-02"}

	result := v.ValidateGradeRecord(record)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "parity", result.Errors[0].Rule)
}

func TestValidateSettings(t *testing.T) {
	v := NewDomainValidator(nil)
	assert.True(t, v.ValidateSettings(models.DefaultSettings()).Valid())

	bad := models.DefaultSettings()
	bad.DefaultLanguage = "fr"
	bad.PassThresholdPct = 101
	bad.AbsenceThreshold = -1
	assert.ElementsMatch(t, []string{"default_language", "pass_threshold_pct", "absence_threshold"}, fields(v.ValidateSettings(bad)))
}

func TestValidationResultErr(t *testing.T) {
	assert.NoError(t, ValidationResult{}.Err())

	err := ValidationResult{Errors: []FieldError{{Field: "name_en", Rule: "required", Message: "is required"}}}.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	appErr := appErrors.FromError(err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	details, ok := appErr.Details.([]FieldError)
	require.True(t, ok)
	assert.Equal(t, "name_en", details[0].Field)
}
