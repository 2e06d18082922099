package service

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/gradebook/internal/models"
	appErrors "github.com/noah-isme/gradebook/pkg/errors"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationResult lists every invalid field found in a value.
type ValidationResult struct {
	Errors []FieldError `json:"errors"`
}

// Valid reports whether no field failed.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Err converts a failed result into a VALIDATION_ERROR carrying the field list.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	fields := make([]string, 0, len(r.Errors))
	for _, fe := range r.Errors {
		fields = append(fields, fe.Field)
	}
	msg := fmt.Sprintf("invalid fields: %s", strings.Join(fields, ", "))
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, msg), r.Errors)
}

func (r *ValidationResult) add(field, rule, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Rule: rule, Message: message})
}

// DomainValidator checks gradebook entities. It never mutates its input.
type DomainValidator struct {
	validate *validator.Validate
}

// NewDomainValidator registers the gradebook rules on v, or on a fresh validator when v is nil.
func NewDomainValidator(v *validator.Validate) *DomainValidator {
	if v == nil {
		v = validator.New()
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		score, ok := field.Interface().(models.Score)
		if !ok {
			return nil
		}
		if value, set := score.Value(); set {
			return value
		}
		return nil
	}, models.Score{})
	_ = v.RegisterValidation("absence_type", func(fl validator.FieldLevel) bool {
		return models.AbsenceType(fl.Field().String()).Valid()
	})
	return &DomainValidator{validate: v}
}

// Struct exposes the underlying validator for request DTOs.
func (d *DomainValidator) Struct(value interface{}) ValidationResult {
	return d.check(value)
}

// ValidateSubject checks names and capacities.
func (d *DomainValidator) ValidateSubject(subject models.Subject) ValidationResult {
	return d.check(subject)
}

// ValidateStudent checks the username and full name.
func (d *DomainValidator) ValidateStudent(student models.Student) ValidationResult {
	return d.check(student)
}

// ValidateSettings checks the language and thresholds.
func (d *DomainValidator) ValidateSettings(settings models.Settings) ValidationResult {
	return d.check(settings)
}

// ValidateAbsenceEntry checks a single absence to add.
func (d *DomainValidator) ValidateAbsenceEntry(entry models.AbsenceEntry) ValidationResult {
	return d.check(entry)
}

// ValidateGradeRecord checks scores, absence dates and types, and that the
// type map is keyed by exactly the recorded dates. The computed total must be
// finite so the record stays encodable.
func (d *DomainValidator) ValidateGradeRecord(record models.GradeRecord) ValidationResult {
	result := d.check(record)
	if total := ComputeTotal(record); math.IsInf(total, 0) || math.IsNaN(total) {
		result.add("total", "finite", "must be a finite number")
	}

	dates := make(map[string]struct{}, len(record.Absences))
	for _, date := range record.Absences {
		dates[date] = struct{}{}
	}
	for date := range record.AbsenceTypes {
		if _, ok := dates[date]; !ok {
			result.add(fmt.Sprintf("absence_types[%s]", date), "parity", "has no matching entry in absences")
		}
	}
	for date := range dates {
		if _, ok := record.AbsenceTypes[date]; !ok {
			result.add(fmt.Sprintf("absences[%s]", date), "parity", "has no matching entry in absence_types")
		}
	}
	return result
}

func (d *DomainValidator) check(value interface{}) ValidationResult {
	var result ValidationResult
	err := d.validate.Struct(value)
	if err == nil {
		return result
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		result.add("", "invalid", err.Error())
		return result
	}
	for _, fe := range verrs {
		result.add(fieldPath(fe), fe.Tag(), message(fe))
	}
	return result
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "absence_type":
		return "must be one of Absent, Excused, Late"
	case "unique":
		return "must not contain duplicates"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
