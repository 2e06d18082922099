package service

import "github.com/noah-isme/gradebook/internal/models"

// ComputeTotal sums the four component scores, counting unset components as 0.
func ComputeTotal(record models.GradeRecord) float64 {
	return record.Exam1.OrZero() + record.Exam2.OrZero() + record.Coursework.OrZero() + record.FinalExam.OrZero()
}

// WithTotal returns record with its total recomputed.
func WithTotal(record models.GradeRecord) models.GradeRecord {
	record.Total = models.ScoreOf(ComputeTotal(record))
	return record
}

// Percent expresses total as a share of the subject's maximum. A subject with
// no capacity yields 0.
func Percent(total float64, subject models.Subject) float64 {
	maxTotal := subject.MaxTotal()
	if maxTotal <= 0 {
		return 0
	}
	return total / maxTotal * 100
}

// PassFail evaluates record against the pass threshold. The stored total is
// ignored in favour of the component scores.
func PassFail(record models.GradeRecord, subject models.Subject, settings models.Settings) models.PassResult {
	pct := Percent(ComputeTotal(record), subject)
	return models.PassResult{
		Passing: pct >= settings.PassThresholdPct,
		Percent: pct,
	}
}

// AbsenceSeverity buckets the absence count against the configured threshold.
func AbsenceSeverity(record models.GradeRecord, settings models.Settings) models.Severity {
	count := len(record.Absences)
	switch {
	case count == 0:
		return models.SeverityNone
	case count >= settings.AbsenceThreshold:
		return models.SeveritySevere
	default:
		return models.SeverityModerate
	}
}
