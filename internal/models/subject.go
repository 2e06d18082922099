package models

// CourseworkCategory is a named coursework bucket reserved for a future breakdown of the coursework score.
type CourseworkCategory struct {
	ID        string  `json:"id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	MaxPoints float64 `json:"max_points" validate:"gte=0,lte=1000000"`
}

// Subject represents a course with per-component point capacities.
type Subject struct {
	ID                   string               `json:"id"`
	Code                 string               `json:"code"`
	NameEn               string               `json:"name_en" validate:"required"`
	NameAr               string               `json:"name_ar" validate:"required"`
	MaxExam1             float64              `json:"max_exam1" validate:"gte=0,lte=1000000"`
	MaxExam2             float64              `json:"max_exam2" validate:"gte=0,lte=1000000"`
	MaxCoursework        float64              `json:"max_coursework" validate:"gte=0,lte=1000000"`
	MaxFinalExam         float64              `json:"max_final_exam" validate:"gte=0,lte=1000000"`
	CourseworkCategories []CourseworkCategory `json:"coursework_categories" validate:"dive"`
}

// MaxTotal returns the sum of the four component capacities.
func (s Subject) MaxTotal() float64 {
	return s.MaxExam1 + s.MaxExam2 + s.MaxCoursework + s.MaxFinalExam
}

// Clone returns a copy that shares no slices with s.
func (s Subject) Clone() Subject {
	clone := s
	clone.CourseworkCategories = append([]CourseworkCategory{}, s.CourseworkCategories...)
	return clone
}
