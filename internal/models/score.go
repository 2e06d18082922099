package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Score is a component score that is either unset or holds a value.
// Zero value is Unset; an entered zero is ScoreOf(0).
type Score struct {
	value float64
	set   bool
}

// Unset returns a score that has not been entered.
func Unset() Score {
	return Score{}
}

// ScoreOf returns a score holding v.
func ScoreOf(v float64) Score {
	return Score{value: v, set: true}
}

// IsSet reports whether a value was entered.
func (s Score) IsSet() bool {
	return s.set
}

// Value returns the entered value and whether it is set.
func (s Score) Value() (float64, bool) {
	return s.value, s.set
}

// OrZero returns the value, or 0 when unset.
func (s Score) OrZero() float64 {
	if !s.set {
		return 0
	}
	return s.value
}

// Format renders the value, or placeholder when unset.
func (s Score) Format(placeholder string) string {
	if !s.set {
		return placeholder
	}
	return strconv.FormatFloat(s.value, 'f', -1, 64)
}

// MarshalJSON encodes unset scores as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON decodes null as unset.
func (s *Score) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Score{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = ScoreOf(v)
	return nil
}
