package models

// Student represents a learner tracked by the gradebook.
type Student struct {
	ID       string `json:"id"`
	Username string `json:"username" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email"`
}
