package dto

import "github.com/noah-isme/skillup-api/internal/models"

// UserLite summarizes a user without exposing full profile data.
type UserLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// CourseLite summarizes a course in nested payloads.
type CourseLite struct {
	ID           uint   `json:"id"`
	Title        string `json:"title"`
	InstructorID uint   `json:"instructorId"`
}

// NewUserLite converts a user model, returning nil when the association was not loaded.
func NewUserLite(model models.User) *UserLite {
	if model.ID == 0 {
		return nil
	}
	return &UserLite{
		ID:    model.ID,
		Name:  model.Name,
		Email: model.Email,
		Role:  model.Role,
	}
}

// NewCourseLite converts a course model, returning nil when the association was not loaded.
func NewCourseLite(model *models.Course) *CourseLite {
	if model == nil || model.ID == 0 {
		return nil
	}
	return &CourseLite{
		ID:           model.ID,
		Title:        model.Title,
		InstructorID: model.InstructorID,
	}
}
