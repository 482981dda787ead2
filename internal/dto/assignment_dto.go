package dto

import (
	"time"

	"github.com/noah-isme/skillup-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=255"`
	Description string  `json:"description" validate:"max=10000"`
	DueDate     string  `json:"dueDate" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	TotalPoints float64 `json:"totalPoints" validate:"gt=0"`
}

// AssignmentSubmitRequest carries the link to a student's submitted work.
type AssignmentSubmitRequest struct {
	FileURL string `json:"fileUrl" validate:"required,url,max=1024"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID          uint      `json:"id"`
	CourseID    uint      `json:"courseId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
	TotalPoints float64   `json:"totalPoints"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:          model.ID,
		CourseID:    model.CourseID,
		Title:       model.Title,
		Description: model.Description,
		DueDate:     model.DueDate,
		TotalPoints: model.TotalPoints,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}
