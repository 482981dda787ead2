package dto

import (
	"time"

	"github.com/noah-isme/skillup-api/internal/models"
)

// ExamQuestionCreateRequest describes one question of a new exam.
type ExamQuestionCreateRequest struct {
	Type          string   `json:"type" validate:"required,oneof=mcq subjective"`
	Prompt        string   `json:"prompt" validate:"required,min=1,max=5000"`
	Options       []string `json:"options" validate:"required_if=Type mcq,omitempty,min=2,max=10,dive,required,max=1000"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required_if=Type mcq,max=1000"`
	Points        float64  `json:"points" validate:"gt=0"`
}

// ExamCreateRequest is the payload to create an exam within a course.
type ExamCreateRequest struct {
	Title           string                      `json:"title" validate:"required,min=3,max=255"`
	Description     string                      `json:"description" validate:"max=10000"`
	DurationMinutes int                         `json:"durationMinutes" validate:"gte=0,lte=1440"`
	Questions       []ExamQuestionCreateRequest `json:"questions" validate:"required,min=1,max=200,dive"`
}

// ExamAnswer is a single answer in an exam submission.
type ExamAnswer struct {
	QuestionID uint   `json:"questionId" validate:"required,gt=0"`
	Answer     string `json:"answer" validate:"max=10000"`
}

// ExamSubmitRequest carries the answers of an exam attempt.
type ExamSubmitRequest struct {
	Answers []ExamAnswer `json:"answers" validate:"required,max=500,dive"`
}

// ExamQuestionResponse exposes a question to exam takers; correct answers are never included.
type ExamQuestionResponse struct {
	ID       uint     `json:"id"`
	Position int      `json:"position"`
	Type     string   `json:"type"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options,omitempty"`
	Points   float64  `json:"points"`
}

// ExamResponse is the serialized representation of an exam.
type ExamResponse struct {
	ID              uint                   `json:"id"`
	CourseID        uint                   `json:"courseId"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	DurationMinutes int                    `json:"durationMinutes"`
	TotalPoints     float64                `json:"totalPoints"`
	Questions       []ExamQuestionResponse `json:"questions"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// NewExamResponse converts an exam model into a DTO.
func NewExamResponse(model models.Exam) ExamResponse {
	questions := make([]ExamQuestionResponse, 0, len(model.Questions))
	for _, question := range model.Questions {
		questions = append(questions, ExamQuestionResponse{
			ID:       question.ID,
			Position: question.Position,
			Type:     question.Type,
			Prompt:   question.Prompt,
			Options:  []string(question.Options),
			Points:   question.Points,
		})
	}

	return ExamResponse{
		ID:              model.ID,
		CourseID:        model.CourseID,
		Title:           model.Title,
		Description:     model.Description,
		DurationMinutes: model.DurationMinutes,
		TotalPoints:     model.TotalPoints(),
		Questions:       questions,
		CreatedAt:       model.CreatedAt,
	}
}
