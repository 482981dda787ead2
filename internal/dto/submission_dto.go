package dto

import (
	"time"

	"github.com/noah-isme/skillup-api/internal/models"
)

// GradeSubmissionRequest is used by instructors to grade a submission.
type GradeSubmissionRequest struct {
	Grade    *float64 `json:"grade" validate:"required,gte=0"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// GradableItem summarizes the assignment or exam a submission targets.
type GradableItem struct {
	Kind        string  `json:"kind"`
	ID          uint    `json:"id"`
	CourseID    uint    `json:"courseId"`
	Title       string  `json:"title"`
	TotalPoints float64 `json:"totalPoints"`
}

// SubmissionGradeHistoryResponse serializes grading history entries.
type SubmissionGradeHistoryResponse struct {
	Grade    float64   `json:"grade"`
	Feedback *string   `json:"feedback"`
	GradedBy uint      `json:"gradedBy"`
	GradedAt time.Time `json:"gradedAt"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint                             `json:"id"`
	Kind         string                           `json:"kind"`
	StudentID    uint                             `json:"studentId"`
	Student      *UserLite                        `json:"student,omitempty"`
	AssignmentID *uint                            `json:"assignmentId"`
	ExamID       *uint                            `json:"examId"`
	Item         *GradableItem                    `json:"item,omitempty"`
	Answers      []ExamAnswer                     `json:"answers,omitempty"`
	FileURL      string                           `json:"fileUrl,omitempty"`
	AutoScore    *float64                         `json:"autoScore"`
	Grade        *float64                         `json:"grade"`
	Feedback     *string                          `json:"feedback"`
	Status       string                           `json:"status"`
	Late         bool                             `json:"late"`
	SubmittedAt  time.Time                        `json:"submittedAt"`
	GradedAt     *time.Time                       `json:"gradedAt"`
	GradedBy     *uint                            `json:"gradedBy"`
	History      []SubmissionGradeHistoryResponse `json:"history,omitempty"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		Kind:         model.Kind(),
		StudentID:    model.StudentID,
		Student:      NewUserLite(model.Student),
		AssignmentID: model.AssignmentID,
		ExamID:       model.ExamID,
		FileURL:      model.FileURL,
		AutoScore:    model.AutoScore,
		Grade:        model.Grade,
		Feedback:     model.Feedback,
		Status:       model.Status,
		Late:         model.Late,
		SubmittedAt:  model.SubmittedAt,
		GradedAt:     model.GradedAt,
		GradedBy:     model.GradedBy,
	}

	switch {
	case model.Assignment != nil && model.Assignment.ID != 0:
		response.Item = &GradableItem{
			Kind:        models.SubmissionKindAssignment,
			ID:          model.Assignment.ID,
			CourseID:    model.Assignment.CourseID,
			Title:       model.Assignment.Title,
			TotalPoints: model.Assignment.TotalPoints,
		}
	case model.Exam != nil && model.Exam.ID != 0:
		response.Item = &GradableItem{
			Kind:        models.SubmissionKindExam,
			ID:          model.Exam.ID,
			CourseID:    model.Exam.CourseID,
			Title:       model.Exam.Title,
			TotalPoints: model.Exam.TotalPoints(),
		}
	}

	if len(model.Answers) > 0 {
		answers := make([]ExamAnswer, 0, len(model.Answers))
		for _, answer := range model.Answers {
			answers = append(answers, ExamAnswer{QuestionID: answer.QuestionID, Answer: answer.Answer})
		}
		response.Answers = answers
	}

	if len(model.History) > 0 {
		history := make([]SubmissionGradeHistoryResponse, 0, len(model.History))
		for _, entry := range model.History {
			history = append(history, SubmissionGradeHistoryResponse{
				Grade:    entry.Grade,
				Feedback: entry.Feedback,
				GradedBy: entry.GradedBy,
				GradedAt: entry.GradedAt,
			})
		}
		response.History = history
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
