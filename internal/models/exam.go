package models

import (
	"time"

	"gorm.io/datatypes"
)

// Question types supported by exams.
const (
	QuestionTypeMCQ        = "mcq"
	QuestionTypeSubjective = "subjective"
)

// Exam is a fixed list of questions owned by a course. Exams are never edited in place.
type Exam struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CourseID        uint           `gorm:"not null;index" json:"courseId"`
	Course          Course         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	DurationMinutes int            `gorm:"not null;default:0" json:"durationMinutes"`
	Questions       []ExamQuestion `gorm:"constraint:OnDelete:CASCADE" json:"questions"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// ExamQuestion is a single question of an exam.
type ExamQuestion struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	ExamID        uint                        `gorm:"not null;index" json:"examId"`
	Position      int                         `gorm:"not null" json:"position"`
	Type          string                      `gorm:"size:16;not null" json:"type"`
	Prompt        string                      `gorm:"type:text;not null" json:"prompt"`
	Options       datatypes.JSONSlice[string] `json:"options,omitempty"`
	CorrectAnswer string                      `gorm:"type:text" json:"-"`
	Points        float64                     `gorm:"not null" json:"points"`
}

// TotalPoints sums the point value of every question.
func (e Exam) TotalPoints() float64 {
	var total float64
	for _, question := range e.Questions {
		total += question.Points
	}
	return total
}

// IsAutoGradable reports whether the question is scored on submission.
func (q ExamQuestion) IsAutoGradable() bool {
	return q.Type == QuestionTypeMCQ
}
