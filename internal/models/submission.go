package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// SubmissionStatusSubmitted indicates the submission has been received but not graded by an instructor.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates an instructor has set the grade.
	SubmissionStatusGraded = "graded"
)

// Submission kinds derived from which item reference is set.
const (
	SubmissionKindExam       = "exam"
	SubmissionKindAssignment = "assignment"
)

// SubmissionAnswer is one answer within an exam attempt.
type SubmissionAnswer struct {
	QuestionID uint   `json:"questionId"`
	Answer     string `json:"answer"`
}

// Submission is a student's single attempt at either an assignment or an exam, never both.
// The composite unique indexes back the one-attempt-per-item rule at the storage layer.
type Submission struct {
	ID           uint                                  `gorm:"primaryKey" json:"id"`
	StudentID    uint                                  `gorm:"not null;uniqueIndex:idx_submissions_student_assignment,priority:1;uniqueIndex:idx_submissions_student_exam,priority:1" json:"studentId"`
	Student      User                                  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	AssignmentID *uint                                 `gorm:"uniqueIndex:idx_submissions_student_assignment,priority:2" json:"assignmentId"`
	Assignment   *Assignment                           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment,omitempty"`
	ExamID       *uint                                 `gorm:"uniqueIndex:idx_submissions_student_exam,priority:2" json:"examId"`
	Exam         *Exam                                 `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exam,omitempty"`
	Answers      datatypes.JSONSlice[SubmissionAnswer] `json:"answers,omitempty"`
	FileURL      string                                `gorm:"size:1024" json:"fileUrl,omitempty"`
	AutoScore    *float64                              `json:"autoScore"`
	Grade        *float64                              `json:"grade"`
	Feedback     *string                               `gorm:"type:text" json:"feedback"`
	Status       string                                `gorm:"size:32;not null" json:"status"`
	Late         bool                                  `gorm:"not null;default:false" json:"late"`
	SubmittedAt  time.Time                             `gorm:"not null" json:"submittedAt"`
	GradedAt     *time.Time                            `json:"gradedAt"`
	GradedBy     *uint                                 `json:"gradedBy"`
	History      []SubmissionGradeHistory              `gorm:"constraint:OnDelete:CASCADE" json:"history,omitempty"`
	CreatedAt    time.Time                             `json:"createdAt"`
	UpdatedAt    time.Time                             `json:"updatedAt"`
}

// SubmissionGradeHistory records every grading action applied to a submission.
type SubmissionGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submissionId"`
	Grade        float64   `gorm:"not null" json:"grade"`
	Feedback     *string   `gorm:"type:text" json:"feedback"`
	GradedBy     uint      `gorm:"not null" json:"gradedBy"`
	GradedAt     time.Time `gorm:"not null" json:"gradedAt"`
}

// Kind reports whether the submission targets an exam or an assignment.
func (s Submission) Kind() string {
	if s.ExamID != nil {
		return SubmissionKindExam
	}
	return SubmissionKindAssignment
}

// IsGraded reports whether an instructor has graded the submission.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}
