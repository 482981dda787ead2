package dto

// GradebookSummary aggregates grading progress across a set of submissions.
type GradebookSummary struct {
	Total        int     `json:"total"`
	Graded       int     `json:"graded"`
	Pending      int     `json:"pending"`
	AverageGrade float64 `json:"averageGrade"`
}

// CourseGradebookResponse lists every submission for a course's assignments and exams.
type CourseGradebookResponse struct {
	CourseID    uint                 `json:"courseId"`
	CourseTitle string               `json:"courseTitle"`
	Summary     GradebookSummary     `json:"summary"`
	Submissions []SubmissionResponse `json:"submissions"`
}

// StudentGradesResponse lists a student's own submissions.
type StudentGradesResponse struct {
	StudentID   uint                 `json:"studentId"`
	Summary     GradebookSummary     `json:"summary"`
	Submissions []SubmissionResponse `json:"submissions"`
}

// SummarizeSubmissions computes graded/pending counts and the mean of graded grades.
func SummarizeSubmissions(items []SubmissionResponse) GradebookSummary {
	summary := GradebookSummary{Total: len(items)}
	var total float64
	for _, item := range items {
		if item.Status == "graded" && item.Grade != nil {
			summary.Graded++
			total += *item.Grade
			continue
		}
		summary.Pending++
	}
	if summary.Graded > 0 {
		summary.AverageGrade = total / float64(summary.Graded)
	}
	return summary
}
