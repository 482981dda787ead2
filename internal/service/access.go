package service

import "github.com/noah-isme/skillup-api/internal/models"

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func canManageCourse(actor Actor, course models.Course) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.ID != 0 && course.InstructorID == actor.ID
}

// submissionCourse resolves Submission -> (Assignment | Exam) -> Course.
func submissionCourse(submission models.Submission) (models.Course, bool) {
	if submission.Assignment != nil && submission.Assignment.Course.ID != 0 {
		return submission.Assignment.Course, true
	}
	if submission.Exam != nil && submission.Exam.Course.ID != 0 {
		return submission.Exam.Course, true
	}
	return models.Course{}, false
}

// submissionTotalPoints returns the maximum grade of the item a submission targets.
func submissionTotalPoints(submission models.Submission) float64 {
	if submission.Assignment != nil {
		return submission.Assignment.TotalPoints
	}
	if submission.Exam != nil {
		return submission.Exam.TotalPoints()
	}
	return 0
}

func canGrade(actor Actor, submission models.Submission) bool {
	if actor.IsAdmin() {
		return true
	}
	course, ok := submissionCourse(submission)
	if !ok {
		return false
	}
	return canManageCourse(actor, course)
}

func canViewSubmission(actor Actor, submission models.Submission) bool {
	if actor.ID != 0 && submission.StudentID == actor.ID {
		return true
	}
	return canGrade(actor, submission)
}
