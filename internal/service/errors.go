package service

import "errors"

var (
	// ErrCourseNotFound indicates the referenced course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrExamNotFound indicates the referenced exam does not exist.
	ErrExamNotFound = errors.New("exam not found")
	// ErrAssignmentNotFound indicates the referenced assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrSubmissionNotFound indicates the submission was not located.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrConversationNotFound indicates the conversation was not located.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound indicates the message was not located.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbidden indicates the actor may not perform the operation on the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotParticipant indicates the caller is not one of the conversation's two participants.
	ErrNotParticipant = errors.New("not a participant of this conversation")

	// ErrAlreadySubmitted indicates the student already holds a submission for the item.
	ErrAlreadySubmitted = errors.New("already submitted")

	// ErrInvalidAnswers indicates the answers list was missing.
	ErrInvalidAnswers = errors.New("answers must be an array")
	// ErrGradeExceedsMax indicates a grade surpasses the item's total points.
	ErrGradeExceedsMax = errors.New("grade exceeds item total points")
	// ErrNegativeGrade indicates a grade below zero.
	ErrNegativeGrade = errors.New("grade must not be negative")
	// ErrSelfConversation indicates the caller tried to open a conversation with themselves.
	ErrSelfConversation = errors.New("cannot open a conversation with yourself")
	// ErrEmptyMessage indicates the content was empty once sanitized.
	ErrEmptyMessage = errors.New("message content empty after sanitization")
	// ErrInvalidDueDate indicates an assignment deadline that already passed.
	ErrInvalidDueDate = errors.New("assignment due date must be in the future")
	// ErrInvalidQuestion indicates an MCQ whose correct answer is not among its options.
	ErrInvalidQuestion = errors.New("mcq correct answer must be one of its options")
	// ErrIdentityMismatch indicates a channel payload named a user other than the authenticated one.
	ErrIdentityMismatch = errors.New("payload user does not match authenticated user")
)

// IsInvalidInput reports whether err describes a malformed request rather than a missing or forbidden resource.
func IsInvalidInput(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidAnswers),
		errors.Is(err, ErrGradeExceedsMax),
		errors.Is(err, ErrNegativeGrade),
		errors.Is(err, ErrSelfConversation),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrIdentityMismatch),
		errors.Is(err, ErrInvalidDueDate),
		errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, ErrUploadTypeNotAllowed),
		errors.Is(err, ErrUploadScanFailed),
		errors.Is(err, ErrUploadMissingFile):
		return true
	default:
		return false
	}
}

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotParticipant)
}

// IsNotFound reports whether err names a missing resource.
func IsNotFound(err error) bool {
	switch {
	case errors.Is(err, ErrCourseNotFound),
		errors.Is(err, ErrExamNotFound),
		errors.Is(err, ErrAssignmentNotFound),
		errors.Is(err, ErrSubmissionNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrMessageNotFound):
		return true
	default:
		return false
	}
}
