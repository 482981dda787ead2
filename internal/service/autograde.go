package service

import "github.com/noah-isme/skillup-api/internal/models"

// AutoScore sums the points of MCQ questions whose supplied answer equals the stored
// correct answer exactly. Subjective questions and unknown question ids score zero.
// When a question is answered more than once only the first answer counts.
func AutoScore(questions []models.ExamQuestion, answers []models.SubmissionAnswer) float64 {
	byID := make(map[uint]models.ExamQuestion, len(questions))
	for _, question := range questions {
		byID[question.ID] = question
	}

	seen := make(map[uint]struct{}, len(answers))
	var score float64
	for _, answer := range answers {
		if _, dup := seen[answer.QuestionID]; dup {
			continue
		}
		seen[answer.QuestionID] = struct{}{}

		question, ok := byID[answer.QuestionID]
		if !ok || !question.IsAutoGradable() {
			continue
		}
		if answer.Answer == question.CorrectAnswer {
			score += question.Points
		}
	}

	return score
}
