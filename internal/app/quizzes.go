package app

import (
	"context"
	"fmt"

	"quizflow-client/internal/domain"
)

// QuizSource loads a stored quiz with its questions.
type QuizSource interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// CheckedSubmitter loads the quiz before submitting so that only answers
// taken from that quiz reach the scoring backend.
type CheckedSubmitter struct {
	quizzes     QuizSource
	coordinator *SubmissionCoordinator
}

func NewCheckedSubmitter(quizzes QuizSource, coordinator *SubmissionCoordinator) *CheckedSubmitter {
	return &CheckedSubmitter{quizzes: quizzes, coordinator: coordinator}
}

func (s *CheckedSubmitter) Submit(ctx context.Context, quizID string, answers domain.AnswerSet, onState func(domain.SubmissionState)) (domain.SubmissionResult, error) {
	if quizID == "" {
		return domain.SubmissionResult{}, domain.ErrMissingQuiz
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	if err := quiz.CheckAnswers(answers); err != nil {
		return domain.SubmissionResult{}, err
	}
	return s.coordinator.Submit(ctx, quizID, answers, onState)
}
