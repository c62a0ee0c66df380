package app_test

import (
	"context"
	"testing"

	"quizflow-client/internal/app"
	"quizflow-client/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuizzes map[string]domain.Quiz

func (s stubQuizzes) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if q, ok := s[quizID]; ok {
		return q, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func checkedFixture() (*app.CheckedSubmitter, *scriptedScorer, *manualClock) {
	clk := newManualClock()
	scorer := &scriptedScorer{replies: []scoreReply{{analysisID: "an-5"}}}
	quizzes := stubQuizzes{"quiz-1": {ID: "quiz-1", Questions: []domain.QuizQuestion{
		{Name: "q1", Required: true},
		{Name: "q2"},
	}}}
	return app.NewCheckedSubmitter(quizzes, newCoordinator(scorer, clk)), scorer, clk
}

func TestCheckedSubmitterRejectsForeignAnswers(t *testing.T) {
	s, scorer, _ := checkedFixture()

	_, err := s.Submit(context.Background(), "quiz-1", domain.AnswerSet{"q1": "A", "other": "B"}, nil)
	assert.ErrorIs(t, err, domain.ErrAnswerMismatch)

	_, err = s.Submit(context.Background(), "quiz-1", domain.AnswerSet{"q2": "B"}, nil)
	assert.ErrorIs(t, err, domain.ErrAnswerMismatch)

	_, err = s.Submit(context.Background(), "quiz-404", domain.AnswerSet{"q1": "A"}, nil)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)

	assert.Equal(t, 0, scorer.callCount())
}

func TestCheckedSubmitterSubmitsMatchingAnswers(t *testing.T) {
	s, scorer, clk := checkedFixture()

	done := make(chan submitResult, 1)
	go func() {
		res, err := s.Submit(context.Background(), "quiz-1", domain.AnswerSet{"q1": "A"}, nil)
		done <- submitResult{res, err}
	}()
	clk.nextTicker(t)
	clk.nextTimer(t).fire()

	r := waitDone(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, "an-5", r.result.AnalysisID)
	assert.Equal(t, 1, scorer.callCount())
}
