package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceFileIsPDF(t *testing.T) {
	assert.True(t, SourceFile{Name: "notes.PDF"}.IsPDF())
	assert.True(t, SourceFile{Name: "upload", ContentType: "application/pdf"}.IsPDF())
	assert.False(t, SourceFile{Name: "notes.txt", ContentType: "text/plain"}.IsPDF())
}

func TestAnalysisScorePercent(t *testing.T) {
	assert.Equal(t, 0, Analysis{}.ScorePercent())
	assert.Equal(t, 67, Analysis{TotalQuestions: 3, CorrectCount: 2}.ScorePercent())
}

func TestErrorTaxonomy(t *testing.T) {
	reqErr := &RequestError{Kind: ErrServerRejected, StatusCode: 502, Message: "bad gateway"}
	exhausted := &ExhaustedError{Attempts: 3, Last: reqErr}

	assert.True(t, errors.Is(exhausted, ErrExhausted))
	assert.True(t, errors.Is(exhausted, ErrServerRejected))
	assert.True(t, errors.Is(fmt.Errorf("submit: %w", exhausted), ErrExhausted))

	upload := &UploadError{Message: "unsupported file"}
	assert.True(t, errors.Is(upload, ErrUpload))
	assert.False(t, errors.Is(upload, ErrExhausted))
}

func setsQuiz() Quiz {
	return Quiz{
		ID: "quiz-3",
		Questions: []QuizQuestion{
			{Name: "question1", Type: "radiogroup", Required: true},
			{Name: "question2", Type: "radiogroup", Required: true},
			{Name: "question3", Type: "text"},
		},
	}
}

func TestQuizCheckAnswers(t *testing.T) {
	q := setsQuiz()

	assert.NoError(t, q.CheckAnswers(AnswerSet{"question1": "A", "question2": "B"}))
	assert.NoError(t, q.CheckAnswers(AnswerSet{"question1": "A", "question2": "B", "question3": "free text"}))
	assert.ErrorIs(t, q.CheckAnswers(AnswerSet{}), ErrEmptyAnswers)

	err := q.CheckAnswers(AnswerSet{"question1": "A", "question2": "B", "q9": "C", "q7": "D"})
	assert.ErrorIs(t, err, ErrAnswerMismatch)
	assert.Contains(t, err.Error(), "unknown questions q7, q9")

	err = q.CheckAnswers(AnswerSet{"question1": "A"})
	assert.ErrorIs(t, err, ErrAnswerMismatch)
	assert.Contains(t, err.Error(), "unanswered required questions question2")
}
