package domain

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AnswerSet maps a question identifier to the respondent's raw answer value.
type AnswerSet map[string]any

// Clone returns a shallow copy so callers cannot mutate a set that is in flight.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Phase is the user-visible phase of a submission flow.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseExhausted  Phase = "exhausted"
)

// Terminal reports whether no further transitions can happen from this phase.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseExhausted
}

// SubmissionState is the coordinator's visible state. Observers get copies.
type SubmissionState struct {
	Phase           Phase  `json:"phase"`
	Attempt         int    `json:"attempt"`
	BackingOff      bool   `json:"backingOff"`
	ProgressPercent int    `json:"progressPercent"`
	LastError       string `json:"lastError,omitempty"`
	AnalysisID      string `json:"analysisId,omitempty"`
}

// Retrying is true while the flow waits out a backoff after a failed attempt.
func (s SubmissionState) Retrying() bool {
	return s.Phase == PhaseSubmitting && s.BackingOff
}

// AttemptStatus tracks one scoring request.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// SubmissionAttempt is the telemetry record emitted for each scoring request.
type SubmissionAttempt struct {
	SubmissionID string
	QuizID       string
	Attempt      int
	Status       AttemptStatus
	Error        string
	At           time.Time
}

// SubmissionResult is what a successful flow hands to the results view.
type SubmissionResult struct {
	SubmissionID string `json:"submissionId"`
	QuizID       string `json:"quizId"`
	AnalysisID   string `json:"analysisId"`
	Attempts     int    `json:"attempts"`
}

// ResultsPath is the route of the results view for this analysis.
func (r SubmissionResult) ResultsPath() string {
	return "/analytics/" + r.AnalysisID
}

// PreviewPage is one server-rendered page of an uploaded document.
type PreviewPage struct {
	PageIndex    int    `json:"page"`
	ThumbnailRef string `json:"image"`
	Selected     bool   `json:"selected"`
}

// PreviewSet is ordered by PageIndex, which runs contiguously from 0.
type PreviewSet []PreviewPage

// SelectionResult is the ordered list of confirmed page indices.
type SelectionResult []int

// SourceFile is a document chosen by the user for quiz generation.
type SourceFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsPDF decides whether the file goes through page preview.
func (f SourceFile) IsPDF() bool {
	if f.ContentType == "application/pdf" {
		return true
	}
	return strings.EqualFold(filepath.Ext(f.Name), ".pdf")
}

// Difficulty levels accepted by the generation endpoint.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// GenerateRequest carries the quiz-generation form.
type GenerateRequest struct {
	File                  SourceFile
	QuestionCount         int    `validate:"min=5,max=20"`
	Difficulty            string `validate:"oneof=easy medium hard"`
	CourseID              string
	IncludeMultipleChoice bool
	IncludeFillInBlank    bool
	Notes                 string
	SelectedPages         SelectionResult `validate:"unique,dive,min=0"`
}

// GeneratedQuiz is the generation endpoint's answer.
type GeneratedQuiz struct {
	QuizID  string `json:"quiz_id"`
	Message string `json:"message"`
}

// IncorrectQuestion describes one wrongly answered question in an analysis.
type IncorrectQuestion struct {
	Question      string `json:"question"`
	UserAnswer    any    `json:"userAnswer"`
	CorrectAnswer any    `json:"correctAnswer"`
	Options       []any  `json:"options,omitempty"`
}

// Analysis is the scored result shown by the results view.
type Analysis struct {
	ID                 string              `json:"id"`
	QuizID             string              `json:"quizId"`
	TotalQuestions     int                 `json:"totalQuestions"`
	CorrectCount       int                 `json:"correctCount"`
	IncorrectCount     int                 `json:"incorrectCount"`
	IncorrectQuestions []IncorrectQuestion `json:"incorrectQuestions"`
	KnowledgeAnalysis  string              `json:"knowledgeAnalysis"`
}

// ScorePercent rounds the share of correct answers; 0 when nothing was scored.
func (a Analysis) ScorePercent() int {
	if a.TotalQuestions == 0 {
		return 0
	}
	return int(math.Round(float64(a.CorrectCount) * 100 / float64(a.TotalQuestions)))
}

// QuizQuestion is one answerable element of a generated quiz.
type QuizQuestion struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Required bool   `json:"isRequired"`
	Choices  []any  `json:"choices,omitempty"`
}

// Quiz is a stored quiz as returned by the quiz endpoints.
type Quiz struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	FileName      string         `json:"fileName"`
	QuestionCount int            `json:"questionCount"`
	Difficulty    string         `json:"difficulty"`
	CreatedAt     string         `json:"createdAt"`
	Questions     []QuizQuestion `json:"questions,omitempty"`
}

// CheckAnswers rejects answer sets that were not produced from this quiz:
// every key must name one of its questions and every required question
// must be answered.
func (q Quiz) CheckAnswers(answers AnswerSet) error {
	if len(answers) == 0 {
		return ErrEmptyAnswers
	}
	known := make(map[string]bool, len(q.Questions))
	for _, question := range q.Questions {
		known[question.Name] = true
	}

	var unknown, missing []string
	for key := range answers {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	for _, question := range q.Questions {
		if _, ok := answers[question.Name]; question.Required && !ok {
			missing = append(missing, question.Name)
		}
	}
	if len(unknown) == 0 && len(missing) == 0 {
		return nil
	}

	sort.Strings(unknown)
	var parts []string
	if len(unknown) > 0 {
		parts = append(parts, "unknown questions "+strings.Join(unknown, ", "))
	}
	if len(missing) > 0 {
		parts = append(parts, "unanswered required questions "+strings.Join(missing, ", "))
	}
	return fmt.Errorf("%w: quiz %s: %s", ErrAnswerMismatch, q.ID, strings.Join(parts, "; "))
}

// AnalysisSummary is one row of the analysis history.
type AnalysisSummary struct {
	ID        string `json:"id"`
	QuizID    string `json:"quizId"`
	QuizTitle string `json:"quizTitle"`
	FileName  string `json:"fileName"`
	CreatedAt string `json:"createdAt"`
}
