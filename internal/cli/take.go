package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"quizflow-client/internal/app"
	"quizflow-client/internal/domain"

	"github.com/spf13/cobra"
)

// NewTakeCmd submits an answer file and prints the resulting analysis.
func NewTakeCmd(configPath *string) *cobra.Command {
	var quizID string
	cmd := &cobra.Command{
		Use:   "take --quiz ID ANSWERS.json",
		Short: "Submit quiz answers and show the analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTake(cmd, *configPath, quizID, args[0])
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id returned by create")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}

func runTake(cmd *cobra.Command, configPath, quizID, answersPath string) error {
	// Ctrl-C tears the submission view down and cancels the flow.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	answers, err := readAnswers(answersPath)
	if err != nil {
		return err
	}

	d, err := newDeps(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.submitter().Submit(ctx, quizID, answers, progressPrinter(out))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrExhausted):
			fmt.Fprintln(out, "Submission failed. Please check your connection and try again.")
		case errors.Is(err, domain.ErrAnswerMismatch):
			fmt.Fprintf(out, "These answers do not belong to quiz %s. List its questions with: quizflow quizzes %s\n", quizID, quizID)
		}
		return err
	}

	fmt.Fprintf(out, "Opening %s\n", result.ResultsPath())
	analysis, err := app.NewResultsView(d.analysisRepository()).Load(ctx, result)
	if err != nil {
		return err
	}
	printAnalysis(out, analysis)
	return nil
}

func readAnswers(path string) (domain.AnswerSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var answers domain.AnswerSet
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	return answers, nil
}

// progressPrinter renders state changes the way the submission overlay does.
func progressPrinter(out io.Writer) func(domain.SubmissionState) {
	lastAttempt := 0
	return func(s domain.SubmissionState) {
		switch {
		case s.Phase == domain.PhaseSucceeded:
			fmt.Fprintln(out, "Submitted! Redirecting to your results...")
		case s.Phase == domain.PhaseExhausted:
			fmt.Fprintf(out, "Attempt %d failed: %s\n", s.Attempt, s.LastError)
		case s.Retrying():
			if s.Attempt != lastAttempt {
				lastAttempt = s.Attempt
				fmt.Fprintf(out, "Attempt %d failed (%s), retrying...\n", s.Attempt, s.LastError)
			}
		case s.Phase == domain.PhaseSubmitting:
			fmt.Fprintf(out, "Submitting (attempt %d)... %d%%\n", s.Attempt, s.ProgressPercent)
		}
	}
}

func printAnalysis(out io.Writer, a domain.Analysis) {
	fmt.Fprintf(out, "Score: %d%% (%d of %d correct)\n", a.ScorePercent(), a.CorrectCount, a.TotalQuestions)
	if len(a.IncorrectQuestions) > 0 {
		fmt.Fprintln(out, "Review:")
		for i, q := range a.IncorrectQuestions {
			fmt.Fprintf(out, "  %d. %s\n     your answer: %v\n     correct:     %v\n", i+1, q.Question, q.UserAnswer, q.CorrectAnswer)
		}
	}
	if a.KnowledgeAnalysis != "" {
		fmt.Fprintf(out, "\n%s\n", a.KnowledgeAnalysis)
	}
}
