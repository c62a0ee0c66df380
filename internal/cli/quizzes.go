package cli

import (
	"fmt"
	"io"
	"strings"

	"quizflow-client/internal/domain"

	"github.com/spf13/cobra"
)

// NewQuizzesCmd lists stored quizzes, or shows the questions of one quiz so
// an answer file can be written against its question names.
func NewQuizzesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quizzes [QUIZ_ID]",
		Short: "List quizzes or show the questions of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			d, err := newDeps(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			if len(args) == 1 {
				quiz, err := d.backend.GetQuiz(ctx, args[0])
				if err != nil {
					return err
				}
				printQuiz(out, quiz)
				return nil
			}

			quizzes, err := d.backend.ListQuizzes(ctx)
			if err != nil {
				return err
			}
			if len(quizzes) == 0 {
				fmt.Fprintln(out, "No quizzes yet. Create one with: quizflow create FILE")
				return nil
			}
			for _, q := range quizzes {
				fmt.Fprintf(out, "%s\t%s\t%d questions\t%s\t%s\n", q.ID, q.Title, q.QuestionCount, q.Difficulty, q.CreatedAt)
			}
			return nil
		},
	}
}

func printQuiz(out io.Writer, q domain.Quiz) {
	fmt.Fprintf(out, "%s (%s, %d questions)\n", q.Title, q.Difficulty, len(q.Questions))
	for _, question := range q.Questions {
		mark := ""
		if question.Required {
			mark = " *"
		}
		fmt.Fprintf(out, "  %s%s: %s\n", question.Name, mark, question.Title)
		if len(question.Choices) > 0 {
			choices := make([]string, 0, len(question.Choices))
			for _, c := range question.Choices {
				choices = append(choices, fmt.Sprint(c))
			}
			fmt.Fprintf(out, "      choices: %s\n", strings.Join(choices, " | "))
		}
	}
}
