package cli

import (
	"fmt"

	"quizflow-client/internal/app"
	"quizflow-client/internal/domain"

	"github.com/spf13/cobra"
)

// NewHistoryCmd lists past analyses, or prints one of them.
func NewHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history [ANALYSIS_ID]",
		Short: "List past analyses or show one",
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
				analysis, err := app.NewResultsView(d.analysisRepository()).Load(ctx, domain.SubmissionResult{AnalysisID: args[0]})
				if err != nil {
					return err
				}
				if analysis.QuizID != "" {
					fmt.Fprintf(out, "Quiz %s\n", analysis.QuizID)
				}
				printAnalysis(out, analysis)
				return nil
			}

			analyses, err := d.backend.ListAnalyses(ctx)
			if err != nil {
				return err
			}
			if len(analyses) == 0 {
				fmt.Fprintln(out, "No analyses yet.")
				return nil
			}
			for _, a := range analyses {
				fmt.Fprintf(out, "%s\tquiz %s\t%s\t%s\t%s\n", a.ID, a.QuizID, a.QuizTitle, a.FileName, a.CreatedAt)
			}
			return nil
		},
	}
}
