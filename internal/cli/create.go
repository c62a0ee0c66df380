package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"quizflow-client/internal/app"
	"quizflow-client/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

type createOptions struct {
	questionCount  int
	difficulty     string
	courseID       string
	multipleChoice bool
	fillInBlank    bool
	notes          string
}

// NewCreateCmd generates a quiz from a document. PDFs go through an
// interactive page selection before the generation request is sent.
func NewCreateCmd(configPath *string) *cobra.Command {
	opts := createOptions{}
	cmd := &cobra.Command{
		Use:   "create FILE",
		Short: "Generate a quiz from a study document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, *configPath, args[0], opts)
		},
	}
	cmd.Flags().IntVar(&opts.questionCount, "count", 10, "number of questions (5-20)")
	cmd.Flags().StringVar(&opts.difficulty, "difficulty", domain.DifficultyMedium, "easy, medium or hard")
	cmd.Flags().StringVar(&opts.courseID, "course", "", "course the quiz belongs to")
	cmd.Flags().BoolVar(&opts.multipleChoice, "multiple-choice", true, "include multiple choice questions")
	cmd.Flags().BoolVar(&opts.fillInBlank, "fill-in-blank", false, "include fill in the blank questions")
	cmd.Flags().StringVar(&opts.notes, "notes", "", "extra instructions for the generator")
	return cmd
}

func runCreate(cmd *cobra.Command, configPath, path string, opts createOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	d, err := newDeps(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer d.Close()

	file, err := readSourceFile(path)
	if err != nil {
		return err
	}

	picker := &app.DocumentPicker{}
	if picker.Choose(file) {
		selector := app.NewPagePreviewSelector(d.backend, d.logger)
		fmt.Fprintf(out, "Uploading %s for preview...\n", file.Name)
		dialog := selector.Open(ctx, file)
		picker.Close(selectPages(ctx, dialog, cmd.InOrStdin(), out))
	}

	chosen, ok := picker.File()
	if !ok {
		fmt.Fprintln(out, "No file selected, nothing generated.")
		return nil
	}

	generator := app.NewQuizGenerator(d.backend, d.logger)
	quiz, err := generator.Generate(ctx, domain.GenerateRequest{
		File:                  chosen,
		QuestionCount:         opts.questionCount,
		Difficulty:            opts.difficulty,
		CourseID:              opts.courseID,
		IncludeMultipleChoice: opts.multipleChoice,
		IncludeFillInBlank:    opts.fillInBlank,
		Notes:                 opts.notes,
		SelectedPages:         picker.SelectedPages(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Quiz %s generated.", quiz.QuizID)
	if quiz.Message != "" {
		fmt.Fprintf(out, " %s", quiz.Message)
	}
	fmt.Fprintf(out, "\nSubmit answers with: quizflow take --quiz %s ANSWERS.json\n", quiz.QuizID)
	return nil
}

func readSourceFile(path string) (domain.SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return domain.SourceFile{
		Name:        filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

const pageHelp = `Commands: list | t N [N...] (toggle pages) | all | none | ok | cancel`

// selectPages drives a preview dialog from line commands until the user
// confirms or cancels. End of input counts as cancel.
func selectPages(ctx context.Context, dialog *app.PreviewDialog, in io.Reader, out io.Writer) app.DismissOutcome {
	scanner := bufio.NewScanner(in)
	prompt := func() bool {
		fmt.Fprint(out, "> ")
		return scanner.Scan()
	}

	for dialog.Status() == app.DialogFailed {
		fmt.Fprintf(out, "Preview failed: %v\nType retry or cancel.\n", dialog.Err())
		if !prompt() {
			return dialog.Dismiss()
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "retry":
			_ = dialog.Retry(ctx)
		case "cancel":
			return dialog.Dismiss()
		}
	}

	printPages(out, dialog)
	fmt.Fprintln(out, pageHelp)
	for prompt() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "list", "ls":
			printPages(out, dialog)
		case "t", "toggle":
			for _, f := range fields[1:] {
				n, err := strconv.Atoi(f)
				if err != nil {
					fmt.Fprintf(out, "not a page number: %s\n", f)
					continue
				}
				if err := dialog.Toggle(n - 1); err != nil {
					fmt.Fprintf(out, "page %d: %v\n", n, err)
				}
			}
			printSelected(out, dialog)
		case "all":
			_ = dialog.SelectAll()
			printSelected(out, dialog)
		case "none":
			_ = dialog.SelectNone()
			printSelected(out, dialog)
		case "ok", "confirm":
			if !dialog.CanConfirm() {
				fmt.Fprintln(out, "Select at least one page.")
				continue
			}
			selection, err := dialog.Confirm()
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			fmt.Fprintf(out, "Using %d page(s).\n", len(selection))
			return dialog.Dismiss()
		case "cancel", "q":
			return dialog.Dismiss()
		default:
			fmt.Fprintln(out, pageHelp)
		}
	}
	return dialog.Dismiss()
}

func printPages(out io.Writer, dialog *app.PreviewDialog) {
	for _, p := range dialog.Pages() {
		mark := " "
		if p.Selected {
			mark = "x"
		}
		fmt.Fprintf(out, "[%s] Page %d\n", mark, p.PageIndex+1)
	}
	printSelected(out, dialog)
}

func printSelected(out io.Writer, dialog *app.PreviewDialog) {
	pages := dialog.Pages()
	fmt.Fprintf(out, "%d of %d pages selected\n", pages.SelectedCount(), len(pages))
}
