package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quizflow-client/internal/domain"

	"github.com/go-playground/validator/v10"
)

// GenerationClient posts the quiz-generation form to the backend.
type GenerationClient interface {
	GenerateQuiz(ctx context.Context, req domain.GenerateRequest) (domain.GeneratedQuiz, error)
}

// DocumentPicker holds the host's file choice and the pages confirmed for it.
type DocumentPicker struct {
	file  *domain.SourceFile
	pages domain.SelectionResult
}

// Choose replaces the current file. It reports whether the file must go
// through page preview; non-PDF files are used whole.
func (p *DocumentPicker) Choose(file domain.SourceFile) bool {
	p.file = &file
	p.pages = nil
	return file.IsPDF()
}

// Close applies the outcome of the preview dialog.
func (p *DocumentPicker) Close(outcome DismissOutcome) {
	if outcome.Discard {
		p.file, p.pages = nil, nil
		return
	}
	p.pages = outcome.Selection
}

func (p *DocumentPicker) File() (domain.SourceFile, bool) {
	if p.file == nil {
		return domain.SourceFile{}, false
	}
	return *p.file, true
}

func (p *DocumentPicker) SelectedPages() domain.SelectionResult { return p.pages }

// QuizGenerator validates and submits generation requests.
type QuizGenerator struct {
	client   GenerationClient
	validate *validator.Validate
	logger   *slog.Logger
}

func NewQuizGenerator(client GenerationClient, logger *slog.Logger) *QuizGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterStructValidation(questionTypeValidation, domain.GenerateRequest{})
	return &QuizGenerator{client: client, validate: v, logger: logger}
}

func questionTypeValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(domain.GenerateRequest)
	if !req.IncludeMultipleChoice && !req.IncludeFillInBlank {
		sl.ReportError(req.IncludeMultipleChoice, "IncludeMultipleChoice", "IncludeMultipleChoice", "questiontype", "")
	}
	if req.File.Name == "" || len(req.File.Data) == 0 {
		sl.ReportError(req.File.Name, "File", "File", "required", "")
	}
}

// Generate validates req and posts it. Page filters only apply to PDFs.
func (g *QuizGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GeneratedQuiz, error) {
	if !req.File.IsPDF() {
		req.SelectedPages = nil
	}
	if err := g.validate.Struct(req); err != nil {
		return domain.GeneratedQuiz{}, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, describeValidation(err))
	}
	quiz, err := g.client.GenerateQuiz(ctx, req)
	if err != nil {
		g.logger.Error("quiz generation failed", "file", req.File.Name, "error", err)
		return domain.GeneratedQuiz{}, fmt.Errorf("generate quiz: %w", err)
	}
	if quiz.QuizID == "" {
		return domain.GeneratedQuiz{}, &domain.RequestError{Kind: domain.ErrMalformedResponse, Message: "response has no quiz_id"}
	}
	g.logger.Info("quiz generated", "quiz", quiz.QuizID, "file", req.File.Name, "pages", len(req.SelectedPages))
	return quiz, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must be %s %s", fe.Field(), fe.Tag(), fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "questiontype":
			parts = append(parts, "at least one question type is required")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
