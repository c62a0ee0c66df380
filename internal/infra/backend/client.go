package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quizflow-client/internal/domain"
)

// DefaultTimeout applies to every backend request.
const DefaultTimeout = 30 * time.Second

// Client talks to the quiz-generation and scoring REST backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "backend"),
	}
}

type analyzeRequest struct {
	Answers domain.AnswerSet `json:"answers"`
	QuizID  string           `json:"quiz_id"`
}

type analyzeResponse struct {
	AnalysisID json.RawMessage `json:"analysis_id"`
}

// AnalyzeQuiz posts answers to /analyze-quiz and returns the analysis id.
func (c *Client) AnalyzeQuiz(ctx context.Context, quizID string, answers domain.AnswerSet) (string, error) {
	body, err := json.Marshal(analyzeRequest{Answers: answers, QuizID: quizID})
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-quiz", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out analyzeResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	id := idString(out.AnalysisID)
	if id == "" {
		return "", &domain.RequestError{Kind: domain.ErrMalformedResponse, Message: "response has no analysis_id"}
	}
	return id, nil
}

type previewResponse struct {
	Previews []struct {
		Page  *int   `json:"page"`
		Image string `json:"image"`
	} `json:"previews"`
}

// UploadPreview posts the file to /pdf-preview.
func (c *Client) UploadPreview(ctx context.Context, file domain.SourceFile) ([]domain.PreviewPage, error) {
	body, contentType, err := multipartBody(file, nil)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pdf-preview", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var out previewResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Previews == nil {
		return nil, &domain.RequestError{Kind: domain.ErrMalformedResponse, Message: "response has no previews"}
	}
	pages := make([]domain.PreviewPage, 0, len(out.Previews))
	for i, p := range out.Previews {
		if p.Page == nil || p.Image == "" {
			return nil, &domain.RequestError{Kind: domain.ErrMalformedResponse, Message: fmt.Sprintf("preview %d is incomplete", i)}
		}
		pages = append(pages, domain.PreviewPage{PageIndex: *p.Page, ThumbnailRef: p.Image})
	}
	return pages, nil
}

// GenerateQuiz posts the generation form to /generate-quiz.
func (c *Client) GenerateQuiz(ctx context.Context, gen domain.GenerateRequest) (domain.GeneratedQuiz, error) {
	fields := [][2]string{
		{"questionCount", strconv.Itoa(gen.QuestionCount)},
		{"difficulty", gen.Difficulty},
		{"includeMultipleChoice", strconv.FormatBool(gen.IncludeMultipleChoice)},
		{"includeFillInBlank", strconv.FormatBool(gen.IncludeFillInBlank)},
	}
	if gen.CourseID != "" {
		fields = append(fields, [2]string{"courseId", gen.CourseID})
	}
	if notes := strings.TrimSpace(gen.Notes); notes != "" {
		fields = append(fields, [2]string{"notes", notes})
	}
	if gen.File.IsPDF() && len(gen.SelectedPages) > 0 {
		pages, err := json.Marshal([]int(gen.SelectedPages))
		if err != nil {
			return domain.GeneratedQuiz{}, err
		}
		fields = append(fields, [2]string{"selectedPages", string(pages)})
	}

	body, contentType, err := multipartBody(gen.File, fields)
	if err != nil {
		return domain.GeneratedQuiz{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-quiz", body)
	if err != nil {
		return domain.GeneratedQuiz{}, err
	}
	req.Header.Set("Content-Type", contentType)

	var out struct {
		QuizID  json.RawMessage `json:"quiz_id"`
		Message string          `json:"message"`
	}
	if err := c.do(req, &out); err != nil {
		return domain.GeneratedQuiz{}, err
	}
	return domain.GeneratedQuiz{QuizID: idString(out.QuizID), Message: out.Message}, nil
}

type analysisResponse struct {
	ID           json.RawMessage `json:"id"`
	QuizID       json.RawMessage `json:"quiz_id"`
	AnalysisJSON *struct {
		TotalQuestions     int                        `json:"totalQuestions"`
		CorrectCount       int                        `json:"correctCount"`
		IncorrectCount     int                        `json:"incorrectCount"`
		IncorrectQuestions []domain.IncorrectQuestion `json:"incorrectQuestions"`
		KnowledgeAnalysis  string                     `json:"knowledgeAnalysis"`
	} `json:"analysis_json"`
}

// LoadAnalysis fetches GET /analyses/{id}.
func (c *Client) LoadAnalysis(ctx context.Context, analysisID string) (domain.Analysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/analyses/"+url.PathEscape(analysisID), nil)
	if err != nil {
		return domain.Analysis{}, err
	}
	var out analysisResponse
	if err := c.do(req, &out); err != nil {
		var reqErr *domain.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
			return domain.Analysis{}, fmt.Errorf("%w: %s", domain.ErrAnalysisNotFound, analysisID)
		}
		return domain.Analysis{}, err
	}
	if out.AnalysisJSON == nil {
		return domain.Analysis{}, &domain.RequestError{Kind: domain.ErrMalformedResponse, Message: "response has no analysis_json"}
	}
	id := idString(out.ID)
	if id == "" {
		id = analysisID
	}
	a := out.AnalysisJSON
	return domain.Analysis{
		ID:                 id,
		QuizID:             idString(out.QuizID),
		TotalQuestions:     a.TotalQuestions,
		CorrectCount:       a.CorrectCount,
		IncorrectCount:     a.IncorrectCount,
		IncorrectQuestions: a.IncorrectQuestions,
		KnowledgeAnalysis:  a.KnowledgeAnalysis,
	}, nil
}

type quizRow struct {
	ID            json.RawMessage `json:"id"`
	Title         string          `json:"title"`
	FileName      string          `json:"file_name"`
	QuizJSON      json.RawMessage `json:"quiz_json"`
	QuestionCount int             `json:"question_count"`
	Difficulty    string          `json:"difficulty"`
	CreatedAt     string          `json:"created_at"`
}

func (r quizRow) quiz() domain.Quiz {
	return domain.Quiz{
		ID:            idString(r.ID),
		Title:         r.Title,
		FileName:      r.FileName,
		QuestionCount: r.QuestionCount,
		Difficulty:    r.Difficulty,
		CreatedAt:     r.CreatedAt,
	}
}

// surveyElement is the subset of the stored survey definition needed to
// know which answer keys a quiz accepts. Panels nest further elements.
type surveyElement struct {
	Type       string          `json:"type"`
	Name       string          `json:"name"`
	Title      string          `json:"title"`
	IsRequired bool            `json:"isRequired"`
	Choices    []any           `json:"choices"`
	Elements   []surveyElement `json:"elements"`
}

type surveyDefinition struct {
	Pages []struct {
		Elements []surveyElement `json:"elements"`
	} `json:"pages"`
	Elements []surveyElement `json:"elements"`
}

// GetQuiz fetches GET /quizzes/{id} including its questions.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quizzes/"+url.PathEscape(quizID), nil)
	if err != nil {
		return domain.Quiz{}, err
	}
	var row quizRow
	if err := c.do(req, &row); err != nil {
		var reqErr *domain.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
			return domain.Quiz{}, fmt.Errorf("%w: %s", domain.ErrQuizNotFound, quizID)
		}
		return domain.Quiz{}, err
	}
	quiz := row.quiz()
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	questions, err := parseQuestions(row.QuizJSON)
	if err != nil {
		return domain.Quiz{}, &domain.RequestError{Kind: domain.ErrMalformedResponse, Message: "quiz_json: " + err.Error()}
	}
	quiz.Questions = questions
	return quiz, nil
}

// ListQuizzes fetches GET /quizzes, newest first as the backend orders them.
func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quizzes", nil)
	if err != nil {
		return nil, err
	}
	var rows []quizRow
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	quizzes := make([]domain.Quiz, 0, len(rows))
	for _, r := range rows {
		quizzes = append(quizzes, r.quiz())
	}
	return quizzes, nil
}

// ListAnalyses fetches GET /analyses.
func (c *Client) ListAnalyses(ctx context.Context) ([]domain.AnalysisSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/analyses", nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID        json.RawMessage `json:"id"`
		QuizID    json.RawMessage `json:"quiz_id"`
		QuizTitle string          `json:"quiz_title"`
		FileName  string          `json:"file_name"`
		CreatedAt string          `json:"created_at"`
	}
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.AnalysisSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AnalysisSummary{
			ID:        idString(r.ID),
			QuizID:    idString(r.QuizID),
			QuizTitle: r.QuizTitle,
			FileName:  r.FileName,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// parseQuestions reads the survey definition, which the backend stores either
// as a JSON string or as an embedded object.
func parseQuestions(raw json.RawMessage) ([]domain.QuizQuestion, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("missing")
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		raw = json.RawMessage(text)
	}
	var def surveyDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}

	var questions []domain.QuizQuestion
	var walk func([]surveyElement)
	walk = func(elements []surveyElement) {
		for _, e := range elements {
			if len(e.Elements) > 0 {
				walk(e.Elements)
				continue
			}
			if e.Name == "" || e.Type == "html" || e.Type == "image" {
				continue
			}
			questions = append(questions, domain.QuizQuestion{
				Name:     e.Name,
				Title:    e.Title,
				Type:     e.Type,
				Required: e.IsRequired,
				Choices:  e.Choices,
			})
		}
	}
	for _, page := range def.Pages {
		walk(page.Elements)
	}
	walk(def.Elements)
	if len(questions) == 0 {
		return nil, errors.New("no questions")
	}
	return questions, nil
}

// do sends req and decodes a 2xx JSON body into out, mapping failures onto the
// domain error taxonomy.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn("backend request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return &domain.RequestError{Kind: domain.ErrTransientNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RequestError{Kind: domain.ErrTransientNetwork, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	c.logger.Debug("backend response", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.RequestError{Kind: domain.ErrServerRejected, StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.RequestError{Kind: domain.ErrMalformedResponse, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return nil
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fallback
}

// idString accepts ids encoded as JSON strings or numbers.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func multipartBody(file domain.SourceFile, fields [][2]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
