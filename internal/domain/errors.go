package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientNetwork covers connection failures and client timeouts.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrServerRejected is returned for any non-2xx backend response.
	ErrServerRejected = errors.New("server rejected request")
	// ErrMalformedResponse means the body did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrExhausted is the terminal submission failure after all retries.
	ErrExhausted = errors.New("submission retries exhausted")
	// ErrUpload is returned when the preview upload fails.
	ErrUpload = errors.New("preview upload failed")
	// ErrEmptySelection rejects a confirm with zero selected pages.
	ErrEmptySelection = errors.New("no pages selected")

	ErrEmptyAnswers     = errors.New("answer set is empty")
	ErrMissingQuiz      = errors.New("quiz id is required")
	ErrFlowActive       = errors.New("a flow is already active for this entity")
	ErrNotPDF           = errors.New("file is not a pdf")
	ErrNoPreview        = errors.New("no preview loaded")
	ErrPageOutOfRange   = errors.New("page index out of range")
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrInvalidRequest   = errors.New("invalid generation request")
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrAnswerMismatch   = errors.New("answers do not match the quiz")
)

// RequestError describes a failed backend call. Kind is one of the sentinels above.
type RequestError struct {
	Kind       error
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Kind }

// ExhaustedError is returned once the last allowed attempt has failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("submission failed after %d attempts, check your connection or try again later: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }

// UploadError carries the message to show in place of the preview grid.
type UploadError struct {
	Message string
	Cause   error
}

func (e *UploadError) Error() string {
	return "preview upload failed: " + e.Message
}

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

func (e *UploadError) Unwrap() error { return e.Cause }
