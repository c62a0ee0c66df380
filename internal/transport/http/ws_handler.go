package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"quizflow-client/internal/domain"

	"github.com/gorilla/websocket"
)

// Submitter runs one submission flow; *app.CheckedSubmitter implements it.
type Submitter interface {
	Submit(ctx context.Context, quizID string, answers domain.AnswerSet, onState func(domain.SubmissionState)) (domain.SubmissionResult, error)
}

// WSHandler hosts submission flows over websockets. One connection is one
// submission view: closing it tears the view down and cancels its flow.
type WSHandler struct {
	submitter Submitter
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

func NewWSHandler(submitter Submitter, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		submitter: submitter,
		logger:    logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	Answers domain.AnswerSet `json:"answers"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type navigatePayload struct {
	SubmissionID string `json:"submissionId"`
	AnalysisID   string `json:"analysisId"`
	Path         string `json:"path"`
	Attempts     int    `json:"attempts"`
}

type errorPayload struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts,omitempty"`
}

// ServeWS upgrades the request and runs the submit/state/navigate exchange.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := h.logger.With("quiz", quizID)

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write error", "error", err)
				// unblock the reader so the connection is torn down
				_ = conn.Close()
				return
			}
		}
	}()

	emit := func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-closeSignals:
			return false
		case <-writerDone:
			return false
		}
	}

	var (
		flows   sync.WaitGroup
		mu      sync.Mutex
		running bool
	)
	startFlow := func(answers domain.AnswerSet) {
		mu.Lock()
		if running {
			mu.Unlock()
			emit(outboundMessage{Type: "error", Payload: errorPayload{Code: "busy", Message: "a submission is already in progress"}})
			return
		}
		running = true
		mu.Unlock()

		flows.Add(1)
		go func() {
			defer flows.Done()
			defer func() {
				mu.Lock()
				running = false
				mu.Unlock()
			}()
			result, err := h.submitter.Submit(ctx, quizID, answers, func(s domain.SubmissionState) {
				emit(outboundMessage{Type: "state", Payload: s})
			})
			switch {
			case err == nil:
				emit(outboundMessage{Type: "navigate", Payload: navigatePayload{
					SubmissionID: result.SubmissionID,
					AnalysisID:   result.AnalysisID,
					Path:         result.ResultsPath(),
					Attempts:     result.Attempts,
				}})
			case ctx.Err() != nil:
				// view is gone; nothing to report
			default:
				logger.Warn("submission failed", "error", err)
				emit(outboundMessage{Type: "error", Payload: submitError(err)})
			}
		}()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage{Type: "error", Payload: errorPayload{Code: "invalid", Message: "invalid submit payload"}})
				continue
			}
			startFlow(payload.Answers)
		default:
			emit(outboundMessage{Type: "error", Payload: errorPayload{Code: "invalid", Message: "unsupported message type"}})
		}
	}

	cancel()
	close(closeSignals)
	flows.Wait()
	close(send)
	<-writerDone
}

func submitError(err error) errorPayload {
	var exhausted *domain.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		return errorPayload{Code: "exhausted", Message: err.Error(), Attempts: exhausted.Attempts}
	case errors.Is(err, domain.ErrFlowActive):
		return errorPayload{Code: "busy", Message: err.Error()}
	case errors.Is(err, domain.ErrEmptyAnswers), errors.Is(err, domain.ErrMissingQuiz),
		errors.Is(err, domain.ErrAnswerMismatch), errors.Is(err, domain.ErrQuizNotFound):
		return errorPayload{Code: "invalid", Message: err.Error()}
	default:
		return errorPayload{Code: "failed", Message: err.Error()}
	}
}
