package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"quizflow-client/internal/app"
	"quizflow-client/internal/domain"
	"quizflow-client/internal/infra/memory"

	"github.com/gorilla/websocket"
)

type fakeScorer struct {
	calls   int32
	failFor int32
	block   bool
	done    chan struct{}
}

func (s *fakeScorer) AnalyzeQuiz(ctx context.Context, quizID string, answers domain.AnswerSet) (string, error) {
	n := atomic.AddInt32(&s.calls, 1)
	if s.block {
		<-ctx.Done()
		close(s.done)
		return "", ctx.Err()
	}
	if n <= s.failFor {
		return "", &domain.RequestError{Kind: domain.ErrTransientNetwork, Message: "connection refused"}
	}
	return "an-42", nil
}

func fastPolicy() app.RetryPolicy {
	p := app.DefaultRetryPolicy()
	p.BaseDelay = 5 * time.Millisecond
	p.DisplayDelay = 10 * time.Millisecond
	p.HeartbeatInterval = 5 * time.Millisecond
	return p
}

func newTestServer(t *testing.T, scorer app.ScoringClient) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator := app.NewSubmissionCoordinator(scorer,
		app.WithRetryPolicy(fastPolicy()),
		app.WithFlowRegistry(memory.NewFlowRegistry()),
		app.WithLogger(logger),
	)
	wsHandler := NewWSHandler(coordinator, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/submit", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

func dial(t *testing.T, serverURL, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + serverURL[len("http"):] + "/ws/submit" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func submit(t *testing.T, conn *websocket.Conn, answers map[string]any) {
	t.Helper()
	msg := map[string]any{"type": "submit", "payload": map[string]any{"answers": answers}}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write submit: %v", err)
	}
}

// readUntil reads messages until one of type want arrives and returns it with
// every state payload seen before it.
func readUntil(t *testing.T, conn *websocket.Conn, want string) (map[string]any, []map[string]any) {
	t.Helper()
	var states []map[string]any
	for i := 0; i < 200; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == want {
			return payload, states
		}
		if typ == "state" {
			states = append(states, payload)
			continue
		}
		t.Fatalf("unexpected %s message %v while waiting for %s", typ, payload, want)
	}
	t.Fatalf("no %s message", want)
	return nil, nil
}

func TestWebSocketSubmitFlow(t *testing.T) {
	scorer := &fakeScorer{failFor: 2}
	conn := dial(t, newTestServer(t, scorer), "?quizId=quiz-1")

	submit(t, conn, map[string]any{"q1": "B", "q2": []string{"x", "y"}})

	nav, states := readUntil(t, conn, "navigate")
	if nav["analysisId"] != "an-42" || nav["path"] != "/analytics/an-42" {
		t.Fatalf("unexpected navigate payload %v", nav)
	}
	if nav["attempts"] != float64(3) {
		t.Fatalf("expected 3 attempts, got %v", nav["attempts"])
	}

	retrying := false
	last := -1.0
	for _, s := range states {
		if s["backingOff"] == true {
			retrying = true
		}
		p := s["progressPercent"].(float64)
		if s["phase"] == "submitting" && p < last {
			t.Fatalf("progress went backwards: %v after %v", p, last)
		}
		last = p
	}
	if !retrying {
		t.Fatalf("expected a retrying state before success")
	}
	final := states[len(states)-1]
	if final["phase"] != "succeeded" || final["progressPercent"] != float64(100) {
		t.Fatalf("expected succeeded at 100%%, got %v", final)
	}
}

func TestWebSocketReportsExhaustion(t *testing.T) {
	scorer := &fakeScorer{failFor: 100}
	conn := dial(t, newTestServer(t, scorer), "?quizId=quiz-1")

	submit(t, conn, map[string]any{"q1": "B"})

	payload, states := readUntil(t, conn, "error")
	if payload["code"] != "exhausted" || payload["attempts"] != float64(3) {
		t.Fatalf("unexpected error payload %v", payload)
	}
	if states[len(states)-1]["phase"] != "exhausted" {
		t.Fatalf("expected exhausted state, got %v", states[len(states)-1])
	}
	if got := atomic.LoadInt32(&scorer.calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestWebSocketRejectsBadInput(t *testing.T) {
	serverURL := newTestServer(t, &fakeScorer{})

	resp, err := http.Get(serverURL + "/ws/submit")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without quizId, got %d", resp.StatusCode)
	}

	conn := dial(t, serverURL, "?quizId=quiz-1")
	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	typ, payload := readNext(conn, t, "error")
	if typ != "error" || payload["code"] != "invalid" {
		t.Fatalf("expected invalid error, got %s %v", typ, payload)
	}

	submit(t, conn, map[string]any{})
	_, payload = readNext(conn, t, "error")
	if payload["code"] != "invalid" {
		t.Fatalf("expected invalid error for empty answers, got %v", payload)
	}
}

func TestWebSocketCloseCancelsFlow(t *testing.T) {
	scorer := &fakeScorer{block: true, done: make(chan struct{})}
	conn := dial(t, newTestServer(t, scorer), "?quizId=quiz-1")

	submit(t, conn, map[string]any{"q1": "B"})
	readNext(conn, t, "state")
	_ = conn.Close()

	select {
	case <-scorer.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("closing the socket did not cancel the in-flight request")
	}
}

func TestSubmitErrorCodes(t *testing.T) {
	cases := []struct {
		code string
		err  error
	}{
		{"exhausted", &domain.ExhaustedError{Attempts: 3, Last: domain.ErrTransientNetwork}},
		{"busy", domain.ErrFlowActive},
		{"invalid", domain.ErrEmptyAnswers},
		{"invalid", fmt.Errorf("%w: quiz q-1: unknown questions q9", domain.ErrAnswerMismatch)},
		{"invalid", fmt.Errorf("load quiz q-2: %w", domain.ErrQuizNotFound)},
		{"failed", errors.New("boom")},
	}
	for _, c := range cases {
		if got := submitError(c.err).Code; got != c.code {
			t.Fatalf("expected %s for %v, got %s", c.code, c.err, got)
		}
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
