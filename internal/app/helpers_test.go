package app_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quizflow-client/internal/app"
	"quizflow-client/internal/domain"
)

// manualClock hands every timer and ticker to the test, which fires them explicitly.
type manualClock struct {
	timers  chan *manualTimer
	tickers chan *manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{
		timers:  make(chan *manualTimer, 16),
		tickers: make(chan *manualTicker, 4),
	}
}

func (c *manualClock) Now() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

func (c *manualClock) NewTimer(d time.Duration) app.Timer {
	t := &manualTimer{d: d, c: make(chan time.Time, 1)}
	c.timers <- t
	return t
}

func (c *manualClock) NewTicker(d time.Duration) app.Ticker {
	t := &manualTicker{d: d, c: make(chan time.Time)}
	c.tickers <- t
	return t
}

func (c *manualClock) nextTimer(t *testing.T) *manualTimer {
	t.Helper()
	select {
	case tm := <-c.timers:
		return tm
	case <-time.After(2 * time.Second):
		t.Fatalf("no timer scheduled")
		return nil
	}
}

func (c *manualClock) nextTicker(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-c.tickers:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatalf("no ticker started")
		return nil
	}
}

func (c *manualClock) assertNoTimer(t *testing.T) {
	t.Helper()
	select {
	case tm := <-c.timers:
		t.Fatalf("unexpected timer for %s", tm.d)
	case <-time.After(50 * time.Millisecond):
	}
}

type manualTimer struct {
	d       time.Duration
	c       chan time.Time
	stopped atomic.Bool
}

func (t *manualTimer) C() <-chan time.Time { return t.c }
func (t *manualTimer) Stop() bool          { return !t.stopped.Swap(true) }
func (t *manualTimer) fire()               { t.c <- time.Time{} }

type manualTicker struct {
	d       time.Duration
	c       chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// tick blocks until the flow loop has taken the tick.
func (t *manualTicker) tick(tb testing.TB) {
	tb.Helper()
	select {
	case t.c <- time.Time{}:
	case <-time.After(2 * time.Second):
		tb.Fatalf("flow did not consume tick")
	}
}

type scoreReply struct {
	analysisID string
	err        error
}

// scriptedScorer answers calls in order; a nil gate answers immediately.
type scriptedScorer struct {
	mu      sync.Mutex
	replies []scoreReply
	calls   int
	gate    chan struct{}
	quizIDs []string
}

func (s *scriptedScorer) AnalyzeQuiz(ctx context.Context, quizID string, _ domain.AnswerSet) (string, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.quizIDs = append(s.quizIDs, quizID)
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if idx >= len(s.replies) {
		return "", &domain.RequestError{Kind: domain.ErrTransientNetwork, Message: "no scripted reply"}
	}
	r := s.replies[idx]
	return r.analysisID, r.err
}

func (s *scriptedScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stateLog struct {
	mu     sync.Mutex
	states []domain.SubmissionState
}

func (l *stateLog) observe(s domain.SubmissionState) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) snapshot() []domain.SubmissionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.SubmissionState, len(l.states))
	copy(out, l.states)
	return out
}

type recorded struct {
	mu       sync.Mutex
	attempts []domain.SubmissionAttempt
}

func (r *recorded) RecordAttempt(_ context.Context, a domain.SubmissionAttempt) error {
	r.mu.Lock()
	r.attempts = append(r.attempts, a)
	r.mu.Unlock()
	return nil
}

func (r *recorded) snapshot() []domain.SubmissionAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SubmissionAttempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

type submitResult struct {
	result domain.SubmissionResult
	err    error
}

func startSubmit(ctx context.Context, c *app.SubmissionCoordinator, quizID string, log *stateLog) <-chan submitResult {
	done := make(chan submitResult, 1)
	go func() {
		res, err := c.Submit(ctx, quizID, domain.AnswerSet{"q1": "B", "q2": []string{"A", "C"}}, log.observe)
		done <- submitResult{res, err}
	}()
	return done
}

func waitDone(t *testing.T, done <-chan submitResult) submitResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("submission did not finish")
		return submitResult{}
	}
}

func transient(msg string) error {
	return &domain.RequestError{Kind: domain.ErrTransientNetwork, Message: msg}
}
