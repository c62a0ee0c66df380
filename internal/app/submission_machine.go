package app

import (
	"errors"
	"net/http"
	"time"

	"quizflow-client/internal/domain"
)

// RetryPolicy holds the timing constants of a submission flow.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	DisplayDelay      time.Duration
	HeartbeatInterval time.Duration
	HeartbeatStep     int
	ProgressCap       int
	// RetryRejected retries 4xx responses like network errors when true.
	RetryRejected bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         2 * time.Second,
		DisplayDelay:      3 * time.Second,
		HeartbeatInterval: 500 * time.Millisecond,
		HeartbeatStep:     10,
		ProgressCap:       90,
		RetryRejected:     true,
	}
}

// Backoff is the wait after the given failed attempt: attempt * BaseDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

type EventKind int

const (
	EventStart EventKind = iota
	EventAttemptFailed
	EventAttemptSucceeded
	EventBackoffElapsed
	EventTick
)

type Event struct {
	Kind       EventKind
	Err        error
	AnalysisID string
}

type EffectKind int

const (
	EffectNone EffectKind = iota
	// EffectSend issues the scoring request for Attempt.
	EffectSend
	// EffectWait sleeps Delay before the next attempt.
	EffectWait
	// EffectNavigate hands AnalysisID to the results view after Delay.
	EffectNavigate
)

type Effect struct {
	Kind       EffectKind
	Attempt    int
	Delay      time.Duration
	AnalysisID string
}

// Transition is the pure step function of the submission state machine:
// Idle -> Attempting(n) -> Backoff(n) -> Attempting(n+1) ... -> Succeeded | Exhausted.
// Events that do not apply to the current state leave it unchanged.
func (p RetryPolicy) Transition(s domain.SubmissionState, ev Event) (domain.SubmissionState, Effect) {
	switch ev.Kind {
	case EventStart:
		if s.Phase != domain.PhaseIdle && s.Phase != "" {
			return s, Effect{}
		}
		return domain.SubmissionState{Phase: domain.PhaseSubmitting, Attempt: 1}, Effect{Kind: EffectSend, Attempt: 1}

	case EventAttemptFailed:
		if s.Phase != domain.PhaseSubmitting || s.BackingOff {
			return s, Effect{}
		}
		if ev.Err != nil {
			s.LastError = ev.Err.Error()
		}
		if s.Attempt < p.MaxRetries && p.retryable(ev.Err) {
			s.BackingOff = true
			return s, Effect{Kind: EffectWait, Attempt: s.Attempt, Delay: p.Backoff(s.Attempt)}
		}
		s.Phase = domain.PhaseExhausted
		return s, Effect{}

	case EventBackoffElapsed:
		if s.Phase != domain.PhaseSubmitting || !s.BackingOff {
			return s, Effect{}
		}
		s.BackingOff = false
		s.Attempt++
		return s, Effect{Kind: EffectSend, Attempt: s.Attempt}

	case EventAttemptSucceeded:
		if s.Phase != domain.PhaseSubmitting || s.BackingOff {
			return s, Effect{}
		}
		s.Phase = domain.PhaseSucceeded
		s.ProgressPercent = 100
		s.AnalysisID = ev.AnalysisID
		s.LastError = ""
		return s, Effect{Kind: EffectNavigate, Delay: p.DisplayDelay, AnalysisID: ev.AnalysisID}

	case EventTick:
		if s.Phase != domain.PhaseSubmitting {
			return s, Effect{}
		}
		next := s.ProgressPercent + p.HeartbeatStep
		if next > p.ProgressCap {
			next = p.ProgressCap
		}
		if next > s.ProgressPercent {
			s.ProgressPercent = next
		}
		return s, Effect{}
	}
	return s, Effect{}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.RetryRejected {
		return true
	}
	var reqErr *domain.RequestError
	if errors.As(err, &reqErr) && errors.Is(reqErr.Kind, domain.ErrServerRejected) {
		return reqErr.StatusCode < http.StatusBadRequest || reqErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
