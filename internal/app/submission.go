package app

import (
	"context"
	"log/slog"
	"time"

	"quizflow-client/internal/domain"

	"github.com/google/uuid"
)

// ScoringClient posts an answer set to the scoring endpoint and returns the analysis id.
type ScoringClient interface {
	AnalyzeQuiz(ctx context.Context, quizID string, answers domain.AnswerSet) (string, error)
}

// AttemptRecorder receives one record per attempt status change.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt domain.SubmissionAttempt) error
}

// FlowRegistry leases an entity key to at most one active flow.
type FlowRegistry interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// SubmissionCoordinator drives answer submission with bounded retries.
type SubmissionCoordinator struct {
	scorer   ScoringClient
	policy   RetryPolicy
	clock    Clock
	flows    FlowRegistry
	recorder AttemptRecorder
	logger   *slog.Logger
	newID    func() string
}

type CoordinatorOption func(*SubmissionCoordinator)

func WithRetryPolicy(p RetryPolicy) CoordinatorOption {
	return func(c *SubmissionCoordinator) { c.policy = p }
}

func WithClock(clock Clock) CoordinatorOption {
	return func(c *SubmissionCoordinator) { c.clock = clock }
}

func WithFlowRegistry(flows FlowRegistry) CoordinatorOption {
	return func(c *SubmissionCoordinator) { c.flows = flows }
}

func WithAttemptRecorder(r AttemptRecorder) CoordinatorOption {
	return func(c *SubmissionCoordinator) { c.recorder = r }
}

func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *SubmissionCoordinator) { c.logger = logger }
}

func NewSubmissionCoordinator(scorer ScoringClient, opts ...CoordinatorOption) *SubmissionCoordinator {
	c := &SubmissionCoordinator{
		scorer: scorer,
		policy: DefaultRetryPolicy(),
		clock:  SystemClock(),
		logger: slog.Default(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit runs one submission flow to completion. onState receives every state
// change from the calling goroutine's flow loop and is never called after ctx is
// cancelled. On success Submit returns once the display delay has elapsed, so
// the caller can navigate straight to the results view.
func (c *SubmissionCoordinator) Submit(ctx context.Context, quizID string, answers domain.AnswerSet, onState func(domain.SubmissionState)) (domain.SubmissionResult, error) {
	if quizID == "" {
		return domain.SubmissionResult{}, domain.ErrMissingQuiz
	}
	if len(answers) == 0 {
		return domain.SubmissionResult{}, domain.ErrEmptyAnswers
	}
	if c.flows != nil {
		release, err := c.flows.Acquire(ctx, "submission:"+quizID)
		if err != nil {
			return domain.SubmissionResult{}, err
		}
		defer release()
	}
	if onState == nil {
		onState = func(domain.SubmissionState) {}
	}

	id := c.newID()
	f := &submissionFlow{
		coordinator: c,
		id:          id,
		quizID:      quizID,
		answers:     answers.Clone(),
		onState:     onState,
		logger:      c.logger.With("submission", id, "quiz", quizID),
	}
	return f.run(ctx)
}

type attemptOutcome struct {
	attempt    int
	analysisID string
	err        error
}

type submissionFlow struct {
	coordinator *SubmissionCoordinator
	id          string
	quizID      string
	answers     domain.AnswerSet
	onState     func(domain.SubmissionState)
	logger      *slog.Logger
	state       domain.SubmissionState
}

func (f *submissionFlow) run(parent context.Context) (domain.SubmissionResult, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	policy := f.coordinator.policy
	clock := f.coordinator.clock

	ticker := clock.NewTicker(policy.HeartbeatInterval)
	defer ticker.Stop()
	tickC := ticker.C()

	var timer Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	// At most one request is in flight, so a single slot never blocks the sender.
	outcomes := make(chan attemptOutcome, 1)

	apply := func(ev Event) {
		next, effect := policy.Transition(f.state, ev)
		if next != f.state {
			f.state = next
			f.onState(next)
		}
		switch effect.Kind {
		case EffectSend:
			f.send(ctx, effect.Attempt, outcomes)
		case EffectWait, EffectNavigate:
			timer = clock.NewTimer(effect.Delay)
			timerC = timer.C()
			if effect.Kind == EffectWait {
				f.logger.Warn("retrying submission", "attempt", effect.Attempt+1, "delay", effect.Delay, "error", f.state.LastError)
			}
		}
		if f.state.Phase.Terminal() && tickC != nil {
			ticker.Stop()
			tickC = nil
		}
	}

	apply(Event{Kind: EventStart})

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("submission cancelled", "attempt", f.state.Attempt)
			return domain.SubmissionResult{}, ctx.Err()
		case <-tickC:
			if ctx.Err() != nil {
				continue
			}
			apply(Event{Kind: EventTick})
		case out := <-outcomes:
			if ctx.Err() != nil {
				continue
			}
			if out.err == nil && out.analysisID == "" {
				out.err = &domain.RequestError{Kind: domain.ErrMalformedResponse, Message: "response has no analysis_id"}
			}
			f.record(ctx, out.attempt, out.err)
			if out.err != nil {
				apply(Event{Kind: EventAttemptFailed, Err: out.err})
			} else {
				apply(Event{Kind: EventAttemptSucceeded, AnalysisID: out.analysisID})
			}
			if f.state.Phase == domain.PhaseExhausted {
				f.logger.Error("submission exhausted", "attempts", f.state.Attempt, "error", f.state.LastError)
				return domain.SubmissionResult{}, &domain.ExhaustedError{Attempts: f.state.Attempt, Last: out.err}
			}
		case <-timerC:
			timer, timerC = nil, nil
			if ctx.Err() != nil {
				continue
			}
			if f.state.Phase == domain.PhaseSucceeded {
				f.logger.Info("submission complete", "analysis", f.state.AnalysisID, "attempts", f.state.Attempt)
				return domain.SubmissionResult{
					SubmissionID: f.id,
					QuizID:       f.quizID,
					AnalysisID:   f.state.AnalysisID,
					Attempts:     f.state.Attempt,
				}, nil
			}
			apply(Event{Kind: EventBackoffElapsed})
		}
	}
}

func (f *submissionFlow) send(ctx context.Context, attempt int, outcomes chan<- attemptOutcome) {
	f.logger.Info("submitting answers", "attempt", attempt, "answers", len(f.answers))
	f.recordStatus(ctx, attempt, domain.AttemptPending, "")
	scorer := f.coordinator.scorer
	go func() {
		id, err := scorer.AnalyzeQuiz(ctx, f.quizID, f.answers)
		outcomes <- attemptOutcome{attempt: attempt, analysisID: id, err: err}
	}()
}

func (f *submissionFlow) record(ctx context.Context, attempt int, err error) {
	if err != nil {
		f.logger.Warn("submission attempt failed", "attempt", attempt, "error", err)
		f.recordStatus(ctx, attempt, domain.AttemptFailed, err.Error())
		return
	}
	f.recordStatus(ctx, attempt, domain.AttemptSuccess, "")
}

func (f *submissionFlow) recordStatus(ctx context.Context, attempt int, status domain.AttemptStatus, msg string) {
	recorder := f.coordinator.recorder
	if recorder == nil {
		return
	}
	err := recorder.RecordAttempt(ctx, domain.SubmissionAttempt{
		SubmissionID: f.id,
		QuizID:       f.quizID,
		Attempt:      attempt,
		Status:       status,
		Error:        msg,
		At:           f.coordinator.clock.Now(),
	})
	if err != nil {
		f.logger.Debug("record attempt", "attempt", attempt, "error", err)
	}
}
