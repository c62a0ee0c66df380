package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quizflow-client/internal/domain"
)

type countingLoader struct {
	calls int32
	delay time.Duration
	err   error
}

func (l *countingLoader) LoadAnalysis(_ context.Context, analysisID string) (domain.Analysis, error) {
	atomic.AddInt32(&l.calls, 1)
	time.Sleep(l.delay)
	if l.err != nil {
		return domain.Analysis{}, l.err
	}
	return domain.Analysis{ID: analysisID, QuizID: "quiz-1", TotalQuestions: 4, CorrectCount: 3, IncorrectCount: 1}, nil
}

func TestAnalysisRepositoryCachesInRedis(t *testing.T) {
	mr, client := newMiniredis(t)
	loader := &countingLoader{}
	repo := NewAnalysisRepository(client, loader, time.Minute)

	a, err := repo.GetAnalysis(context.Background(), "an-1")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if a.ScorePercent() != 75 {
		t.Fatalf("unexpected score %d", a.ScorePercent())
	}
	if !mr.Exists("analysis:an-1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("analysis:an-1"); ttl < time.Minute {
		t.Fatalf("expected ttl >= 1m, got %v", ttl)
	}

	// a second repository sharing Redis reads the cached copy
	other := NewAnalysisRepository(client, loader, time.Minute)
	cached, err := other.GetAnalysis(context.Background(), "an-1")
	if err != nil {
		t.Fatalf("get cached analysis: %v", err)
	}
	if cached.QuizID != "quiz-1" || cached.CorrectCount != 3 {
		t.Fatalf("unexpected cached analysis %+v", cached)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("expected 1 load, got %d", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := repo.GetAnalysis(context.Background(), "an-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", got)
	}
}

func TestAnalysisRepositoryCollapsesConcurrentMisses(t *testing.T) {
	_, client := newMiniredis(t)
	loader := &countingLoader{delay: 50 * time.Millisecond}
	repo := NewAnalysisRepository(client, loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetAnalysis(context.Background(), "an-9"); err != nil {
				t.Errorf("get analysis: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("expected 1 load, got %d", got)
	}
}

func TestAnalysisRepositoryDoesNotCacheErrors(t *testing.T) {
	mr, client := newMiniredis(t)
	loader := &countingLoader{err: domain.ErrAnalysisNotFound}
	repo := NewAnalysisRepository(client, loader, time.Minute)

	if _, err := repo.GetAnalysis(context.Background(), "missing"); !errors.Is(err, domain.ErrAnalysisNotFound) {
		t.Fatalf("expected ErrAnalysisNotFound, got %v", err)
	}
	if mr.Exists("analysis:missing") {
		t.Fatalf("error must not be cached")
	}
}

func TestAnalysisRepositorySurvivesRedisOutage(t *testing.T) {
	mr, client := newMiniredis(t)
	loader := &countingLoader{}
	repo := NewAnalysisRepository(client, loader, time.Minute)
	mr.Close()

	a, err := repo.GetAnalysis(context.Background(), "an-2")
	if err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
	if a.ID != "an-2" {
		t.Fatalf("unexpected analysis %+v", a)
	}
}
