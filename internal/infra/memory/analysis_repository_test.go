package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"quizflow-client/internal/domain"
)

func TestAnalysisRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		AnalysisLoader: newStaticLoader(map[string]domain.Analysis{
			"an-1": sampleAnalysis(),
		}),
	}
	repo := NewAnalysisRepository(loader, time.Minute)

	if _, err := repo.GetAnalysis(context.Background(), "an-1"); err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	a, err := repo.GetAnalysis(context.Background(), "an-1")
	if err != nil {
		t.Fatalf("get analysis 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
	if a.CorrectCount != 3 {
		t.Fatalf("unexpected analysis %+v", a)
	}
}

func TestAnalysisRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		AnalysisLoader: newStaticLoader(map[string]domain.Analysis{"an-1": sampleAnalysis()}),
	}
	repo := NewAnalysisRepository(loader, time.Minute)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetAnalysis(context.Background(), "an-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetAnalysis(context.Background(), "an-1")
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestAnalysisRepositoryMissing(t *testing.T) {
	repo := NewAnalysisRepository(newStaticLoader(nil), time.Minute)
	if _, err := repo.GetAnalysis(context.Background(), "nope"); err != domain.ErrAnalysisNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	AnalysisLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadAnalysis(ctx context.Context, id string) (domain.Analysis, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.AnalysisLoader.LoadAnalysis(ctx, id)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleAnalysis() domain.Analysis {
	return domain.Analysis{
		ID:             "an-1",
		QuizID:         "quiz-1",
		TotalQuestions: 4,
		CorrectCount:   3,
		IncorrectCount: 1,
		IncorrectQuestions: []domain.IncorrectQuestion{
			{Question: "What is 2 + 2?", UserAnswer: "5", CorrectAnswer: "4"},
		},
		KnowledgeAnalysis: "Revisit basic addition.",
	}
}

// staticLoader serves analyses from a map.
type staticLoader struct {
	analyses map[string]domain.Analysis
}

func newStaticLoader(analyses map[string]domain.Analysis) *staticLoader {
	return &staticLoader{analyses: analyses}
}

func (l *staticLoader) LoadAnalysis(_ context.Context, analysisID string) (domain.Analysis, error) {
	if a, ok := l.analyses[analysisID]; ok {
		return a, nil
	}
	return domain.Analysis{}, domain.ErrAnalysisNotFound
}
