package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quizflow-client/internal/domain"

	"golang.org/x/sync/singleflight"
)

// AnalysisLoader fetches an analysis from its source of truth (the backend).
type AnalysisLoader interface {
	LoadAnalysis(ctx context.Context, analysisID string) (domain.Analysis, error)
}

// AnalysisRepository caches analyses with TTL so revisiting a results page
// does not refetch it.
type AnalysisRepository struct {
	loader AnalysisLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedAnalysis
}

type cachedAnalysis struct {
	analysis  domain.Analysis
	expiresAt time.Time
}

func NewAnalysisRepository(loader AnalysisLoader, ttl time.Duration) *AnalysisRepository {
	return &AnalysisRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedAnalysis),
	}
}

func (r *AnalysisRepository) GetAnalysis(ctx context.Context, analysisID string) (domain.Analysis, error) {
	if a, ok := r.lookup(analysisID); ok {
		return a, nil
	}

	result, err, _ := r.sf.Do(analysisID, func() (interface{}, error) {
		if a, ok := r.lookup(analysisID); ok {
			return a, nil
		}

		a, err := r.loader.LoadAnalysis(ctx, analysisID)
		if err != nil {
			return domain.Analysis{}, err
		}

		r.mu.Lock()
		r.cache[analysisID] = cachedAnalysis{
			analysis:  a,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return domain.Analysis{}, err
	}
	return result.(domain.Analysis), nil
}

func (r *AnalysisRepository) lookup(analysisID string) (domain.Analysis, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[analysisID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Analysis{}, false
	}
	return entry.analysis, true
}

func (r *AnalysisRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
