package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"quizflow-client/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AnalysisLoader fetches an analysis from the backend on cache miss.
type AnalysisLoader interface {
	LoadAnalysis(ctx context.Context, analysisID string) (domain.Analysis, error)
}

// AnalysisRepository caches analyses in Redis so every results view of this
// client, across processes, resolves an id without refetching it.
// Layout: SET analysis:{id} <json> EX ttl
type AnalysisRepository struct {
	client *redis.Client
	loader AnalysisLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewAnalysisRepository(client *redis.Client, loader AnalysisLoader, ttl time.Duration) *AnalysisRepository {
	return &AnalysisRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AnalysisRepository) GetAnalysis(ctx context.Context, analysisID string) (domain.Analysis, error) {
	if a, ok := r.cached(ctx, analysisID); ok {
		return a, nil
	}

	result, err, _ := r.sf.Do(analysisID, func() (interface{}, error) {
		// another caller may have filled the cache meanwhile
		if a, ok := r.cached(ctx, analysisID); ok {
			return a, nil
		}

		a, err := r.loader.LoadAnalysis(ctx, analysisID)
		if err != nil {
			return domain.Analysis{}, err
		}

		if data, err := json.Marshal(a); err == nil {
			_ = r.client.Set(ctx, r.key(analysisID), data, r.ttlWithJitter()).Err()
		}
		return a, nil
	})
	if err != nil {
		return domain.Analysis{}, err
	}
	return result.(domain.Analysis), nil
}

func (r *AnalysisRepository) cached(ctx context.Context, analysisID string) (domain.Analysis, bool) {
	// a Redis outage degrades to a miss, never to a failed results view
	data, err := r.client.Get(ctx, r.key(analysisID)).Bytes()
	if err != nil {
		return domain.Analysis{}, false
	}
	var a domain.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Analysis{}, false
	}
	return a, true
}

func (r *AnalysisRepository) key(analysisID string) string {
	return "analysis:" + analysisID
}

func (r *AnalysisRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
