package redis

import (
	"context"
	"fmt"
	"time"

	"quizflow-client/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only while it still carries our token, so a
// lease that expired and was taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// FlowRegistry leases flow keys in Redis so that several client processes
// sharing one Redis never run two submissions for the same quiz.
// Layout: SET flow:{key} <token> NX PX ttl
//
// The ttl bounds how long a crashed process can hold a key.
type FlowRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// DefaultLeaseTTL applies when NewFlowRegistry gets a non-positive ttl,
// which SetNX would otherwise store without expiry.
const DefaultLeaseTTL = 10 * time.Minute

func NewFlowRegistry(client *redis.Client, ttl time.Duration) *FlowRegistry {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &FlowRegistry{client: client, ttl: ttl}
}

func (r *FlowRegistry) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key(key), token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire flow %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowActive, key)
	}
	return func() {
		// release must outlive the flow's own context, which is usually done by now
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{r.key(key)}, token).Err()
	}, nil
}

func (r *FlowRegistry) key(key string) string {
	return "flow:" + key
}
