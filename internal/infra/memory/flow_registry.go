package memory

import (
	"context"
	"fmt"
	"sync"

	"quizflow-client/internal/domain"
)

// FlowRegistry is an in-process implementation of app.FlowRegistry.
type FlowRegistry struct {
	mu     sync.Mutex
	active map[string]uint64
	next   uint64
}

func NewFlowRegistry() *FlowRegistry {
	return &FlowRegistry{active: make(map[string]uint64)}
}

// Acquire leases key until the returned release is called. Releasing twice,
// or after another flow took the key over, is a no-op.
func (r *FlowRegistry) Acquire(_ context.Context, key string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[key]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowActive, key)
	}
	r.next++
	token := r.next
	r.active[key] = token
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.active[key] == token {
			delete(r.active, key)
		}
	}, nil
}

func (r *FlowRegistry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}
