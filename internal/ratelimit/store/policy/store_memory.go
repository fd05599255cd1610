// Package policy persists per-feature rate limit policies.
package policy

import (
	"context"
	"sync"
	"time"

	"cortex/internal/ratelimit/models"
	dErrors "cortex/pkg/domain-errors"
)

// InMemoryStore keeps policies in a map. Used in tests and when Postgres is
// not configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[string]models.Policy
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[string]models.Policy),
	}
}

// Get returns the policy for a feature key, or CodeNotFound.
func (s *InMemoryStore) Get(ctx context.Context, featureKey string) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[featureKey]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "no policy for feature: "+featureKey)
	}
	return &p, nil
}

// Upsert creates or replaces the policy for its feature key.
func (s *InMemoryStore) Upsert(ctx context.Context, p *models.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *p
	stored.UpdatedAt = time.Now()
	s.policies[p.FeatureKey] = stored
	return nil
}
