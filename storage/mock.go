package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"greenwave/models"
)

// MockRepository keeps episodes in memory when no database is configured
type MockRepository struct {
	mu       sync.RWMutex
	episodes map[string]models.Episode
}

// NewMockRepository creates a new in-memory repository
func NewMockRepository() *MockRepository {
	return &MockRepository{episodes: make(map[string]models.Episode)}
}

// Create stores an episode
func (r *MockRepository) Create(ctx context.Context, ep models.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.episodes[ep.ID] = ep
	return nil
}

// End closes an open episode
func (r *MockRepository) End(ctx context.Context, id string, endedAt time.Time, reason models.RouteEndReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ep, ok := r.episodes[id]
	if !ok || ep.EndedAt != nil {
		return fmt.Errorf("mock: episode %s: %w", id, ErrEpisodeNotFound)
	}
	ep.EndedAt = &endedAt
	ep.EndReason = reason
	r.episodes[id] = ep
	return nil
}

// List returns episodes newest first
func (r *MockRepository) List(ctx context.Context, limit int) ([]models.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Episode, 0, len(r.episodes))
	for _, ep := range r.episodes {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Health always succeeds in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
