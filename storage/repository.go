package storage

import (
	"context"
	"errors"
	"time"

	"greenwave/models"
)

// ErrEpisodeNotFound is returned when ending an episode that was never recorded
var ErrEpisodeNotFound = errors.New("episode not found")

// EpisodeRepository persists route episode history
type EpisodeRepository interface {
	// Create records a newly started episode
	Create(ctx context.Context, episode models.Episode) error

	// End stamps the end time and reason of an episode
	End(ctx context.Context, id string, endedAt time.Time, reason models.RouteEndReason) error

	// List returns the most recent episodes, newest first
	List(ctx context.Context, limit int) ([]models.Episode, error)

	// Health checks connectivity
	Health(ctx context.Context) error
}
