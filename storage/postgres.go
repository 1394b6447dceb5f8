package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"greenwave/models"
)

// PostgresRepository implements EpisodeRepository on a route_episodes table:
//
//	id uuid primary key, ambulance_id text, hospital_id text, hospital_name text,
//	distance_km double precision, eta_minutes int, trigger text,
//	started_at timestamptz, ended_at timestamptz null, end_reason text null
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists a started episode
func (r *PostgresRepository) Create(ctx context.Context, ep models.Episode) error {
	query := `
		INSERT INTO route_episodes (
			id, ambulance_id, hospital_id, hospital_name,
			distance_km, eta_minutes, trigger, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		ep.ID, ep.AmbulanceID, ep.HospitalID, ep.HospitalName,
		ep.DistanceKm, ep.ETAMinutes, string(ep.Trigger), ep.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save episode: %w", err)
	}

	return nil
}

// End closes an open episode
func (r *PostgresRepository) End(ctx context.Context, id string, endedAt time.Time, reason models.RouteEndReason) error {
	query := `
		UPDATE route_episodes
		SET ended_at = $2, end_reason = $3
		WHERE id = $1 AND ended_at IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, id, endedAt, string(reason))
	if err != nil {
		return fmt.Errorf("postgres: failed to end episode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: episode %s: %w", id, ErrEpisodeNotFound)
	}

	return nil
}

// List retrieves recent episodes
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]models.Episode, error) {
	query := `
		SELECT id, ambulance_id, hospital_id, hospital_name,
			   distance_km, eta_minutes, trigger, started_at, ended_at, COALESCE(end_reason, '')
		FROM route_episodes
		ORDER BY started_at DESC
		LIMIT $1
	`

	// LIMIT NULL means no limit
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := r.pool.Query(ctx, query, lim)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query episodes: %w", err)
	}
	defer rows.Close()

	var results []models.Episode
	for rows.Next() {
		var ep models.Episode
		var trigger, reason string
		err := rows.Scan(
			&ep.ID, &ep.AmbulanceID, &ep.HospitalID, &ep.HospitalName,
			&ep.DistanceKm, &ep.ETAMinutes, &trigger, &ep.StartedAt, &ep.EndedAt, &reason,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan episode row: %w", err)
		}
		ep.Trigger = models.RouteTrigger(trigger)
		ep.EndReason = models.RouteEndReason(reason)
		results = append(results, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read episodes: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
