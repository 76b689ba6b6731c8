// Package recordings persists recording metadata produced when a session recording stops.
package recordings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/coordinator/internal/models"
)

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FromMetadata builds a pending recording row for finished recording metadata.
func FromMetadata(meta models.RecordingMetadata) *models.Recording {
	d := int64(meta.EndedAt.Sub(meta.StartedAt).Seconds())
	if d < 0 {
		d = 0
	}
	return &models.Recording{
		ID:              uuid.New(),
		SessionID:       meta.SessionID,
		StartedAt:       meta.StartedAt,
		EndedAt:         meta.EndedAt,
		DurationSeconds: d,
		Status:          models.RecordingStatusPending,
	}
}

// Create inserts a recording row.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO session_recordings (id, session_id, started_at, ended_at, duration_seconds, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, rec.ID, rec.SessionID, rec.StartedAt, rec.EndedAt, rec.DurationSeconds, rec.Status).
		Scan(&rec.CreatedAt)
}

// GetByID returns a recording by ID, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `SELECT id, session_id, started_at, ended_at, duration_seconds, status, created_at
		FROM session_recordings WHERE id = $1`
	var rec models.Recording
	err := r.pool.QueryRow(ctx, q, id).Scan(&rec.ID, &rec.SessionID, &rec.StartedAt, &rec.EndedAt, &rec.DurationSeconds, &rec.Status, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListBySession returns all recordings for a session, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]models.Recording, error) {
	const q = `SELECT id, session_id, started_at, ended_at, duration_seconds, status, created_at
		FROM session_recordings WHERE session_id = $1 ORDER BY started_at DESC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StartedAt, &rec.EndedAt, &rec.DurationSeconds, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// UpdateStatus sets recording status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE session_recordings SET status = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, status, id)
	return err
}
