// Package sessions persists the class_sessions table.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/coordinator/internal/models"
)

// Repository handles class_sessions persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts the session or refreshes its status and timestamps.
func (r *Repository) Upsert(ctx context.Context, s models.Session) error {
	const q = `INSERT INTO class_sessions (id, course_code, title, host_id, status, created_at, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, s.ID, s.CourseCode, s.Title, s.HostID, string(s.Status), s.CreatedAt, s.StartedAt, s.EndedAt)
	return err
}

// UpdateStatus sets status and the matching timestamp.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus, at time.Time) error {
	var err error
	switch status {
	case models.SessionStatusLive:
		_, err = r.pool.Exec(ctx, `UPDATE class_sessions SET status = $1, started_at = $2, updated_at = NOW() WHERE id = $3`, string(status), at, id)
	case models.SessionStatusEnded:
		_, err = r.pool.Exec(ctx, `UPDATE class_sessions SET status = $1, ended_at = $2, updated_at = NOW() WHERE id = $3`, string(status), at, id)
	default:
		_, err = r.pool.Exec(ctx, `UPDATE class_sessions SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	}
	return err
}

// UpdatePeakObservers raises peak_observers to n when n is higher.
func (r *Repository) UpdatePeakObservers(ctx context.Context, id string, n int) error {
	const q = `UPDATE class_sessions SET peak_observers = GREATEST(peak_observers, $1), updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, n, id)
	return err
}

// SetTranscriptKey records where the exported transcript lives.
func (r *Repository) SetTranscriptKey(ctx context.Context, id, key string) error {
	const q = `UPDATE class_sessions SET transcript_key = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, key, id)
	return err
}

// GetByID returns a session row, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	const q = `SELECT id, course_code, title, host_id, status, peak_observers, COALESCE(transcript_key, ''),
			created_at, started_at, ended_at, updated_at
		FROM class_sessions WHERE id = $1`
	var (
		rec    models.SessionRecord
		status string
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(&rec.ID, &rec.CourseCode, &rec.Title, &rec.HostID, &status, &rec.PeakObservers,
		&rec.TranscriptKey, &rec.CreatedAt, &rec.StartedAt, &rec.EndedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Status = models.SessionStatus(status)
	return &rec, nil
}
