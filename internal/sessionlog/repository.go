// Package sessionlog persists participant join/leave spans.
package sessionlog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/coordinator/internal/models"
)

// Repository handles attendance_log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin inserts a row when a participant connects to a session.
func (r *Repository) LogJoin(ctx context.Context, sessionID string, p models.Participant, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attendance_log (session_id, participant_id, display_name, role, joined_at) VALUES ($1, $2, $3, $4, $5)`,
		sessionID, p.ID, p.DisplayName, string(p.Role), at)
	return err
}

// LogLeave closes the most recent open span for this participant in this session.
func (r *Repository) LogLeave(ctx context.Context, sessionID, participantID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attendance_log a SET left_at = $3, watch_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($3 - a.joined_at))::BIGINT)
		 FROM (SELECT id FROM attendance_log WHERE session_id = $1 AND participant_id = $2 AND left_at IS NULL ORDER BY joined_at DESC LIMIT 1) AS sub
		 WHERE a.id = sub.id`,
		sessionID, participantID, at)
	return err
}

// CloseOpen closes every open span of a session, used when the session ends.
func (r *Repository) CloseOpen(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attendance_log SET left_at = $2, watch_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($2 - joined_at))::BIGINT)
		 WHERE session_id = $1 AND left_at IS NULL`,
		sessionID, at)
	return err
}

// ListBySession returns attendance spans for a session, most recent first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT participant_id, display_name, role, joined_at, left_at, watch_seconds
		 FROM attendance_log WHERE session_id = $1 ORDER BY joined_at DESC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AttendanceRow
	for rows.Next() {
		var (
			row  models.AttendanceRow
			role string
		)
		if err := rows.Scan(&row.ParticipantID, &row.DisplayName, &role, &row.JoinedAt, &row.LeftAt, &row.WatchSeconds); err != nil {
			return nil, err
		}
		row.Role = models.Role(role)
		list = append(list, row)
	}
	return list, rows.Err()
}
