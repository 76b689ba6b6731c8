// Package transcripts archives chat messages and serves the exported transcript.
package transcripts

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/coordinator/internal/models"
)

// Repository handles chat_transcripts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a transcripts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append stores one chat message. Re-delivery of the same sequence is ignored.
func (r *Repository) Append(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	const q = `INSERT INTO chat_transcripts (session_id, sequence, author_id, author_role, body, inserted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, sequence) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, sessionID, int64(msg.Sequence), msg.AuthorID, string(msg.AuthorRole), msg.Text, msg.InsertedAt)
	return err
}

// ListBySession returns a session's chat in sequence order.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	const q = `SELECT sequence, author_id, author_role, body, inserted_at
		FROM chat_transcripts WHERE session_id = $1 ORDER BY sequence`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ChatMessage
	for rows.Next() {
		var (
			msg  models.ChatMessage
			seq  int64
			role string
		)
		if err := rows.Scan(&seq, &msg.AuthorID, &role, &msg.Text, &msg.InsertedAt); err != nil {
			return nil, err
		}
		msg.Sequence = uint64(seq)
		msg.AuthorRole = models.Role(role)
		list = append(list, msg)
	}
	return list, rows.Err()
}
