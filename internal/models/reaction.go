package models

import "time"

// Reaction is an ephemeral emoji event. Never persisted.
type Reaction struct {
	ID        string    `json:"id"`
	Emoji     string    `json:"emoji"`
	AuthorID  string    `json:"author_id"`
	EmittedAt time.Time `json:"emitted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
