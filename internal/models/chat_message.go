package models

import "time"

// ChatMessage is one accepted chat line. Sequence is assigned by the chat log.
type ChatMessage struct {
	Sequence   uint64    `json:"sequence"`
	AuthorID   string    `json:"author_id"`
	AuthorRole Role      `json:"author_role"`
	Text       string    `json:"text"`
	InsertedAt time.Time `json:"inserted_at"`
}
