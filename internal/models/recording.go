package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordingMetadata is handed to the recording library when a recording stops.
type RecordingMetadata struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Recording status values.
const (
	RecordingStatusPending   = "pending"
	RecordingStatusCompleted = "completed"
	RecordingStatusFailed    = "failed"
)

// Recording is a persisted recording row.
type Recording struct {
	ID              uuid.UUID `json:"id"`
	SessionID       string    `json:"session_id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int64     `json:"duration_seconds"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}
