package models

import "time"

// SessionStatus represents the classroom lifecycle.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusLive      SessionStatus = "live"
	SessionStatusEnded     SessionStatus = "ended"
)

// Session is one live virtual classroom.
type Session struct {
	ID                 string        `json:"id"`
	CourseCode         string        `json:"course_code"`
	Title              string        `json:"title"`
	Status             SessionStatus `json:"status"`
	HostID             string        `json:"host_id"`
	Recording          bool          `json:"recording"`
	RecordingStartedAt *time.Time    `json:"recording_started_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	EndedAt            *time.Time    `json:"ended_at,omitempty"`
}

// SessionMeta is the course metadata a moderator supplies when scheduling a class.
type SessionMeta struct {
	CourseCode string `json:"course_code" binding:"required"`
	Title      string `json:"title" binding:"required"`
	HostID     string `json:"-"`
}

// SessionRecord is a persisted session row (class_sessions table).
type SessionRecord struct {
	Session
	PeakObservers int       `json:"peak_observers"`
	TranscriptKey string    `json:"transcript_key,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}
