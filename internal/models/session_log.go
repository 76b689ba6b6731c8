package models

import "time"

// AttendanceRow is one join/leave span of a participant, from attendance_log.
type AttendanceRow struct {
	ParticipantID string     `json:"participant_id"`
	DisplayName   string     `json:"display_name"`
	Role          Role       `json:"role"`
	JoinedAt      time.Time  `json:"joined_at"`
	LeftAt        *time.Time `json:"left_at,omitempty"`
	WatchSeconds  int64      `json:"watch_seconds"`
}
