package models

import "time"

// Role represents a participant's role inside a session.
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleModerator Role = "moderator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAttendee || r == RoleModerator
}

// Identity is the caller-supplied identity (from the JWT claims).
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Participant flag names, also used as changed_fields in participant_updated events.
const (
	FieldConnected   = "connected"
	FieldMuted       = "muted"
	FieldCameraOn    = "camera_on"
	FieldHandRaised  = "hand_raised"
	FieldSpotlighted = "spotlighted"
)

// Participant is a member of a session. Records are never removed; Connected goes false on leave.
type Participant struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"display_name"`
	Role         Role       `json:"role"`
	Connected    bool       `json:"connected"`
	Muted        bool       `json:"muted"`
	CameraOn     bool       `json:"camera_on"`
	HandRaised   bool       `json:"hand_raised"`
	HandRaisedAt *time.Time `json:"hand_raised_at,omitempty"`
	Spotlighted  bool       `json:"spotlighted"`
	JoinedAt     time.Time  `json:"joined_at"`
}
