package models

// Snapshot is the full state of a session for initial render or reconnect.
type Snapshot struct {
	Session         Session       `json:"session"`
	Participants    []Participant `json:"participants"`
	RecentChat      []ChatMessage `json:"recent_chat"`
	ActiveReactions []Reaction    `json:"active_reactions"`
	LastEventSeq    uint64        `json:"last_event_sequence"`
}
