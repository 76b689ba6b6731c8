package models

import "time"

// EventKind identifies a state delta pushed to observers.
type EventKind string

const (
	EventParticipantJoined  EventKind = "participant_joined"
	EventParticipantLeft    EventKind = "participant_left"
	EventParticipantUpdated EventKind = "participant_updated"
	EventChatAppended       EventKind = "chat_appended"
	EventReactionEmitted    EventKind = "reaction_emitted"
	EventRecordingStarted   EventKind = "recording_started"
	EventRecordingFinished  EventKind = "recording_finished"
	EventSessionStarted     EventKind = "session_started"
	EventSessionEnded       EventKind = "session_ended"
)

// Event is one state delta. Sequence is session-scoped and gap-free across published batches.
type Event struct {
	Kind          EventKind          `json:"kind"`
	SessionID     string             `json:"session_id"`
	Sequence      uint64             `json:"sequence"`
	At            time.Time          `json:"at"`
	Participant   *Participant       `json:"participant,omitempty"`
	ChangedFields []string           `json:"changed_fields,omitempty"`
	Message       *ChatMessage       `json:"message,omitempty"`
	Reaction      *Reaction          `json:"reaction,omitempty"`
	Recording     *RecordingMetadata `json:"recording,omitempty"`
	Session       *Session           `json:"session,omitempty"`
}

// EventBatch is the ordered list of events produced by one command.
type EventBatch []Event
