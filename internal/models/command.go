package models

// CommandKind identifies a command submitted to a session.
type CommandKind string

const (
	CommandJoin              CommandKind = "join"
	CommandLeave             CommandKind = "leave"
	CommandSelfMuteToggle    CommandKind = "self_mute_toggle"
	CommandSelfCameraToggle  CommandKind = "self_camera_toggle"
	CommandRaiseHand         CommandKind = "raise_hand"
	CommandLowerHand         CommandKind = "lower_hand"
	CommandSendReaction      CommandKind = "send_reaction"
	CommandSendChatMessage   CommandKind = "send_chat_message"
	CommandForceMuteAll      CommandKind = "force_mute_all"
	CommandForceCameraOffAll CommandKind = "force_camera_off_all"
	CommandSpotlight         CommandKind = "spotlight"
	CommandToggleRecording   CommandKind = "toggle_recording"
	CommandStartSession      CommandKind = "start_session"
	CommandEndSession        CommandKind = "end_session"
)

// Command is the body of a submitted command. Only the fields relevant to Kind are read.
type Command struct {
	Kind     CommandKind `json:"kind" binding:"required"`
	Text     string      `json:"text,omitempty"`
	Emoji    string      `json:"emoji,omitempty"`
	TargetID *string     `json:"target_id,omitempty"`
}
