// Package moderation holds the role rule table for session commands.
package moderation

import (
	"errors"
	"fmt"

	"github.com/aura-webinar/coordinator/internal/models"
)

var (
	ErrUnauthorized      = errors.New("not authorized")
	ErrTargetUnavailable = errors.New("target unavailable")
	ErrUnknownCommand    = errors.New("unknown command")
)

type rule struct {
	moderatorOnly bool
	// targeted commands must name a connected participant when a target is given.
	targeted bool
}

var rules = map[models.CommandKind]rule{
	models.CommandJoin:              {},
	models.CommandLeave:             {},
	models.CommandSelfMuteToggle:    {},
	models.CommandSelfCameraToggle:  {},
	models.CommandRaiseHand:         {},
	models.CommandLowerHand:         {targeted: true},
	models.CommandSendChatMessage:   {},
	models.CommandSendReaction:      {},
	models.CommandForceMuteAll:      {moderatorOnly: true},
	models.CommandForceCameraOffAll: {moderatorOnly: true},
	models.CommandSpotlight:         {moderatorOnly: true, targeted: true},
	models.CommandEndSession:        {moderatorOnly: true},
	models.CommandToggleRecording:   {moderatorOnly: true},
	models.CommandStartSession:      {moderatorOnly: true},
}

// Target describes the participant a command points at, as seen by the caller's registry.
type Target struct {
	ID        string
	Known     bool
	Connected bool
	// Self is true when the target is the actor.
	Self bool
}

// Authorize decides whether role may issue cmd against target (nil when the command has no target).
// Role is checked before the target so that "not allowed" wins over "target gone".
func Authorize(role models.Role, cmd models.CommandKind, target *Target) error {
	r, ok := rules[cmd]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	moderatorOnly := r.moderatorOnly
	// Lowering someone else's hand is a moderator action.
	if cmd == models.CommandLowerHand && target != nil && !target.Self {
		moderatorOnly = true
	}
	if moderatorOnly && role != models.RoleModerator {
		return fmt.Errorf("%w: %s requires moderator", ErrUnauthorized, cmd)
	}
	if r.targeted && target != nil && (!target.Known || !target.Connected) {
		return fmt.Errorf("%w: %s", ErrTargetUnavailable, target.ID)
	}
	return nil
}

// AffectedByGlobal reports whether a participant is touched by force_mute_all or
// force_camera_off_all. Moderators control their own mic and camera.
func AffectedByGlobal(p models.Participant) bool {
	return p.Role == models.RoleAttendee && p.Connected
}
