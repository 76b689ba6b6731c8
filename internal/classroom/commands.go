package classroom

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/internal/moderation"
	"github.com/aura-webinar/coordinator/internal/participants"
)

// dispatch validates and applies one command. Every check that can fail runs before the first
// mutation, so a rejected command leaves the session untouched.
func (s *Session) dispatch(actor models.Identity, cmd models.Command, now time.Time) (models.EventBatch, error) {
	if cmd.Kind == models.CommandJoin {
		return s.join(actor, now)
	}
	p, err := s.registry.Require(actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("actor %s: %w", actor.UserID, err)
	}

	switch cmd.Kind {
	case models.CommandLeave:
		return s.leave(p, now)
	case models.CommandSelfMuteToggle:
		return s.setOwnFlag(p, cmd.Kind, models.FieldMuted, !p.Muted, now)
	case models.CommandSelfCameraToggle:
		return s.setOwnFlag(p, cmd.Kind, models.FieldCameraOn, !p.CameraOn, now)
	case models.CommandRaiseHand:
		return s.setOwnFlag(p, cmd.Kind, models.FieldHandRaised, true, now)
	case models.CommandLowerHand:
		return s.lowerHand(p, cmd.TargetID, now)
	case models.CommandSendChatMessage:
		return s.sendChat(p, cmd.Text, now)
	case models.CommandSendReaction:
		return s.sendReaction(p, cmd.Emoji, now)
	case models.CommandForceMuteAll:
		return s.forceAll(p, cmd.Kind, models.FieldMuted, func(x models.Participant) bool { return !x.Muted }, true, now)
	case models.CommandForceCameraOffAll:
		return s.forceAll(p, cmd.Kind, models.FieldCameraOn, func(x models.Participant) bool { return x.CameraOn }, false, now)
	case models.CommandSpotlight:
		return s.spotlight(p, cmd.TargetID, now)
	case models.CommandToggleRecording:
		return s.toggleRecording(p, now)
	case models.CommandStartSession:
		return s.start(p, now)
	case models.CommandEndSession:
		if err := moderation.Authorize(p.Role, cmd.Kind, nil); err != nil {
			return nil, err
		}
		return s.end(now), nil
	default:
		return nil, fmt.Errorf("%w: %s", moderation.ErrUnknownCommand, cmd.Kind)
	}
}

func (s *Session) join(actor models.Identity, now time.Time) (models.EventBatch, error) {
	if actor.UserID == "" || !actor.Role.Valid() {
		return nil, fmt.Errorf("%w: identity needs a user id and a known role", moderation.ErrUnauthorized)
	}
	if err := moderation.Authorize(actor.Role, models.CommandJoin, nil); err != nil {
		return nil, err
	}
	name := actor.DisplayName
	if name == "" {
		name = actor.UserID
	}
	p, joined := s.registry.Join(actor.UserID, name, actor.Role, now)
	if !joined {
		return models.EventBatch{}, nil
	}
	return models.EventBatch{s.participantEvent(models.EventParticipantJoined, p, nil, now)}, nil
}

// leave disconnects p. A host leaving a live session ends it in the same batch.
func (s *Session) leave(p models.Participant, now time.Time) (models.EventBatch, error) {
	if err := moderation.Authorize(p.Role, models.CommandLeave, nil); err != nil {
		return nil, err
	}
	left, changed, err := s.registry.Leave(p.ID)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return models.EventBatch{}, nil
	}
	events := models.EventBatch{s.participantEvent(models.EventParticipantLeft, left, changed, now)}
	if p.ID == s.state.HostID && s.state.Status == models.SessionStatusLive {
		events = append(events, s.end(now)...)
	}
	return events, nil
}

func (s *Session) setOwnFlag(p models.Participant, kind models.CommandKind, field string, value bool, now time.Time) (models.EventBatch, error) {
	if err := moderation.Authorize(p.Role, kind, nil); err != nil {
		return nil, err
	}
	return s.setFlag(p.ID, field, value, now)
}

func (s *Session) setFlag(id, field string, value bool, now time.Time) (models.EventBatch, error) {
	updated, changed, err := s.registry.SetFlag(id, field, value, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return models.EventBatch{}, nil
	}
	return models.EventBatch{s.participantEvent(models.EventParticipantUpdated, updated, []string{field}, now)}, nil
}

// lowerHand lowers the actor's own hand, or another participant's hand when a moderator names a target.
func (s *Session) lowerHand(p models.Participant, targetID *string, now time.Time) (models.EventBatch, error) {
	id := p.ID
	if targetID != nil && *targetID != "" {
		id = *targetID
	}
	if err := moderation.Authorize(p.Role, models.CommandLowerHand, s.target(p, id)); err != nil {
		return nil, err
	}
	return s.setFlag(id, models.FieldHandRaised, false, now)
}

func (s *Session) sendChat(p models.Participant, text string, now time.Time) (models.EventBatch, error) {
	if err := moderation.Authorize(p.Role, models.CommandSendChatMessage, nil); err != nil {
		return nil, err
	}
	msg, err := s.chat.Append(p.ID, p.Role, text, now)
	if err != nil {
		return nil, err
	}
	evt := s.newEvent(models.EventChatAppended, now)
	evt.Message = &msg
	return models.EventBatch{evt}, nil
}

func (s *Session) sendReaction(p models.Participant, emoji string, now time.Time) (models.EventBatch, error) {
	if err := moderation.Authorize(p.Role, models.CommandSendReaction, nil); err != nil {
		return nil, err
	}
	r, err := s.reactions.Emit(p.ID, emoji, now)
	if err != nil {
		return nil, err
	}
	evt := s.newEvent(models.EventReactionEmitted, now)
	evt.Reaction = &r
	return models.EventBatch{evt}, nil
}

// forceAll sets field to value on every connected attendee for which needs returns true.
// One participant_updated event per affected attendee. Moderators are never touched.
func (s *Session) forceAll(p models.Participant, kind models.CommandKind, field string, needs func(models.Participant) bool, value bool, now time.Time) (models.EventBatch, error) {
	if err := moderation.Authorize(p.Role, kind, nil); err != nil {
		return nil, err
	}
	affected := lo.Filter(s.registry.Connected(), func(x models.Participant, _ int) bool {
		return moderation.AffectedByGlobal(x) && needs(x)
	})
	events := make(models.EventBatch, 0, len(affected))
	for _, x := range affected {
		updated, _, err := s.registry.SetFlag(x.ID, field, value, now)
		if err != nil {
			// Every target was read as connected above; reaching this means the registry is corrupt.
			panic(fmt.Sprintf("force %s on %s: %v", field, x.ID, err))
		}
		events = append(events, s.participantEvent(models.EventParticipantUpdated, updated, []string{field}, now))
	}
	return events, nil
}

func (s *Session) spotlight(p models.Participant, targetID *string, now time.Time) (models.EventBatch, error) {
	var (
		id     string
		target *moderation.Target
	)
	if targetID != nil && *targetID != "" {
		id = *targetID
		target = s.target(p, id)
	}
	if err := moderation.Authorize(p.Role, models.CommandSpotlight, target); err != nil {
		return nil, err
	}
	changes, err := s.registry.Spotlight(id)
	if err != nil {
		return nil, err
	}
	return lo.Map(changes, func(c participants.Change, _ int) models.Event {
		return s.participantEvent(models.EventParticipantUpdated, c.Participant, c.Fields, now)
	}), nil
}

func (s *Session) toggleRecording(p models.Participant, now time.Time) (models.EventBatch, error) {
	if err := moderation.Authorize(p.Role, models.CommandToggleRecording, nil); err != nil {
		return nil, err
	}
	if s.state.Status != models.SessionStatusLive {
		return nil, ErrNotLive
	}
	if s.state.Recording {
		return models.EventBatch{s.finishRecording(now)}, nil
	}
	at := now
	s.state.Recording = true
	s.state.RecordingStartedAt = &at
	return models.EventBatch{s.sessionEvent(models.EventRecordingStarted, now)}, nil
}

func (s *Session) finishRecording(now time.Time) models.Event {
	meta := models.RecordingMetadata{SessionID: s.state.ID, EndedAt: now}
	if s.state.RecordingStartedAt != nil {
		meta.StartedAt = *s.state.RecordingStartedAt
	}
	s.state.Recording = false
	s.state.RecordingStartedAt = nil
	evt := s.newEvent(models.EventRecordingFinished, now)
	evt.Recording = &meta
	return evt
}

func (s *Session) start(p models.Participant, now time.Time) (models.EventBatch, error) {
	if err := moderation.Authorize(p.Role, models.CommandStartSession, nil); err != nil {
		return nil, err
	}
	if p.ID != s.state.HostID {
		return nil, fmt.Errorf("%w: only the host may start the session", moderation.ErrUnauthorized)
	}
	if s.state.Status != models.SessionStatusScheduled {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state.Status, models.SessionStatusLive)
	}
	at := now
	s.state.Status = models.SessionStatusLive
	s.state.StartedAt = &at
	return models.EventBatch{s.sessionEvent(models.EventSessionStarted, now)}, nil
}

// end moves the session to ended, finishing an active recording first.
func (s *Session) end(now time.Time) models.EventBatch {
	var events models.EventBatch
	if s.state.Recording {
		events = append(events, s.finishRecording(now))
	}
	at := now
	s.state.Status = models.SessionStatusEnded
	s.state.EndedAt = &at
	events = append(events, s.sessionEvent(models.EventSessionEnded, now))
	s.logger.Info("session ended", zap.String("host_id", s.state.HostID))
	return events
}

// target describes participant id from p's point of view.
func (s *Session) target(p models.Participant, id string) *moderation.Target {
	t := &moderation.Target{ID: id, Self: id == p.ID}
	if x, err := s.registry.Get(id); err == nil {
		t.Known = true
		t.Connected = x.Connected
	}
	return t
}
