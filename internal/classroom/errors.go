package classroom

import (
	"errors"
	"net/http"

	"github.com/aura-webinar/coordinator/internal/chat"
	"github.com/aura-webinar/coordinator/internal/moderation"
	"github.com/aura-webinar/coordinator/internal/participants"
	"github.com/aura-webinar/coordinator/internal/reactions"
)

var (
	ErrSessionEnded      = errors.New("session has ended")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session is shut down")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNotLive           = errors.New("session is not live")
	ErrInvalidSession    = errors.New("invalid session metadata")
	// ErrInternal marks a session as unusable. Callers should not retry.
	ErrInternal = errors.New("internal session error")
)

// ErrUnknownCommand is returned for a command kind the session does not recognise.
var ErrUnknownCommand = moderation.ErrUnknownCommand

// Code returns a stable client-facing name for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionEnded):
		return "session_ended"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotLive):
		return "not_live"
	case errors.Is(err, moderation.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, moderation.ErrTargetUnavailable):
		return "target_unavailable"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, participants.ErrNotFound):
		return "participant_not_found"
	case errors.Is(err, participants.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, reactions.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, chat.ErrInvalidMessage), errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, reactions.ErrInvalidEmoji), errors.Is(err, ErrUnknownCommand),
		errors.Is(err, ErrInvalidSession), errors.Is(err, participants.ErrUnknownFlag):
		return "invalid_input"
	case errors.Is(err, ErrSessionClosed):
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "":
		return http.StatusOK
	case "session_ended", "invalid_transition", "not_live", "not_connected":
		return http.StatusConflict
	case "unauthorized":
		return http.StatusForbidden
	case "target_unavailable", "session_not_found", "participant_not_found":
		return http.StatusNotFound
	case "rate_limited":
		return http.StatusTooManyRequests
	case "invalid_input":
		return http.StatusBadRequest
	case "unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
