package sessionlog

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/pkg/response"
)

// Lister reads attendance spans.
type Lister interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRow, error)
}

// Handler handles GET /sessions/:id/attendance.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates a session log handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// GetAttendance handles GET /sessions/:id/attendance (moderator: join/leave spans with watch time).
func (h *Handler) GetAttendance(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("list attendance", zap.String("session_id", sessionID), zap.Error(err))
		response.Internal(c, "failed to list attendance")
		return
	}
	if list == nil {
		list = []models.AttendanceRow{}
	}
	response.OK(c, gin.H{"attendance": list})
}
