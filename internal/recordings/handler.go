package recordings

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/pkg/response"
)

// Lister reads recordings of a session.
type Lister interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Recording, error)
}

// Handler handles recording metadata endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListBySession handles GET /sessions/:id/recordings.
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.repo.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("list recordings", zap.String("session_id", sessionID), zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	if list == nil {
		list = []models.Recording{}
	}
	response.OK(c, gin.H{"recordings": list})
}
