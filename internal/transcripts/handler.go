package transcripts

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/pkg/response"
)

// SessionReader loads a persisted session row.
type SessionReader interface {
	GetByID(ctx context.Context, id string) (*models.SessionRecord, error)
}

// Presigner turns a transcript key into a download URL.
type Presigner interface {
	PresignTranscript(ctx context.Context, key string) (string, error)
}

// Handler handles GET /sessions/:id/transcript.
type Handler struct {
	sessions SessionReader
	s3       Presigner
	logger   *zap.Logger
}

// NewHandler creates a transcripts handler.
func NewHandler(sessions SessionReader, s3 Presigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sessions: sessions, s3: s3, logger: logger}
}

// GetTranscript returns a pre-signed URL to the exported transcript.
func (h *Handler) GetTranscript(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	rec, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("get session", zap.String("session_id", sessionID), zap.Error(err))
		response.Internal(c, "failed to load session")
		return
	}
	if rec == nil {
		response.NotFound(c, "session not found")
		return
	}
	if rec.TranscriptKey == "" {
		response.NotFound(c, "transcript not exported yet")
		return
	}
	url, err := h.s3.PresignTranscript(c.Request.Context(), rec.TranscriptKey)
	if err != nil {
		h.logger.Error("presign transcript", zap.String("session_id", sessionID), zap.Error(err))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "key": rec.TranscriptKey})
}
