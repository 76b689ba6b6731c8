package classroom

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/middleware"
	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/pkg/response"
)

// Handler exposes the Coordinator over HTTP.
type Handler struct {
	coord  *Coordinator
	logger *zap.Logger
}

// NewHandler creates a classroom handler.
func NewHandler(coord *Coordinator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{coord: coord, logger: logger}
}

// Create handles POST /sessions. The caller becomes the host.
func (h *Handler) Create(c *gin.Context) {
	id, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var meta models.SessionMeta
	if err := c.ShouldBindJSON(&meta); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	meta.HostID = id.UserID
	s, err := h.coord.Create(meta)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, s)
}

// Get handles GET /sessions/:id and returns the current snapshot.
func (h *Handler) Get(c *gin.Context) {
	snap, err := h.coord.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, snap)
}

// Submit handles POST /sessions/:id/commands.
func (h *Handler) Submit(c *gin.Context) {
	id, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var cmd models.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	events, err := h.coord.Submit(c.Request.Context(), c.Param("id"), id, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	if events == nil {
		events = models.EventBatch{}
	}
	response.OK(c, gin.H{"events": events})
}

// ChatSince handles GET /sessions/:id/chat?since=N.
func (h *Handler) ChatSince(c *gin.Context) {
	var since uint64
	if v := c.Query("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			response.BadRequest(c, "since must be a non-negative integer")
			return
		}
		since = n
	}
	msgs, err := h.coord.ChatSince(c.Param("id"), since)
	if err != nil {
		h.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	response.OK(c, gin.H{"messages": msgs})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := HTTPStatus(err)
	if status >= 500 {
		h.logger.Error("classroom request failed", zap.String("path", c.FullPath()), zap.String("session_id", c.Param("id")), zap.Error(err))
	}
	response.Fail(c, status, Code(err), err.Error())
}
