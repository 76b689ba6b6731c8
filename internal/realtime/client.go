package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/classroom"
	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/pkg/response"
)

const (
	writeWait       = 10 * time.Second
	maxMessageBytes = 65536
	directQueueSize = 32
	leaveTimeout    = 5 * time.Second
)

// Frame events that are not session events.
const (
	FrameSnapshot       = "snapshot"
	FrameCommand        = "command"
	FrameCommandResult  = "command_result"
	FrameCommandError   = "command_error"
	FrameResyncRequired = "resync_required"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CommandError is the payload of a command_error frame.
type CommandError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// SessionService is the part of the coordinator a connection needs.
type SessionService interface {
	Submit(ctx context.Context, sessionID string, actor models.Identity, cmd models.Command) (models.EventBatch, error)
	Snapshot(ctx context.Context, sessionID string) (models.Snapshot, error)
}

// IdentityValidator resolves a bearer token to a session identity.
type IdentityValidator func(token string) (models.Identity, error)

// Client is one WebSocket connection observing a session as a participant.
type Client struct {
	ID        string
	SessionID string
	Identity  models.Identity
	hub       *Hub
	svc       SessionService
	sub       *Subscription
	conn      *websocket.Conn
	direct    chan WSMessage
	done      chan struct{}
	logger    *zap.Logger
}

// NewUpgrader returns an upgrader that accepts the given origins; empty allows all.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return lo.Contains(allowedOrigins, origin) || lo.Contains(allowedOrigins, u.Host)
		},
	}
}

// ServeWs handles the WebSocket upgrade. The connection joins the session as the token's identity,
// receives a snapshot followed by every later event, and leaves when it closes.
func ServeWs(hub *Hub, svc SessionService, logger *zap.Logger, validate IdentityValidator, upgrader websocket.Upgrader) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		sessionID := c.Query("session_id")
		token := c.Query("token")
		if sessionID == "" || token == "" {
			response.BadRequest(c, "session_id and token required")
			return
		}
		id, err := validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		// Fail before upgrading when the session is unknown.
		if _, err := svc.Snapshot(c.Request.Context(), sessionID); err != nil {
			response.Fail(c, classroom.HTTPStatus(err), classroom.Code(err), err.Error())
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			SessionID: sessionID,
			Identity:  id,
			hub:       hub,
			svc:       svc,
			conn:      conn,
			direct:    make(chan WSMessage, directQueueSize),
			done:      make(chan struct{}),
			logger:    logger.With(zap.String("session_id", sessionID), zap.String("user_id", id.UserID)),
		}
		client.sub = hub.Subscribe(sessionID, id.UserID, 0)
		client.ID = client.sub.ID
		client.run()
	}
}

func (c *Client) run() {
	defer c.leave()

	snap, err := c.svc.Snapshot(context.Background(), c.SessionID)
	if err != nil {
		c.logger.Warn("snapshot failed", zap.Error(err))
		c.sub.Close()
		_ = c.conn.Close()
		return
	}
	go c.writePump(snap)

	if _, err := c.svc.Submit(context.Background(), c.SessionID, c.Identity, models.Command{Kind: models.CommandJoin}); err != nil {
		c.reply(FrameCommandError, CommandError{Code: classroom.Code(err), Error: err.Error()})
	}
	c.readPump()
}

// leave disconnects the participant once the socket is gone.
func (c *Client) leave() {
	c.sub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if _, err := c.svc.Submit(ctx, c.SessionID, c.Identity, models.Command{Kind: models.CommandLeave}); err != nil {
		c.logger.Debug("leave on disconnect", zap.Error(err))
	}
}

func (c *Client) readPump() {
	defer func() { _ = c.conn.Close() }()

	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case FrameCommand:
			var cmd models.Command
			if err := json.Unmarshal(msg.Data, &cmd); err != nil || cmd.Kind == "" {
				c.reply(FrameCommandError, CommandError{Code: "invalid_input", Error: "command needs a kind"})
				continue
			}
			events, err := c.svc.Submit(context.Background(), c.SessionID, c.Identity, cmd)
			if err != nil {
				c.reply(FrameCommandError, CommandError{Code: classroom.Code(err), Error: err.Error()})
				continue
			}
			if events == nil {
				events = models.EventBatch{}
			}
			c.reply(FrameCommandResult, gin.H{"kind": cmd.Kind, "events": events})
		default:
			// ignore
		}
	}
}

// reply queues a frame for this connection only.
func (c *Client) reply(event string, payload interface{}) {
	msg, err := frame(event, payload)
	if err != nil {
		c.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.direct <- msg:
	case <-c.done:
	}
}

// writePump sends the snapshot, then session events newer than it, interleaved with direct replies.
func (c *Client) writePump(snap models.Snapshot) {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		close(c.done)
		_ = c.conn.Close()
	}()

	if !c.write(FrameSnapshot, snap) {
		return
	}
	events := c.sub.Events()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				if c.sub.Dropped() {
					c.write(FrameResyncRequired, gin.H{"last_event_sequence": snap.LastEventSeq})
				}
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if evt.Sequence <= snap.LastEventSeq {
				continue
			}
			if !c.write(string(evt.Kind), evt) {
				return
			}
		case msg := <-c.direct:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(event string, payload interface{}) bool {
	msg, err := frame(event, payload)
	if err != nil {
		c.logger.Error("encode frame", zap.String("event", event), zap.Error(err))
		return false
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg) == nil
}

func frame(event string, payload interface{}) (WSMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WSMessage{}, err
	}
	return WSMessage{Event: event, Data: data}, nil
}
