package classroom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
)

// SessionCreatedHandler is called after a session is created and started (e.g. to archive its events).
type SessionCreatedHandler func(session models.Session)

// Coordinator owns every running session on this instance.
type Coordinator struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	evictions map[string]*time.Timer
	cfg       Config
	publisher Publisher
	logger    *zap.Logger
	onCreated []SessionCreatedHandler
	closed    bool
}

// NewCoordinator creates a coordinator publishing every session's events to publisher.
func NewCoordinator(cfg Config, publisher Publisher, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		sessions:  make(map[string]*Session),
		evictions: make(map[string]*time.Timer),
		cfg:       cfg.withDefaults(),
		publisher: publisher,
		logger:    logger,
	}
}

// OnSessionCreated registers a handler run after each Create.
func (c *Coordinator) OnSessionCreated(fn SessionCreatedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCreated = append(c.onCreated, fn)
}

// Create schedules a new session hosted by meta.HostID.
func (c *Coordinator) Create(meta models.SessionMeta) (models.Session, error) {
	meta.CourseCode = strings.TrimSpace(meta.CourseCode)
	meta.Title = strings.TrimSpace(meta.Title)
	if meta.CourseCode == "" || meta.Title == "" || meta.HostID == "" {
		return models.Session{}, fmt.Errorf("%w: course_code, title and host are required", ErrInvalidSession)
	}
	id := uuid.New().String()
	s := NewSession(id, meta, c.cfg, c.publisher, c.logger)
	info := s.state

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.Session{}, ErrSessionClosed
	}
	c.sessions[id] = s
	handlers := append([]SessionCreatedHandler(nil), c.onCreated...)
	c.mu.Unlock()

	s.Start()
	for _, fn := range handlers {
		fn(info)
	}
	c.logger.Info("session created", zap.String("session_id", id), zap.String("course_code", meta.CourseCode), zap.String("host_id", meta.HostID))
	return info, nil
}

// Get returns a running session.
func (c *Coordinator) Get(id string) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Submit routes a command to its session. A batch that ends the session schedules its eviction.
func (c *Coordinator) Submit(ctx context.Context, sessionID string, actor models.Identity, cmd models.Command) (models.EventBatch, error) {
	s, err := c.Get(sessionID)
	if err != nil {
		return nil, err
	}
	batch, err := s.Submit(ctx, actor, cmd)
	if err != nil {
		return nil, err
	}
	if lo.ContainsBy(batch, func(e models.Event) bool { return e.Kind == models.EventSessionEnded }) {
		c.scheduleEviction(sessionID)
	}
	return batch, nil
}

// Snapshot returns a session's current state.
func (c *Coordinator) Snapshot(ctx context.Context, sessionID string) (models.Snapshot, error) {
	s, err := c.Get(sessionID)
	if err != nil {
		return models.Snapshot{}, err
	}
	return s.Snapshot(ctx)
}

// ChatSince returns a session's chat messages after seq.
func (c *Coordinator) ChatSince(sessionID string, seq uint64) ([]models.ChatMessage, error) {
	s, err := c.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.ChatSince(seq), nil
}

// Len returns the number of sessions held.
func (c *Coordinator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Coordinator) scheduleEviction(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.evictions[id] != nil {
		return
	}
	c.evictions[id] = time.AfterFunc(c.cfg.EndedRetention, func() { c.evict(id) })
}

func (c *Coordinator) evict(id string) {
	c.mu.Lock()
	s := c.sessions[id]
	delete(c.sessions, id)
	delete(c.evictions, id)
	c.mu.Unlock()
	if s != nil {
		s.Stop()
		c.logger.Info("session evicted", zap.String("session_id", id))
	}
}

// Close stops every session.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for _, t := range c.evictions {
		t.Stop()
	}
	sessions := lo.Values(c.sessions)
	c.sessions = make(map[string]*Session)
	c.evictions = make(map[string]*time.Timer)
	c.mu.Unlock()
	for _, s := range sessions {
		s.Stop()
	}
}
