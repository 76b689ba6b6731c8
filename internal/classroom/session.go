// Package classroom runs live sessions: one single-writer state machine per session,
// and a Coordinator that routes commands to them.
package classroom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/chat"
	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/internal/participants"
	"github.com/aura-webinar/coordinator/internal/reactions"
)

// Publisher receives each command's event batch, in order, before the next command runs.
type Publisher interface {
	Publish(sessionID string, events []models.Event)
}

// Config holds per-session limits.
type Config struct {
	ReactionTTL      time.Duration
	MaxMessageLength int
	RecentChatLimit  int
	// EndedRetention is how long the Coordinator keeps an ended session around for queries.
	EndedRetention time.Duration
}

// DefaultConfig returns the defaults used when a field is zero.
func DefaultConfig() Config {
	return Config{
		ReactionTTL:      reactions.DefaultTTL,
		MaxMessageLength: chat.DefaultMaxLength,
		RecentChatLimit:  50,
		EndedRetention:   10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReactionTTL <= 0 {
		c.ReactionTTL = d.ReactionTTL
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = d.MaxMessageLength
	}
	if c.RecentChatLimit <= 0 {
		c.RecentChatLimit = d.RecentChatLimit
	}
	if c.EndedRetention <= 0 {
		c.EndedRetention = d.EndedRetention
	}
	return c
}

// Session is the state machine of one classroom. All reads and writes of its state go through
// a single run loop, so commands apply one at a time in the order they were accepted and each
// batch is published before the next command starts.
type Session struct {
	cfg       Config
	logger    *zap.Logger
	publisher Publisher
	clock     func() time.Time

	// Owned by the run loop.
	state     models.Session
	registry  *participants.Registry
	chat      *chat.Log
	reactions *reactions.Ledger
	eventSeq  uint64
	broken    error

	requests chan func()
	stop     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
	stopped  bool
}

// NewSession creates a scheduled session. Call Start before submitting commands.
func NewSession(id string, meta models.SessionMeta, cfg Config, publisher Publisher, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:       cfg,
		logger:    logger.With(zap.String("session_id", id)),
		publisher: publisher,
		clock:     time.Now,
		registry:  participants.NewRegistry(),
		chat:      chat.NewLog(cfg.MaxMessageLength),
		reactions: reactions.NewLedger(cfg.ReactionTTL),
		requests:  make(chan func()),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.state = models.Session{
		ID:         id,
		CourseCode: meta.CourseCode,
		Title:      meta.Title,
		Status:     models.SessionStatusScheduled,
		HostID:     meta.HostID,
		CreatedAt:  s.clock(),
	}
	return s
}

// SetClock replaces the time source. Must be called before Start.
func (s *Session) SetClock(clock func() time.Time) {
	s.clock = clock
	s.state.CreatedAt = clock()
}

// SetReactionPolicy installs an emission policy on the reaction ledger.
func (s *Session) SetReactionPolicy(p reactions.Policy) { s.reactions.SetPolicy(p) }

// ID returns the session id.
func (s *Session) ID() string { return s.state.ID }

// Start launches the run loop and the reaction sweeper.
func (s *Session) Start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.run()
	go s.sweep()
	s.logger.Debug("session started")
}

// Stop shuts the run loop down. Commands submitted afterwards fail with ErrSessionClosed.
func (s *Session) Stop() {
	s.startMu.Lock()
	if !s.started || s.stopped {
		s.startMu.Unlock()
		return
	}
	s.stopped = true
	s.startMu.Unlock()
	close(s.stop)
	<-s.done
	s.logger.Debug("session stopped")
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case fn := <-s.requests:
			fn()
		}
	}
}

// sweep evicts expired reactions once per TTL, independently of command processing.
func (s *Session) sweep() {
	ticker := time.NewTicker(s.cfg.ReactionTTL)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.reactions.Sweep(s.clock()); n > 0 {
				s.logger.Debug("reactions swept", zap.Int("count", n))
			}
		}
	}
}

// do runs fn on the run loop. Once accepted, fn always runs to completion; ctx only bounds
// how long the caller waits.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.requests <- task:
	case <-s.stop:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit applies one command on behalf of actor and returns the events it produced.
func (s *Session) Submit(ctx context.Context, actor models.Identity, cmd models.Command) (models.EventBatch, error) {
	var (
		batch models.EventBatch
		err   error
	)
	if doErr := s.do(ctx, func() { batch, err = s.handle(actor, cmd) }); doErr != nil {
		return nil, doErr
	}
	return batch, err
}

// Snapshot returns the current state for initial render or reconnect.
func (s *Session) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.do(ctx, func() {
		snap = models.Snapshot{
			Session:         s.state,
			Participants:    s.registry.List(),
			RecentChat:      s.chat.Recent(s.cfg.RecentChatLimit),
			ActiveReactions: s.reactions.Active(s.clock()),
			LastEventSeq:    s.eventSeq,
		}
	})
	return snap, err
}

// ChatSince returns chat messages after seq, for catch-up after reconnect.
func (s *Session) ChatSince(seq uint64) []models.ChatMessage {
	return s.chat.Since(seq)
}

// handle runs on the loop. A panic leaves the session unusable.
func (s *Session) handle(actor models.Identity, cmd models.Command) (batch models.EventBatch, err error) {
	if s.broken != nil {
		return nil, s.broken
	}
	defer func() {
		if r := recover(); r != nil {
			s.broken = fmt.Errorf("%w: %v", ErrInternal, r)
			s.logger.Error("command panicked, session unusable",
				zap.String("kind", string(cmd.Kind)),
				zap.String("actor_id", actor.UserID),
				zap.Any("panic", r),
			)
			batch, err = nil, s.broken
		}
	}()
	if s.state.Status == models.SessionStatusEnded {
		return nil, ErrSessionEnded
	}
	events, err := s.dispatch(actor, cmd, s.clock())
	if err != nil {
		return nil, err
	}
	s.publish(events)
	return events, nil
}

func (s *Session) publish(events models.EventBatch) {
	if len(events) == 0 {
		return
	}
	for i := range events {
		s.eventSeq++
		events[i].Sequence = s.eventSeq
	}
	if s.publisher != nil {
		s.publisher.Publish(s.state.ID, events)
	}
}

func (s *Session) newEvent(kind models.EventKind, now time.Time) models.Event {
	return models.Event{Kind: kind, SessionID: s.state.ID, At: now}
}

func (s *Session) participantEvent(kind models.EventKind, p models.Participant, fields []string, now time.Time) models.Event {
	evt := s.newEvent(kind, now)
	evt.Participant = &p
	evt.ChangedFields = fields
	return evt
}

func (s *Session) sessionEvent(kind models.EventKind, now time.Time) models.Event {
	evt := s.newEvent(kind, now)
	snap := s.state
	evt.Session = &snap
	return evt
}
