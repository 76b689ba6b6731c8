// Package archive persists what happens in live sessions: status changes, attendance spans,
// chat, and recordings. It follows each session as an ordinary hub observer, so storage
// latency never reaches the command path.
package archive

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/internal/realtime"
	"github.com/aura-webinar/coordinator/internal/recordings"
	"github.com/aura-webinar/coordinator/pkg/queue"
)

const (
	// ObserverID is the observer name the archiver subscribes under.
	ObserverID = "archiver"
	// DefaultBuffer is the archiver's subscription queue length.
	DefaultBuffer = 4096
	writeTimeout  = 5 * time.Second
)

// SessionStore persists session rows.
type SessionStore interface {
	Upsert(ctx context.Context, s models.Session) error
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus, at time.Time) error
	UpdatePeakObservers(ctx context.Context, id string, n int) error
}

// AttendanceStore persists join/leave spans.
type AttendanceStore interface {
	LogJoin(ctx context.Context, sessionID string, p models.Participant, at time.Time) error
	LogLeave(ctx context.Context, sessionID, participantID string, at time.Time) error
	CloseOpen(ctx context.Context, sessionID string, at time.Time) error
}

// RecordingStore persists recording metadata.
type RecordingStore interface {
	Create(ctx context.Context, rec *models.Recording) error
}

// TranscriptStore persists chat messages.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, msg models.ChatMessage) error
}

// JobQueue hands work to the background worker.
type JobQueue interface {
	EnqueueRecordingFinished(ctx context.Context, payload queue.RecordingFinishedPayload) error
	EnqueueTranscriptExport(ctx context.Context, payload queue.TranscriptExportPayload) error
}

// Subscriber is the part of the hub the archiver needs.
type Subscriber interface {
	Subscribe(sessionID, observerID string, buffer int) *realtime.Subscription
}

// Stores groups the archiver's persistence dependencies.
type Stores struct {
	Sessions    SessionStore
	Attendance  AttendanceStore
	Recordings  RecordingStore
	Transcripts TranscriptStore
	Jobs        JobQueue
}

// Archiver writes session events to storage.
type Archiver struct {
	hub    Subscriber
	stores Stores
	buffer int
	logger *zap.Logger

	mu       sync.Mutex
	watching map[string]*realtime.Subscription
	stopping bool
	wg       sync.WaitGroup
}

// NewArchiver creates an archiver. buffer <= 0 uses DefaultBuffer.
func NewArchiver(hub Subscriber, stores Stores, buffer int, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Archiver{
		hub:      hub,
		stores:   stores,
		buffer:   buffer,
		logger:   logger,
		watching: make(map[string]*realtime.Subscription),
	}
}

// Watch persists the new session and follows its events until it ends.
// It has the shape of classroom.SessionCreatedHandler.
func (a *Archiver) Watch(s models.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	if err := a.stores.Sessions.Upsert(ctx, s); err != nil {
		a.logger.Error("archive session", zap.String("session_id", s.ID), zap.Error(err))
	}
	cancel()

	a.mu.Lock()
	if _, ok := a.watching[s.ID]; ok || a.stopping {
		a.mu.Unlock()
		return
	}
	a.watching[s.ID] = nil // reserved until the subscription exists
	a.mu.Unlock()

	sub := a.hub.Subscribe(s.ID, ObserverID, a.buffer)
	if !a.attach(s.ID, sub) {
		return
	}
	a.wg.Add(1)
	go a.follow(s.ID, sub)
}

// attach records sub as the session's subscription unless the archiver is stopping.
func (a *Archiver) attach(sessionID string, sub *realtime.Subscription) bool {
	a.mu.Lock()
	if a.stopping {
		a.mu.Unlock()
		sub.Close()
		return false
	}
	a.watching[sessionID] = sub
	a.mu.Unlock()
	return true
}

// Watching reports whether sessionID is being archived.
func (a *Archiver) Watching(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.watching[sessionID]
	return ok
}

func (a *Archiver) follow(sessionID string, sub *realtime.Subscription) {
	defer a.wg.Done()
	for {
		ended := a.drain(sub)
		if ended || !sub.Dropped() {
			a.mu.Lock()
			if a.watching[sessionID] == sub {
				delete(a.watching, sessionID)
			}
			a.mu.Unlock()
			return
		}
		// Events were lost while we were behind; pick up from here.
		a.logger.Error("archiver fell behind, events lost", zap.String("session_id", sessionID))
		a.mu.Lock()
		stopping := a.stopping
		a.mu.Unlock()
		if stopping {
			return
		}
		sub = a.hub.Subscribe(sessionID, ObserverID, a.buffer)
		if !a.attach(sessionID, sub) {
			return
		}
	}
}

// drain handles events until the stream closes or the session ends.
func (a *Archiver) drain(sub *realtime.Subscription) bool {
	for evt := range sub.Events() {
		a.handle(evt)
		if evt.Kind == models.EventSessionEnded {
			sub.Close()
			return true
		}
	}
	return false
}

func (a *Archiver) handle(evt models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	log := a.logger.With(zap.String("session_id", evt.SessionID), zap.String("event", string(evt.Kind)), zap.Uint64("sequence", evt.Sequence))

	switch evt.Kind {
	case models.EventParticipantJoined:
		if err := a.stores.Attendance.LogJoin(ctx, evt.SessionID, *evt.Participant, evt.At); err != nil {
			log.Error("archive join", zap.Error(err))
		}
	case models.EventParticipantLeft:
		if err := a.stores.Attendance.LogLeave(ctx, evt.SessionID, evt.Participant.ID, evt.At); err != nil {
			log.Error("archive leave", zap.Error(err))
		}
	case models.EventChatAppended:
		if err := a.stores.Transcripts.Append(ctx, evt.SessionID, *evt.Message); err != nil {
			log.Error("archive chat", zap.Error(err))
		}
	case models.EventRecordingFinished:
		rec := recordings.FromMetadata(*evt.Recording)
		if err := a.stores.Recordings.Create(ctx, rec); err != nil {
			log.Error("archive recording", zap.Error(err))
			return
		}
		payload := queue.RecordingFinishedPayload{
			RecordingID: rec.ID,
			SessionID:   rec.SessionID,
			StartedAt:   rec.StartedAt,
			EndedAt:     rec.EndedAt,
		}
		if err := a.stores.Jobs.EnqueueRecordingFinished(ctx, payload); err != nil {
			log.Error("enqueue recording finished", zap.Error(err))
		}
	case models.EventSessionStarted:
		if err := a.stores.Sessions.UpdateStatus(ctx, evt.SessionID, models.SessionStatusLive, evt.At); err != nil {
			log.Error("archive session start", zap.Error(err))
		}
	case models.EventSessionEnded:
		if err := a.stores.Attendance.CloseOpen(ctx, evt.SessionID, evt.At); err != nil {
			log.Error("close attendance", zap.Error(err))
		}
		if err := a.stores.Sessions.UpdateStatus(ctx, evt.SessionID, models.SessionStatusEnded, evt.At); err != nil {
			log.Error("archive session end", zap.Error(err))
		}
		if err := a.stores.Jobs.EnqueueTranscriptExport(ctx, queue.TranscriptExportPayload{SessionID: evt.SessionID}); err != nil {
			log.Error("enqueue transcript export", zap.Error(err))
		}
		log.Info("session archived")
	}
}

// ObserverChanged records peak observer counts. It has the shape of realtime.ObserverChangeHandler;
// the archiver's own subscription is not counted.
func (a *Archiver) ObserverChanged(sessionID string, count int) {
	a.mu.Lock()
	if _, ok := a.watching[sessionID]; ok {
		count--
	}
	if count <= 0 || a.stopping {
		a.mu.Unlock()
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := a.stores.Sessions.UpdatePeakObservers(ctx, sessionID, count); err != nil {
			a.logger.Warn("update peak observers", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// Close stops following sessions and waits for pending writes.
func (a *Archiver) Close() {
	a.mu.Lock()
	a.stopping = true
	subs := make([]*realtime.Subscription, 0, len(a.watching))
	for _, sub := range a.watching {
		if sub != nil {
			subs = append(subs, sub)
		}
	}
	a.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
	a.wg.Wait()
}
