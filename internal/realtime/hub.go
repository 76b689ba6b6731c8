package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
	// DefaultSubscriberBuffer is the per-observer queue length.
	DefaultSubscriberBuffer = 256
	relayQueueSize          = 1024
)

// ObserverChangeHandler is called when the observer count of a session changes (e.g. for peak tracking).
type ObserverChangeHandler func(sessionID string, count int)

// RelayPublisher pushes event batches to other instances.
type RelayPublisher interface {
	PublishSessionEvents(ctx context.Context, sessionID, origin string, events []models.Event) error
}

// RelaySubscriber receives event batches published by other instances.
type RelaySubscriber interface {
	SubscribeSession(sessionID string, handler func(origin string, events []models.Event)) (cancel func(), err error)
}

// Subscription is one observer's ordered event stream.
type Subscription struct {
	ID         string
	SessionID  string
	ObserverID string
	events     chan models.Event
	hub        *Hub
	closed     bool // guarded by hub.mu
	dropped    bool // guarded by hub.mu
}

// Events returns the stream. It is closed on Unsubscribe or when the observer falls behind.
func (s *Subscription) Events() <-chan models.Event { return s.events }

// Close unsubscribes.
func (s *Subscription) Close() { s.hub.Unsubscribe(s) }

// Dropped reports whether the hub closed the stream because its buffer filled up.
// A dropped observer must resync from a snapshot.
func (s *Subscription) Dropped() bool {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.dropped
}

type relayBatch struct {
	sessionID string
	events    []models.Event
}

// Hub fans session events out to observers in the order they are published. Delivery to each
// observer goes through its own buffered queue, so a slow observer never blocks a publisher.
// With a relay configured, batches are also published to Redis for observers on other instances.
type Hub struct {
	// sessionID -> map[subscriptionID]*Subscription
	sessions   map[string]map[string]*Subscription
	relaySubs  map[string]func() // cancel relay subscription per session
	mu         sync.RWMutex
	logger     *zap.Logger
	relay      RelayPublisher
	relaySub   RelaySubscriber
	instanceID string
	buffer     int
	onObserver ObserverChangeHandler
	outbox     chan relayBatch
	stop       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub. relayPub and relaySub may be nil for a single instance deployment.
func NewHub(logger *zap.Logger, relayPub RelayPublisher, relaySub RelaySubscriber, buffer int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	h := &Hub{
		sessions:   make(map[string]map[string]*Subscription),
		relaySubs:  make(map[string]func()),
		logger:     logger,
		relay:      relayPub,
		relaySub:   relaySub,
		instanceID: uuid.New().String(),
		buffer:     buffer,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if relayPub != nil {
		h.outbox = make(chan relayBatch, relayQueueSize)
		go h.runRelay()
	} else {
		close(h.done)
	}
	return h
}

// InstanceID identifies this hub in relayed messages.
func (h *Hub) InstanceID() string { return h.instanceID }

// SetObserverChangeHandler sets the callback for observer count changes.
func (h *Hub) SetObserverChangeHandler(fn ObserverChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onObserver = fn
}

// Subscribe registers an observer for a session. Only events published after this call are
// delivered. buffer <= 0 uses the hub default.
func (h *Hub) Subscribe(sessionID, observerID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = h.buffer
	}
	sub := &Subscription{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		ObserverID: observerID,
		events:     make(chan models.Event, buffer),
		hub:        h,
	}
	h.mu.Lock()
	first := h.sessions[sessionID] == nil
	if first {
		h.sessions[sessionID] = make(map[string]*Subscription)
	}
	h.sessions[sessionID][sub.ID] = sub
	count := len(h.sessions[sessionID])
	onObserver := h.onObserver
	h.mu.Unlock()
	if first && h.relaySub != nil {
		h.subscribeRelay(sessionID)
	}
	if onObserver != nil {
		onObserver(sessionID, count)
	}
	h.logger.Debug("observer subscribed", zap.String("observer_id", observerID), zap.String("session_id", sessionID))
	return sub
}

// subscribeRelay listens for other instances' batches of a session. It runs without h.mu held,
// so a slow Redis never blocks delivery. The relay is kept only if the session still has local
// observers and no other subscriber attached one meanwhile.
func (h *Hub) subscribeRelay(sessionID string) {
	cancel, err := h.relaySub.SubscribeSession(sessionID, func(origin string, events []models.Event) {
		if origin == h.instanceID {
			return
		}
		h.deliver(sessionID, events)
	})
	if err != nil {
		h.logger.Warn("relay subscribe failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	h.mu.Lock()
	_, observed := h.sessions[sessionID]
	_, attached := h.relaySubs[sessionID]
	keep := observed && !attached
	if keep {
		h.relaySubs[sessionID] = cancel
	}
	h.mu.Unlock()
	if !keep {
		cancel()
	}
}

// Unsubscribe removes a subscription and closes its stream. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	count, removed := h.removeLocked(sub)
	onObserver := h.onObserver
	h.mu.Unlock()
	if removed && onObserver != nil {
		onObserver(sub.SessionID, count)
	}
}

func (h *Hub) removeLocked(sub *Subscription) (int, bool) {
	if sub.closed {
		return 0, false
	}
	sub.closed = true
	close(sub.events)
	m, ok := h.sessions[sub.SessionID]
	if !ok {
		return 0, true
	}
	delete(m, sub.ID)
	count := len(m)
	if count == 0 {
		delete(h.sessions, sub.SessionID)
		if cancel, ok := h.relaySubs[sub.SessionID]; ok {
			cancel()
			delete(h.relaySubs, sub.SessionID)
		}
	}
	return count, true
}

// Publish delivers events to local observers in order and queues them for the relay. It never
// waits on the relay: when the relay queue is full the batch is not relayed.
func (h *Hub) Publish(sessionID string, events []models.Event) {
	if len(events) == 0 {
		return
	}
	h.deliver(sessionID, events)
	if h.outbox == nil {
		return
	}
	select {
	case <-h.stop:
		return
	default:
	}
	select {
	case h.outbox <- relayBatch{sessionID: sessionID, events: events}:
	default:
		h.logger.Warn("relay queue full, batch dropped", zap.String("session_id", sessionID), zap.Int("events", len(events)))
	}
}

// deliver pushes events into each observer queue. An observer whose queue is full is dropped
// rather than skipped, so no observer ever sees a gap in its stream.
func (h *Hub) deliver(sessionID string, events []models.Event) {
	var slow []*Subscription
	h.mu.RLock()
	for _, sub := range h.sessions[sessionID] {
		for _, evt := range events {
			select {
			case sub.events <- evt:
				continue
			default:
			}
			slow = append(slow, sub)
			break
		}
	}
	h.mu.RUnlock()
	if len(slow) == 0 {
		return
	}

	h.mu.Lock()
	counts := lo.Map(slow, func(sub *Subscription, _ int) int {
		count, removed := h.removeLocked(sub)
		if removed {
			sub.dropped = true
		}
		return count
	})
	onObserver := h.onObserver
	h.mu.Unlock()
	for i, sub := range slow {
		h.logger.Warn("observer dropped: buffer full", zap.String("observer_id", sub.ObserverID), zap.String("session_id", sessionID))
		if onObserver != nil {
			onObserver(sessionID, counts[i])
		}
	}
}

// ObserverCount returns the number of local observers of a session.
func (h *Hub) ObserverCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) runRelay() {
	defer close(h.done)
	for {
		select {
		case <-h.stop:
			return
		case batch := <-h.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), eventTTL)
			if err := h.relay.PublishSessionEvents(ctx, batch.sessionID, h.instanceID, batch.events); err != nil {
				h.logger.Warn("relay publish failed", zap.String("session_id", batch.sessionID), zap.Error(err))
			}
			cancel()
		}
	}
}

// Close stops the relay and closes every subscription.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.stop)
		<-h.done
		h.mu.Lock()
		for _, m := range h.sessions {
			for _, sub := range m {
				h.removeLocked(sub)
			}
		}
		h.mu.Unlock()
	})
}
