// Package participants is the authoritative membership map of a session.
package participants

import (
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/aura-webinar/coordinator/internal/models"
)

var (
	ErrNotFound     = errors.New("participant not found")
	ErrNotConnected = errors.New("participant not connected")
	ErrUnknownFlag  = errors.New("unknown participant flag")
)

type entry struct {
	p       models.Participant
	handSeq uint64 // order in which the hand went up; 0 when lowered
}

// Registry owns the participants of one session. It is not safe for concurrent use;
// the session run loop is its only writer.
type Registry struct {
	byID        map[string]*entry
	order       []*entry // join order
	nextHand    uint64
	spotlighted string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*entry)}
}

// Join connects a participant. Returns joined=false when the id was already connected.
// A returning participant keeps its flags and original join position.
func (r *Registry) Join(id, displayName string, role models.Role, now time.Time) (models.Participant, bool) {
	if e, ok := r.byID[id]; ok {
		if e.p.Connected {
			return e.p, false
		}
		e.p.Connected = true
		return e.p, true
	}
	e := &entry{
		p: models.Participant{
			ID:          id,
			DisplayName: displayName,
			Role:        role,
			Connected:   true,
			JoinedAt:    now,
		},
	}
	r.byID[id] = e
	r.order = append(r.order, e)
	return e.p, true
}

// Leave disconnects a participant and clears their spotlight. Leaving twice is a no-op
// and returns no changed fields.
func (r *Registry) Leave(id string) (models.Participant, []string, error) {
	e, ok := r.byID[id]
	if !ok {
		return models.Participant{}, nil, ErrNotFound
	}
	if !e.p.Connected {
		return e.p, nil, nil
	}
	changed := []string{models.FieldConnected}
	e.p.Connected = false
	if e.p.Spotlighted {
		e.p.Spotlighted = false
		r.spotlighted = ""
		changed = append(changed, models.FieldSpotlighted)
	}
	return e.p, changed, nil
}

// Get returns a participant by id.
func (r *Registry) Get(id string) (models.Participant, error) {
	e, ok := r.byID[id]
	if !ok {
		return models.Participant{}, ErrNotFound
	}
	return e.p, nil
}

// Require returns a connected participant, or ErrNotFound / ErrNotConnected.
func (r *Registry) Require(id string) (models.Participant, error) {
	p, err := r.Get(id)
	if err != nil {
		return p, err
	}
	if !p.Connected {
		return p, ErrNotConnected
	}
	return p, nil
}

// SetFlag sets muted, camera_on or hand_raised. changed is false when the value was already set.
func (r *Registry) SetFlag(id, flag string, value bool, now time.Time) (models.Participant, bool, error) {
	e, ok := r.byID[id]
	if !ok {
		return models.Participant{}, false, ErrNotFound
	}
	if !e.p.Connected {
		return e.p, false, ErrNotConnected
	}
	var cur *bool
	switch flag {
	case models.FieldMuted:
		cur = &e.p.Muted
	case models.FieldCameraOn:
		cur = &e.p.CameraOn
	case models.FieldHandRaised:
		cur = &e.p.HandRaised
	default:
		return e.p, false, ErrUnknownFlag
	}
	if *cur == value {
		return e.p, false, nil
	}
	*cur = value
	if flag == models.FieldHandRaised {
		r.setHand(e, value, now)
	}
	return e.p, true, nil
}

func (r *Registry) setHand(e *entry, raised bool, now time.Time) {
	if raised {
		r.nextHand++
		e.handSeq = r.nextHand
		at := now
		e.p.HandRaisedAt = &at
		return
	}
	e.handSeq = 0
	e.p.HandRaisedAt = nil
}

// Change is one participant delta produced by a registry mutation.
type Change struct {
	Participant models.Participant
	Fields      []string
}

// Spotlight makes id the only spotlighted participant; an empty id clears the spotlight.
// The new holder's hand is lowered. Changes are returned previous holder first.
func (r *Registry) Spotlight(id string) ([]Change, error) {
	var target *entry
	if id != "" {
		e, ok := r.byID[id]
		if !ok {
			return nil, ErrNotFound
		}
		if !e.p.Connected {
			return nil, ErrNotConnected
		}
		target = e
	}
	if target != nil && target.p.Spotlighted && !target.p.HandRaised {
		return nil, nil
	}

	var changes []Change
	if prev, ok := r.byID[r.spotlighted]; ok && prev != target {
		prev.p.Spotlighted = false
		changes = append(changes, Change{Participant: prev.p, Fields: []string{models.FieldSpotlighted}})
	}
	r.spotlighted = ""
	if target == nil {
		return changes, nil
	}

	var fields []string
	if !target.p.Spotlighted {
		target.p.Spotlighted = true
		fields = append(fields, models.FieldSpotlighted)
	}
	if target.p.HandRaised {
		target.p.HandRaised = false
		r.setHand(target, false, time.Time{})
		fields = append(fields, models.FieldHandRaised)
	}
	r.spotlighted = target.p.ID
	changes = append(changes, Change{Participant: target.p, Fields: fields})
	return changes, nil
}

// Spotlighted returns the spotlighted participant id, or "".
func (r *Registry) Spotlighted() string { return r.spotlighted }

// Connected returns connected participants in join order.
func (r *Registry) Connected() []models.Participant {
	return lo.FilterMap(r.order, func(e *entry, _ int) (models.Participant, bool) {
		return e.p, e.p.Connected
	})
}

// Len returns the number of participants ever joined.
func (r *Registry) Len() int { return len(r.order) }

// List returns every participant: spotlighted first, then raised hands in the order they
// went up, then everyone else in join order. Equal keys keep join order.
func (r *Registry) List() []models.Participant {
	entries := make([]*entry, len(r.order))
	copy(entries, r.order)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		if a.p.HandRaised && b.p.HandRaised {
			return a.handSeq < b.handSeq
		}
		return false
	})
	return lo.Map(entries, func(e *entry, _ int) models.Participant { return e.p })
}

func rank(e *entry) int {
	switch {
	case e.p.Spotlighted:
		return 0
	case e.p.HandRaised:
		return 1
	default:
		return 2
	}
}
