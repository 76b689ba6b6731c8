// Package reactions keeps short-lived emoji reactions for a session.
package reactions

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/aura-webinar/coordinator/internal/models"
)

const (
	// DefaultTTL is how long a reaction stays visible.
	DefaultTTL = 3 * time.Second
	// MaxEmojiBytes bounds the emoji payload (multi-codepoint sequences included).
	MaxEmojiBytes = 32
)

var (
	ErrInvalidEmoji = errors.New("invalid emoji")
	ErrRateLimited  = errors.New("reaction rate limited")
)

// Policy decides whether an author may emit another reaction. Reserved for abuse control;
// no policy is installed by default. Return ErrRateLimited (or a wrapped error) to reject.
type Policy interface {
	Allow(authorID string, now time.Time) error
}

// Ledger holds active reactions. It has its own lock so the sweeper never waits on
// command processing. A reaction expiring while Active runs may or may not be returned.
type Ledger struct {
	mu        sync.Mutex
	ttl       time.Duration
	policy    Policy
	reactions []models.Reaction // ordered by EmittedAt
}

// NewLedger creates a ledger. ttl <= 0 uses DefaultTTL.
func NewLedger(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{ttl: ttl}
}

// SetPolicy installs an emission policy.
func (l *Ledger) SetPolicy(p Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.policy = p
}

// TTL returns the reaction lifetime.
func (l *Ledger) TTL() time.Duration { return l.ttl }

// Validate checks an emoji payload without emitting it.
func Validate(emoji string) error {
	e := strings.TrimSpace(emoji)
	if e == "" || len(e) > MaxEmojiBytes {
		return ErrInvalidEmoji
	}
	return nil
}

// Emit records a reaction valid until now+TTL. Expired entries are evicted first.
func (l *Ledger) Emit(authorID, emoji string, now time.Time) (models.Reaction, error) {
	if err := Validate(emoji); err != nil {
		return models.Reaction{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.policy != nil {
		if err := l.policy.Allow(authorID, now); err != nil {
			return models.Reaction{}, err
		}
	}
	l.sweepLocked(now)
	r := models.Reaction{
		ID:        uuid.New().String(),
		Emoji:     strings.TrimSpace(emoji),
		AuthorID:  authorID,
		EmittedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}
	l.reactions = append(l.reactions, r)
	return r, nil
}

// Active returns reactions with ExpiresAt after now.
func (l *Ledger) Active(now time.Time) []models.Reaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)
	out := make([]models.Reaction, len(l.reactions))
	copy(out, l.reactions)
	return out
}

// Sweep removes expired reactions and returns how many were dropped.
func (l *Ledger) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(now)
}

// Len returns the number of stored reactions, expired or not.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reactions)
}

func (l *Ledger) sweepLocked(now time.Time) int {
	before := len(l.reactions)
	if before == 0 {
		return 0
	}
	// Entries are not strictly sorted when callers pass non-monotonic clocks, so filter.
	l.reactions = lo.Filter(l.reactions, func(r models.Reaction, _ int) bool {
		return r.ExpiresAt.After(now)
	})
	if len(l.reactions) == 0 {
		l.reactions = nil
	}
	return before - len(l.reactions)
}
