package reactions

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLedger_ActiveRespectsTTL(t *testing.T) {
	req := require.New(t)
	l := NewLedger(3 * time.Second)
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	r, err := l.Emit("a1", "👏", t0)
	req.NoError(err)
	req.Equal(t0.Add(3*time.Second), r.ExpiresAt)

	active := l.Active(t0.Add(2 * time.Second))
	req.Len(active, 1)
	req.Equal(r.ID, active[0].ID)

	req.Empty(l.Active(t0.Add(4 * time.Second)))
}

func TestLedger_ExpiresExactlyAtDeadline(t *testing.T) {
	l := NewLedger(time.Second)
	t0 := time.Unix(1000, 0)
	_, err := l.Emit("a1", "🎉", t0)
	require.NoError(t, err)
	require.Empty(t, l.Active(t0.Add(time.Second)))
}

func TestLedger_RejectsEmptyEmoji(t *testing.T) {
	l := NewLedger(0)
	_, err := l.Emit("a1", "   ", time.Now())
	require.ErrorIs(t, err, ErrInvalidEmoji)
	require.Equal(t, DefaultTTL, l.TTL())
	require.Zero(t, l.Len())
}

func TestLedger_SizeBoundedUnderSustainedEmission(t *testing.T) {
	req := require.New(t)
	ttl := 3 * time.Second
	l := NewLedger(ttl)
	t0 := time.Unix(0, 0)
	const perSecond = 50

	// 10 minutes of constant emission, 50 reactions per second.
	for sec := 0; sec < 600; sec++ {
		for i := 0; i < perSecond; i++ {
			now := t0.Add(time.Duration(sec)*time.Second + time.Duration(i)*time.Millisecond)
			_, err := l.Emit("a1", "❤️", now)
			req.NoError(err)
		}
		req.LessOrEqual(l.Len(), perSecond*int(ttl/time.Second)+perSecond)
	}
}

func TestLedger_SweepDropsExpired(t *testing.T) {
	l := NewLedger(time.Second)
	t0 := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		_, err := l.Emit("a1", "👍", t0.Add(time.Duration(i)*100*time.Millisecond))
		require.NoError(t, err)
	}
	require.Equal(t, 3, l.Sweep(t0.Add(1250*time.Millisecond)))
	require.Equal(t, 2, l.Len())
	require.Equal(t, 2, l.Sweep(t0.Add(time.Hour)))
}

type denyAll struct{}

func (denyAll) Allow(string, time.Time) error { return ErrRateLimited }

func TestLedger_PolicyRejects(t *testing.T) {
	l := NewLedger(time.Second)
	l.SetPolicy(denyAll{})
	_, err := l.Emit("a1", "👍", time.Now())
	require.True(t, errors.Is(err, ErrRateLimited))
	require.Zero(t, l.Len())
}
