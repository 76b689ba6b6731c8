package chat

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/coordinator/internal/models"
)

// sequential reports whether msgs have strictly increasing, gap-free sequence numbers.
func sequential(msgs []models.ChatMessage) bool {
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Sequence != msgs[i-1].Sequence+1 {
			return false
		}
	}
	return true
}

func TestLog_AppendAssignsSequence(t *testing.T) {
	req := require.New(t)
	l := NewLog(0)
	now := time.Now()

	m1, err := l.Append("a1", models.RoleAttendee, "hi", now)
	req.NoError(err)
	req.EqualValues(1, m1.Sequence)

	m2, err := l.Append("m1", models.RoleModerator, "welcome", now)
	req.NoError(err)
	req.EqualValues(2, m2.Sequence)
	req.EqualValues(2, l.LastSequence())
}

func TestLog_RejectsInvalidText(t *testing.T) {
	l := NewLog(5)
	_, err := l.Append("a1", models.RoleAttendee, " \n\t", time.Now())
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = l.Append("a1", models.RoleAttendee, "abcdef", time.Now())
	require.ErrorIs(t, err, ErrMessageTooLong)

	// Length counts characters, not bytes.
	_, err = l.Append("a1", models.RoleAttendee, "héllo", time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())
}

func TestLog_DefaultMaxLength(t *testing.T) {
	l := NewLog(0)
	_, err := l.Append("a1", models.RoleAttendee, strings.Repeat("x", DefaultMaxLength), time.Now())
	require.NoError(t, err)
	_, err = l.Append("a1", models.RoleAttendee, strings.Repeat("x", DefaultMaxLength+1), time.Now())
	require.ErrorIs(t, err, ErrMessageTooLong)
}

func TestLog_Since(t *testing.T) {
	req := require.New(t)
	l := NewLog(0)
	for i := 0; i < 5; i++ {
		_, err := l.Append("a1", models.RoleAttendee, "msg", time.Now())
		req.NoError(err)
	}
	seqs := func(msgs []models.ChatMessage) []uint64 {
		return lo.Map(msgs, func(m models.ChatMessage, _ int) uint64 { return m.Sequence })
	}
	req.Equal([]uint64{3, 4, 5}, seqs(l.Since(2)))
	req.Empty(l.Since(5))
	req.Empty(l.Since(99))
	req.Len(l.Since(0), 5)
	req.Equal([]uint64{4, 5}, seqs(l.Recent(2)))
	req.Len(l.Recent(0), 5)
}

func TestLog_ConcurrentAppendsAreGapFree(t *testing.T) {
	const n = 500
	l := NewLog(0)
	var wg sync.WaitGroup
	results := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := l.Append("a1", models.RoleAttendee, "ping", time.Now())
			if err == nil {
				results <- m.Sequence
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]bool, n)
	for seq := range results {
		require.False(t, seen[seq], "duplicate sequence %d", seq)
		seen[seq] = true
	}
	require.Len(t, seen, n)
	for i := uint64(1); i <= n; i++ {
		require.True(t, seen[i], "missing sequence %d", i)
	}
	require.True(t, sequential(l.Since(0)))
}
