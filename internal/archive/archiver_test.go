package archive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/internal/realtime"
	"github.com/aura-webinar/coordinator/pkg/queue"
)

type recorder struct {
	mu    sync.Mutex
	calls []string

	sessions   []models.Session
	statuses   []models.SessionStatus
	peaks      []int
	joins      []string
	leaves     []string
	closed     int
	recordings []*models.Recording
	chat       []models.ChatMessage
	recordJobs []queue.RecordingFinishedPayload
	exportJobs []queue.TranscriptExportPayload
}

func (r *recorder) note(call string) { r.calls = append(r.calls, call) }

func (r *recorder) Upsert(_ context.Context, s models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("upsert")
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *recorder) UpdateStatus(_ context.Context, _ string, status models.SessionStatus, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("status:" + string(status))
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *recorder) UpdatePeakObservers(_ context.Context, _ string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peaks = append(r.peaks, n)
	return nil
}

func (r *recorder) LogJoin(_ context.Context, _ string, p models.Participant, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("join")
	r.joins = append(r.joins, p.ID)
	return nil
}

func (r *recorder) LogLeave(_ context.Context, _, id string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("leave")
	r.leaves = append(r.leaves, id)
	return nil
}

func (r *recorder) CloseOpen(context.Context, string, time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("close_open")
	r.closed++
	return nil
}

func (r *recorder) Create(_ context.Context, rec *models.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("recording")
	r.recordings = append(r.recordings, rec)
	return nil
}

func (r *recorder) Append(_ context.Context, _ string, msg models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("chat")
	r.chat = append(r.chat, msg)
	return nil
}

func (r *recorder) EnqueueRecordingFinished(_ context.Context, p queue.RecordingFinishedPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("job:recording")
	r.recordJobs = append(r.recordJobs, p)
	return nil
}

func (r *recorder) EnqueueTranscriptExport(_ context.Context, p queue.TranscriptExportPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.note("job:transcript")
	r.exportJobs = append(r.exportJobs, p)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newArchiver(t *testing.T) (*Archiver, *realtime.Hub, *recorder) {
	t.Helper()
	hub := realtime.NewHub(nil, nil, nil, 0)
	rec := &recorder{}
	a := NewArchiver(hub, Stores{Sessions: rec, Attendance: rec, Recordings: rec, Transcripts: rec, Jobs: rec}, 0, nil)
	hub.SetObserverChangeHandler(a.ObserverChanged)
	t.Cleanup(func() {
		a.Close()
		hub.Close()
	})
	return a, hub, rec
}

func TestArchiver_PersistsSessionLifecycle(t *testing.T) {
	a, hub, rec := newArchiver(t)
	now := time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)
	session := models.Session{ID: "s1", CourseCode: "CS101", Title: "Intro", HostID: "m1", Status: models.SessionStatusScheduled}
	a.Watch(session)
	require.True(t, a.Watching("s1"))

	host := models.Participant{ID: "m1", Role: models.RoleModerator}
	msg := models.ChatMessage{Sequence: 1, AuthorID: "m1", Text: "welcome"}
	meta := models.RecordingMetadata{SessionID: "s1", StartedAt: now, EndedAt: now.Add(time.Minute)}
	hub.Publish("s1", []models.Event{
		{Kind: models.EventParticipantJoined, SessionID: "s1", Participant: &host, At: now},
		{Kind: models.EventSessionStarted, SessionID: "s1", At: now},
		{Kind: models.EventChatAppended, SessionID: "s1", Message: &msg, At: now},
		{Kind: models.EventReactionEmitted, SessionID: "s1", At: now},
	})
	hub.Publish("s1", []models.Event{
		{Kind: models.EventParticipantLeft, SessionID: "s1", Participant: &host, At: now},
		{Kind: models.EventRecordingFinished, SessionID: "s1", Recording: &meta, At: now},
		{Kind: models.EventSessionEnded, SessionID: "s1", At: now},
	})

	require.Eventually(t, func() bool { return !a.Watching("s1") }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{
		"upsert", "join", "status:live", "chat", "leave",
		"recording", "job:recording", "close_open", "status:ended", "job:transcript",
	}, rec.snapshot())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.recordings, 1)
	require.EqualValues(t, 60, rec.recordings[0].DurationSeconds)
	require.Equal(t, models.RecordingStatusPending, rec.recordings[0].Status)
	require.Equal(t, rec.recordings[0].ID, rec.recordJobs[0].RecordingID)
	require.Equal(t, "s1", rec.exportJobs[0].SessionID)
	require.Zero(t, hub.ObserverCount("s1"))
}

func TestArchiver_PeakObserversExcludeItself(t *testing.T) {
	a, hub, rec := newArchiver(t)
	a.Watch(models.Session{ID: "s1", CourseCode: "CS101", Title: "Intro", HostID: "m1"})

	sub1 := hub.Subscribe("s1", "o1", 0)
	sub2 := hub.Subscribe("s1", "o2", 0)
	sub1.Close()
	sub2.Close()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.peaks) == 3
	}, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.ElementsMatch(t, []int{1, 2, 1}, rec.peaks)
}

func TestArchiver_WatchTwiceSubscribesOnce(t *testing.T) {
	a, hub, _ := newArchiver(t)
	s := models.Session{ID: "s1", CourseCode: "CS101", Title: "Intro", HostID: "m1"}
	a.Watch(s)
	a.Watch(s)
	require.Equal(t, 1, hub.ObserverCount("s1"))
}

func TestArchiver_CloseStopsFollowing(t *testing.T) {
	hub := realtime.NewHub(nil, nil, nil, 0)
	defer hub.Close()
	rec := &recorder{}
	a := NewArchiver(hub, Stores{Sessions: rec, Attendance: rec, Recordings: rec, Transcripts: rec, Jobs: rec}, 0, nil)
	a.Watch(models.Session{ID: "s1"})
	a.Close()
	require.Zero(t, hub.ObserverCount("s1"))

	a.Watch(models.Session{ID: "s2"})
	require.Zero(t, hub.ObserverCount("s2"))
}
