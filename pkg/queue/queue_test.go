package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	key, err := KeyFor(JobTypeRecordingFinished)
	require.NoError(t, err)
	require.Equal(t, QueueRecordings, key)

	key, err = KeyFor(JobTypeTranscriptExport)
	require.NoError(t, err)
	require.Equal(t, QueueTranscripts, key)

	_, err = KeyFor("email")
	require.ErrorIs(t, err, ErrUnknownJobType)
}

func TestNewJob(t *testing.T) {
	job, err := NewJob(JobTypeTranscriptExport, TranscriptExportPayload{SessionID: "s1"})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.Zero(t, job.Attempt)

	var p TranscriptExportPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	require.Equal(t, "s1", p.SessionID)
}
