package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTranscriptKey(t *testing.T) {
	require.Equal(t, "transcripts/s1/CS101.json", TranscriptKey("s1", "CS101"))
	require.Equal(t, "transcripts/s1/passwd.json", TranscriptKey("s1", "../../etc/passwd"))
	require.Equal(t, "transcripts/s1/transcript.json", TranscriptKey("s1", ""))
}

func TestPresignExpire(t *testing.T) {
	require.Equal(t, 15*time.Minute, (&S3{}).PresignExpire())
	require.Equal(t, 5*time.Minute, (&S3{cfg: S3Config{PresignExpireMinutes: 5}}).PresignExpire())
}
