package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueRecordings is the Redis list key for finished-recording jobs.
	QueueRecordings = "worker:recordings"
	// QueueTranscripts is the Redis list key for transcript export jobs.
	QueueTranscripts = "worker:transcripts"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeRecordingFinished JobType = "recording_finished"
	JobTypeTranscriptExport  JobType = "transcript_export"
)

// ErrUnknownJobType is returned when a job type has no queue.
var ErrUnknownJobType = errors.New("unknown job type")

// RecordingFinishedPayload is handed to the recording pipeline when a session recording stops.
type RecordingFinishedPayload struct {
	RecordingID uuid.UUID `json:"recording_id"`
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// TranscriptExportPayload asks the worker to export a session's chat to S3.
type TranscriptExportPayload struct {
	SessionID string `json:"session_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// KeyFor returns the list key a job type is pushed to.
func KeyFor(t JobType) (string, error) {
	switch t {
	case JobTypeRecordingFinished:
		return QueueRecordings, nil
	case JobTypeTranscriptExport:
		return QueueTranscripts, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownJobType, t)
	}
}

// NewJob wraps payload in a fresh envelope.
func NewJob(t JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client     *redis.Client
	logger     *zap.Logger
	maxRetries int
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger, maxRetries: MaxRetries}
}

// SetMaxRetries overrides MaxRetries.
func (q *Queue) SetMaxRetries(n int) {
	if n > 0 {
		q.maxRetries = n
	}
}

// EnqueueRecordingFinished enqueues a finished-recording job.
func (q *Queue) EnqueueRecordingFinished(ctx context.Context, payload RecordingFinishedPayload) error {
	job, err := NewJob(JobTypeRecordingFinished, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued recording finished job", zap.String("job_id", job.ID), zap.String("recording_id", payload.RecordingID.String()))
	return nil
}

// EnqueueTranscriptExport enqueues a transcript export job.
func (q *Queue) EnqueueTranscriptExport(ctx context.Context, payload TranscriptExportPayload) error {
	job, err := NewJob(JobTypeTranscriptExport, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued transcript export job", zap.String("job_id", job.ID), zap.String("session_id", payload.SessionID))
	return nil
}

func (q *Queue) push(ctx context.Context, job *Job) error {
	key, err := KeyFor(job.Type)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for a job on any of keys. Returns job and key (queue name);
// a nil job with nil error means nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration, keys ...string) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= max retries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= q.maxRetries {
		raw, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
