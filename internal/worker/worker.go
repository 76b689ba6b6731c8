// Package worker processes background jobs queued by the archiver.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
	"github.com/aura-webinar/coordinator/pkg/queue"
	"github.com/aura-webinar/coordinator/pkg/storage"
)

// ErrNoUploader is returned for transcript jobs when the processor has no object storage.
var ErrNoUploader = errors.New("transcript uploader not configured")

// JobSource is the part of the queue the worker consumes.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// RecordingStore reads and finalizes recording rows.
type RecordingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// SessionStore reads sessions and records transcript keys.
type SessionStore interface {
	GetByID(ctx context.Context, id string) (*models.SessionRecord, error)
	SetTranscriptKey(ctx context.Context, id, key string) error
}

// ChatSource lists archived chat.
type ChatSource interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
}

// TranscriptUploader stores exported transcripts.
type TranscriptUploader interface {
	UploadTranscript(ctx context.Context, key string, body io.Reader, contentLength int64) (string, error)
}

// Transcript is the exported document.
type Transcript struct {
	SessionID  string               `json:"session_id"`
	CourseCode string               `json:"course_code"`
	Title      string               `json:"title"`
	HostID     string               `json:"host_id"`
	StartedAt  *time.Time           `json:"started_at,omitempty"`
	EndedAt    *time.Time           `json:"ended_at,omitempty"`
	Messages   []models.ChatMessage `json:"messages"`
	ExportedAt time.Time            `json:"exported_at"`
}

// Processor executes recording_finished and transcript_export jobs.
type Processor struct {
	jobs        JobSource
	recordings  RecordingStore
	sessions    SessionStore
	chat        ChatSource
	uploader    TranscriptUploader
	logger      *zap.Logger
	pollTimeout time.Duration
	backoff     time.Duration
}

// NewProcessor creates a job processor. uploader may be nil; the processor then only consumes
// recording jobs and leaves transcript exports queued for a worker with object storage.
func NewProcessor(jobs JobSource, recordings RecordingStore, sessions SessionStore, chat ChatSource, uploader TranscriptUploader, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		jobs:        jobs,
		recordings:  recordings,
		sessions:    sessions,
		chat:        chat,
		uploader:    uploader,
		logger:      logger,
		pollTimeout: 5 * time.Second,
		backoff:     queue.RetryBackoff,
	}
}

// SetTiming overrides the dequeue poll timeout and the retry backoff.
func (p *Processor) SetTiming(pollTimeout, backoff time.Duration) {
	if pollTimeout > 0 {
		p.pollTimeout = pollTimeout
	}
	if backoff >= 0 {
		p.backoff = backoff
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeRecordingFinished:
		var payload queue.RecordingFinishedPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.finishRecording(ctx, payload)
	case queue.JobTypeTranscriptExport:
		var payload queue.TranscriptExportPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.exportTranscript(ctx, payload)
	default:
		return fmt.Errorf("%w: %s", queue.ErrUnknownJobType, job.Type)
	}
}

// finishRecording marks the recording completed once its metadata is consistent, failed otherwise.
func (p *Processor) finishRecording(ctx context.Context, payload queue.RecordingFinishedPayload) error {
	rec, err := p.recordings.GetByID(ctx, payload.RecordingID)
	if err != nil {
		return fmt.Errorf("get recording: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("recording not found: %s", payload.RecordingID)
	}
	if rec.Status != models.RecordingStatusPending {
		p.logger.Info("recording already finalized", zap.String("recording_id", rec.ID.String()), zap.String("status", rec.Status))
		return nil
	}
	status := models.RecordingStatusCompleted
	if !rec.EndedAt.After(rec.StartedAt) {
		status = models.RecordingStatusFailed
	}
	if err := p.recordings.UpdateStatus(ctx, rec.ID, status); err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	p.logger.Info("recording finalized",
		zap.String("recording_id", rec.ID.String()),
		zap.String("session_id", rec.SessionID),
		zap.String("status", status),
		zap.Int64("duration_seconds", rec.DurationSeconds),
	)
	return nil
}

// exportTranscript uploads the session's chat as JSON and records its key.
func (p *Processor) exportTranscript(ctx context.Context, payload queue.TranscriptExportPayload) error {
	if p.uploader == nil {
		return ErrNoUploader
	}
	session, err := p.sessions.GetByID(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session not found: %s", payload.SessionID)
	}
	if session.TranscriptKey != "" {
		p.logger.Info("transcript already exported", zap.String("session_id", session.ID), zap.String("key", session.TranscriptKey))
		return nil
	}
	msgs, err := p.chat.ListBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("list chat: %w", err)
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	body, err := json.Marshal(Transcript{
		SessionID:  session.ID,
		CourseCode: session.CourseCode,
		Title:      session.Title,
		HostID:     session.HostID,
		StartedAt:  session.StartedAt,
		EndedAt:    session.EndedAt,
		Messages:   msgs,
		ExportedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	key := storage.TranscriptKey(session.ID, session.CourseCode)
	if _, err := p.uploader.UploadTranscript(ctx, key, bytes.NewReader(body), int64(len(body))); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.sessions.SetTranscriptKey(ctx, session.ID, key); err != nil {
		p.logger.Error("set transcript key failed", zap.Error(err), zap.String("session_id", session.ID))
		return fmt.Errorf("update db: %w", err)
	}
	p.logger.Info("transcript exported", zap.String("session_id", session.ID), zap.String("s3_key", key), zap.Int("messages", len(msgs)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx, p.pollTimeout, p.queues()...)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

// queues lists the queues this processor can serve.
func (p *Processor) queues() []string {
	if p.uploader == nil {
		return []string{queue.QueueRecordings}
	}
	return []string{queue.QueueRecordings, queue.QueueTranscripts}
}

func (p *Processor) sleep(ctx context.Context) {
	if p.backoff <= 0 {
		return
	}
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
