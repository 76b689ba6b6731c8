// Package chat is the append-only, session-scoped message log.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aura-webinar/coordinator/internal/models"
)

// DefaultMaxLength is the maximum message length in characters.
const DefaultMaxLength = 2000

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message too long")
)

// Log assigns gap-free sequence numbers starting at 1. Safe for concurrent use.
type Log struct {
	mu        sync.RWMutex
	maxLength int
	messages  []models.ChatMessage
}

// NewLog creates an empty log. maxLength <= 0 uses DefaultMaxLength.
func NewLog(maxLength int) *Log {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Log{maxLength: maxLength}
}

// Validate checks text without appending it.
func (l *Log) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrInvalidMessage
	}
	if n := utf8.RuneCountInString(text); n > l.maxLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrMessageTooLong, n, l.maxLength)
	}
	return nil
}

// Append validates and stores a message, assigning the next sequence number.
func (l *Log) Append(authorID string, authorRole models.Role, text string, now time.Time) (models.ChatMessage, error) {
	if err := l.Validate(text); err != nil {
		return models.ChatMessage{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := models.ChatMessage{
		Sequence:   uint64(len(l.messages)) + 1,
		AuthorID:   authorID,
		AuthorRole: authorRole,
		Text:       text,
		InsertedAt: now,
	}
	l.messages = append(l.messages, msg)
	return msg, nil
}

// Since returns messages with Sequence > seq in ascending order.
func (l *Log) Since(seq uint64) []models.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	// Sequence n lives at index n-1.
	if seq >= uint64(len(l.messages)) {
		return []models.ChatMessage{}
	}
	out := make([]models.ChatMessage, len(l.messages)-int(seq))
	copy(out, l.messages[seq:])
	return out
}

// Recent returns at most n of the latest messages in ascending order.
func (l *Log) Recent(n int) []models.ChatMessage {
	l.mu.RLock()
	total := len(l.messages)
	l.mu.RUnlock()
	if n <= 0 || n >= total {
		return l.Since(0)
	}
	return l.Since(uint64(total - n))
}

// LastSequence returns the sequence of the newest message, 0 when empty.
func (l *Log) LastSequence() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.messages))
}

// Len returns the number of messages.
func (l *Log) Len() int { return int(l.LastSequence()) }
