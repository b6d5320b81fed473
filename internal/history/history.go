// Package history keeps a local log of text generations.
//
// Records are keyed by ksuids, which sort by creation time, so listing a
// log walks it oldest first.
package history

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/picatz/miktos"
	"github.com/picatz/miktos/internal/history/storage"
	"github.com/segmentio/ksuid"
)

// Record is one generation: the conversation that was sent and the text
// that came back.
type Record struct {
	ProjectID string           `json:"project_id"`
	Model     string           `json:"model"`
	Messages  []miktos.Message `json:"messages"`
	Response  string           `json:"response"`
	Streamed  bool             `json:"streamed,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Prompt returns the content of the last user message, if any.
func (r Record) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == miktos.ChatRoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Log is an append-only view over a storage backend.
type Log struct {
	backend storage.Backend[string, Record]
	now     func() time.Time
}

// NewLog returns a Log writing to backend.
func NewLog(backend storage.Backend[string, Record]) *Log {
	return &Log{backend: backend, now: time.Now}
}

// Append stores rec and returns its id. A zero CreatedAt is set to now.
func (l *Log) Append(ctx context.Context, rec Record) (string, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}

	id, err := ksuid.NewRandomWithTime(rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to generate history id: %w", err)
	}

	if err := l.backend.Set(ctx, id.String(), rec); err != nil {
		return "", fmt.Errorf("failed to append history record: %w", err)
	}
	return id.String(), nil
}

// Get returns the record with the given id.
func (l *Log) Get(ctx context.Context, id string) (Record, bool, error) {
	return l.backend.Get(ctx, id)
}

// List returns a page of records, oldest first. Pass the returned token to
// fetch the next page; it is nil on the last page.
func (l *Log) List(ctx context.Context, pageSize int, pageToken *string) (iter.Seq2[string, Record], *string, error) {
	return l.backend.List(ctx, storage.PageSize(pageSize), pageToken)
}

// Clear deletes every record and returns how many were removed.
func (l *Log) Clear(ctx context.Context) (int, error) {
	var (
		perPage = storage.DefaultListPageSize
		deleted int
	)

	for {
		// Deleted keys are gone, so every pass starts from the beginning.
		entries, next, err := l.backend.List(ctx, storage.PageSize(perPage), nil)
		if err != nil {
			return deleted, fmt.Errorf("failed to list history records: %w", err)
		}

		var n int
		for key := range entries {
			if err := l.backend.Delete(ctx, key); err != nil {
				return deleted, fmt.Errorf("failed to delete history record %s: %w", key, err)
			}
			n++
		}
		deleted += n

		if next == nil || n == 0 {
			break
		}
	}

	if err := l.backend.Flush(ctx); err != nil {
		return deleted, fmt.Errorf("failed to flush history: %w", err)
	}
	return deleted, nil
}

// Flush persists buffered writes.
func (l *Log) Flush(ctx context.Context) error {
	return l.backend.Flush(ctx)
}

// Close closes the underlying backend.
func (l *Log) Close(ctx context.Context) error {
	return l.backend.Close(ctx)
}
