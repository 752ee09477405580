package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"liquidityGuard/internal/model"
)

// Journal is a sink for transactions sent by this client.
type Journal interface {
	Record(ctx context.Context, entries ...model.JournalEntry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]model.JournalEntry, error)
	Close() error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, ...model.JournalEntry) error { return nil }

func (Nop) Recent(context.Context, int) ([]model.JournalEntry, error) { return nil, nil }

func (Nop) Close() error { return nil }

// OrNop returns j, or Nop when j is nil.
func OrNop(j Journal) Journal {
	if j == nil {
		return Nop{}
	}
	return j
}

// Multi fans entries out to every journal; reads use the first.
type Multi []Journal

func (m Multi) Record(ctx context.Context, entries ...model.JournalEntry) error {
	var firstErr error
	for _, j := range m {
		if err := j.Record(ctx, entries...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) Recent(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].Recent(ctx, limit)
}

func (m Multi) Close() error {
	var firstErr error
	for _, j := range m {
		if err := j.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Note stamps and records entry. Failures are logged, never returned:
// a flow must not fail because its audit trail could not be written.
func Note(ctx context.Context, j Journal, logger *zap.Logger, entry model.JournalEntry) {
	if j == nil {
		return
	}
	if entry.RecordedAt == "" {
		entry.RecordedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if err := j.Record(ctx, entry); err != nil && logger != nil {
		logger.Warn("journal write failed",
			zap.String("kind", string(entry.Kind)),
			zap.String("tx", entry.TxHash),
			zap.Error(err),
		)
	}
}
