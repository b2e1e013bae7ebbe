package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfNew records the event unless a row with the same event id
	// already exists. Returns true when this call inserted the row.
	InsertIfNew(ctx context.Context, db *gorm.DB, event *Event) (bool, error)

	FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*Event, error)

	// MarkProcessed sets the processed flag and timestamp. The update is
	// guarded so processed_at is written at most once.
	MarkProcessed(ctx context.Context, db *gorm.DB, eventID string, processedAt time.Time) error

	// RecordFailure increments the attempt counter and overwrites the last
	// error message for the event.
	RecordFailure(ctx context.Context, db *gorm.DB, eventID string, lastError string) error

	// ListUnprocessed returns unprocessed events received before olderThan
	// with fewer than maxAttempts recorded failures, oldest first.
	ListUnprocessed(ctx context.Context, db *gorm.DB, olderThan time.Time, maxAttempts, limit int) ([]Event, error)
}
