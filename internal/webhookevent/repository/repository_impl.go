package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/communa/internal/webhookevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfNew(ctx context.Context, db *gorm.DB, event *domain.Event) (bool, error) {
	res := db.WithContext(ctx).Exec(`
		INSERT INTO webhook_events (
			id, event_id, event_type, schema_version, payload,
			processed, processed_at, attempt_count, last_error, received_at
		) VALUES (?, ?, ?, ?, ?, FALSE, NULL, 0, NULL, ?)
		ON CONFLICT (event_id) DO NOTHING
	`, event.ID, event.EventID, event.EventType, event.SchemaVersion, event.Payload, event.ReceivedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*domain.Event, error) {
	var event domain.Event
	err := db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, eventID string, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(`
		UPDATE webhook_events
		SET processed = TRUE, processed_at = ?
		WHERE event_id = ? AND processed = FALSE
	`, processedAt, eventID).Error
}

func (r *repo) RecordFailure(ctx context.Context, db *gorm.DB, eventID string, lastError string) error {
	return db.WithContext(ctx).Exec(`
		UPDATE webhook_events
		SET attempt_count = attempt_count + 1, last_error = ?
		WHERE event_id = ?
	`, lastError, eventID).Error
}

func (r *repo) ListUnprocessed(ctx context.Context, db *gorm.DB, olderThan time.Time, maxAttempts, limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := db.WithContext(ctx).
		Where("processed = FALSE AND received_at < ? AND attempt_count < ?", olderThan, maxAttempts).
		Order("received_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
