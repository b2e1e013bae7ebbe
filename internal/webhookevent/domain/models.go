package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var ErrEventNotFound = errors.New("webhook event not found")

// Event is one row of the append-only webhook ledger. Every delivery is
// recorded exactly once, keyed by the provider's event id.
type Event struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	EventID       string         `gorm:"uniqueIndex;not null" json:"event_id"`
	EventType     string         `gorm:"not null" json:"event_type"`
	SchemaVersion string         `json:"schema_version"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	Processed     bool           `gorm:"not null;default:false" json:"processed"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
	AttemptCount  int            `gorm:"not null;default:0" json:"attempt_count"`
	LastError     *string        `json:"last_error,omitempty"`
	ReceivedAt    time.Time      `gorm:"not null" json:"received_at"`
}

func (Event) TableName() string {
	return "webhook_events"
}
