package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ErrSubscriptionNotFound means the invoice referenced a subscription
// the store has not reconciled yet. Retryable: subscription events may
// arrive after their invoices.
var ErrSubscriptionNotFound = errors.New("subscription not found for invoice")

const (
	TypePayment = "payment"
	TypeRefund  = "refund"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// PaymentTransaction is an immutable record of a payment outcome. The
// only permitted mutation is attaching a payment intent id that arrived
// after the row was written.
type PaymentTransaction struct {
	ID                      snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID                string            `gorm:"not null;index" json:"tenant_id"`
	SubscriptionID          snowflake.ID      `gorm:"not null" json:"subscription_id"`
	SubscriptionScope       string            `gorm:"not null" json:"subscription_scope"`
	EventID                 string            `gorm:"uniqueIndex;not null" json:"event_id"`
	ExternalPaymentIntentID *string           `json:"external_payment_intent_id,omitempty"`
	TransactionType         string            `gorm:"not null" json:"transaction_type"`
	Amount                  int64             `gorm:"not null" json:"amount"`
	Currency                string            `gorm:"not null" json:"currency"`
	Status                  string            `gorm:"not null" json:"status"`
	FailureReason           *string           `json:"failure_reason,omitempty"`
	ProcessedAt             time.Time         `gorm:"not null" json:"processed_at"`
	Metadata                datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// InvoiceObject is the wire shape of an invoice event's data.object.
type InvoiceObject struct {
	ID             string            `json:"id"`
	Subscription   string            `json:"subscription"`
	PaymentIntent  string            `json:"payment_intent"`
	AmountPaid     int64             `json:"amount_paid"`
	AmountDue      int64             `json:"amount_due"`
	Currency       string            `json:"currency"`
	FailureMessage string            `json:"failure_message"`
	Metadata       map[string]string `json:"metadata"`
}
