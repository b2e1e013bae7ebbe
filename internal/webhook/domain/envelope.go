package domain

import (
	"encoding/json"
	"strings"
)

// Canonical event types the router subscribes to. Anything else is
// acknowledged and marked processed without side effects.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "subscription.created"
	EventSubscriptionUpdated      = "subscription.updated"
	EventSubscriptionDeleted      = "subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventAccountUpdated           = "account.updated"
)

// NormalizeType maps provider-flavored type names onto the canonical
// set, e.g. "customer.subscription.created" -> "subscription.created".
func NormalizeType(eventType string) string {
	return strings.TrimPrefix(eventType, "customer.")
}

// Envelope is the outer wire shape of a webhook delivery.
type Envelope struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	APIVersion string       `json:"api_version"`
	Data       EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	Object json.RawMessage `json:"object"`
}

func (e Envelope) Valid() bool {
	return e.ID != "" && e.Type != "" && len(e.Data.Object) > 0
}
