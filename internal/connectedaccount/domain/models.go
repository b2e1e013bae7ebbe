package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusPending    = "pending"
	StatusVerified   = "verified"
	StatusRestricted = "restricted"
	StatusRejected   = "rejected"
)

// ConnectedAccount mirrors the payout account the provider holds for a
// tenant. Status is derived locally from the event payload, never taken
// verbatim from the provider.
type ConnectedAccount struct {
	ID                 snowflake.ID   `gorm:"primaryKey" json:"id"`
	TenantID           string         `gorm:"uniqueIndex;not null" json:"tenant_id"`
	ExternalAccountID  string         `gorm:"not null" json:"external_account_id"`
	VerificationStatus string         `gorm:"not null" json:"verification_status"`
	ChargesEnabled     bool           `json:"charges_enabled"`
	PayoutsEnabled     bool           `json:"payouts_enabled"`
	Requirements       datatypes.JSON `json:"requirements,omitempty"`
	Capabilities       datatypes.JSON `json:"capabilities,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (ConnectedAccount) TableName() string {
	return "connected_accounts"
}

// Requirements lists outstanding verification items grouped by urgency.
type Requirements struct {
	CurrentlyDue  []string `json:"currently_due"`
	EventuallyDue []string `json:"eventually_due"`
	PastDue       []string `json:"past_due"`
}

func (r Requirements) Outstanding() bool {
	return len(r.CurrentlyDue) > 0 || len(r.PastDue) > 0
}

// AccountObject is the wire shape of an account event's data.object.
type AccountObject struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	ChargesEnabled bool              `json:"charges_enabled"`
	PayoutsEnabled bool              `json:"payouts_enabled"`
	Requirements   Requirements      `json:"requirements"`
	Capabilities   map[string]string `json:"capabilities"`
	Metadata       map[string]string `json:"metadata"`
}

func (o AccountObject) ResolveTenantID() string {
	if o.TenantID != "" {
		return o.TenantID
	}
	return o.Metadata["tenant_id"]
}

// DeriveStatus computes the account's verification status from the
// capability flags and outstanding requirements.
func DeriveStatus(chargesEnabled, payoutsEnabled bool, reqs Requirements) string {
	switch {
	case !chargesEnabled || !payoutsEnabled:
		return StatusPending
	case reqs.Outstanding():
		return StatusRestricted
	default:
		return StatusVerified
	}
}
