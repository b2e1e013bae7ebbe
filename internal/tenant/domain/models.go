package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tenant is the local projection of a platform tenant. It only tracks
// what billing needs: whether payout onboarding has completed.
type Tenant struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID            string       `gorm:"uniqueIndex;not null" json:"tenant_id"`
	OnboardingCompleted bool         `gorm:"not null;default:false" json:"onboarding_completed"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}
