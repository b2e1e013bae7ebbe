package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByTenantID(ctx context.Context, db *gorm.DB, tenantID string) (*Tenant, error)
	// MarkOnboardingCompleted flips the onboarding flag to true. The flag is
	// one-way: once set it never reverts, even if a later account event
	// reports the account as restricted again.
	MarkOnboardingCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, tenantID string) error
}
