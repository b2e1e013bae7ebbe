package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// UpsertPlatform writes the tenant's platform subscription, keyed by
	// tenant_id. Redelivered creation events overwrite rather than insert.
	UpsertPlatform(ctx context.Context, db *gorm.DB, sub *PlatformSubscription) error

	// UpsertMember writes a member subscription, keyed by (tenant_id, user_id).
	UpsertMember(ctx context.Context, db *gorm.DB, sub *MemberSubscription) error

	// CancelPlatform marks the tenant's subscription canceled. Missing or
	// already-canceled rows are a no-op.
	CancelPlatform(ctx context.Context, db *gorm.DB, tenantID string, canceledAt time.Time) error

	// CancelMember is CancelPlatform for a member subscription.
	CancelMember(ctx context.Context, db *gorm.DB, tenantID, userID string, canceledAt time.Time) error

	FindPlatformByTenant(ctx context.Context, db *gorm.DB, tenantID string) (*PlatformSubscription, error)
	FindMember(ctx context.Context, db *gorm.DB, tenantID, userID string) (*MemberSubscription, error)

	// FindByExternalID looks a subscription up by its provider-side id,
	// checking platform rows first, then member rows.
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*Ref, error)
}
