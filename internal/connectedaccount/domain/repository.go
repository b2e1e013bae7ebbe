package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// Upsert writes the account snapshot, keyed by tenant_id.
	Upsert(ctx context.Context, db *gorm.DB, account *ConnectedAccount) error

	FindByTenant(ctx context.Context, db *gorm.DB, tenantID string) (*ConnectedAccount, error)
}
