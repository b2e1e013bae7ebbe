package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/communa/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) FindByTenantID(ctx context.Context, db *gorm.DB, tenantID string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) MarkOnboardingCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, tenantID string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(`
		INSERT INTO tenants (id, tenant_id, onboarding_completed, created_at, updated_at)
		VALUES (?, ?, TRUE, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			onboarding_completed = TRUE,
			updated_at = excluded.updated_at
	`, id, tenantID, now, now).Error
}
