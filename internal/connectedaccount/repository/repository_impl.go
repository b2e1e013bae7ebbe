package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/communa/internal/connectedaccount/domain"
	"gorm.io/gorm"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, account *domain.ConnectedAccount) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(`
		INSERT INTO connected_accounts (
			id, tenant_id, external_account_id, verification_status,
			charges_enabled, payouts_enabled, requirements, capabilities,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			external_account_id = excluded.external_account_id,
			verification_status = excluded.verification_status,
			charges_enabled = excluded.charges_enabled,
			payouts_enabled = excluded.payouts_enabled,
			requirements = excluded.requirements,
			capabilities = excluded.capabilities,
			updated_at = excluded.updated_at
	`, account.ID, account.TenantID, account.ExternalAccountID, account.VerificationStatus,
		account.ChargesEnabled, account.PayoutsEnabled, account.Requirements, account.Capabilities,
		now, now).Error
}

func (r *repo) FindByTenant(ctx context.Context, db *gorm.DB, tenantID string) (*domain.ConnectedAccount, error) {
	var account domain.ConnectedAccount
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
