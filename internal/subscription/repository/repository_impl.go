package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/communa/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) UpsertPlatform(ctx context.Context, db *gorm.DB, sub *domain.PlatformSubscription) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(`
		INSERT INTO platform_subscriptions (
			id, tenant_id, external_subscription_id, external_customer_id,
			plan_id, plan_name, status, amount, currency, billing_interval,
			current_period_start, current_period_end, trial_start, trial_end,
			cancel_at_period_end, canceled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			external_subscription_id = excluded.external_subscription_id,
			external_customer_id = excluded.external_customer_id,
			plan_id = excluded.plan_id,
			plan_name = excluded.plan_name,
			status = excluded.status,
			amount = excluded.amount,
			currency = excluded.currency,
			billing_interval = excluded.billing_interval,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			trial_start = excluded.trial_start,
			trial_end = excluded.trial_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			canceled_at = excluded.canceled_at,
			updated_at = excluded.updated_at
	`, sub.ID, sub.TenantID, sub.ExternalSubscriptionID, sub.ExternalCustomerID,
		sub.PlanID, sub.PlanName, sub.Status, sub.Amount, sub.Currency, sub.Interval,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialStart, sub.TrialEnd,
		sub.CancelAtPeriodEnd, sub.CanceledAt, now, now).Error
}

func (r *repo) UpsertMember(ctx context.Context, db *gorm.DB, sub *domain.MemberSubscription) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(`
		INSERT INTO member_subscriptions (
			id, tenant_id, user_id, external_subscription_id, external_customer_id,
			plan_id, plan_name, status, amount, currency, billing_interval,
			current_period_start, current_period_end, trial_start, trial_end,
			cancel_at_period_end, canceled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			external_subscription_id = excluded.external_subscription_id,
			external_customer_id = excluded.external_customer_id,
			plan_id = excluded.plan_id,
			plan_name = excluded.plan_name,
			status = excluded.status,
			amount = excluded.amount,
			currency = excluded.currency,
			billing_interval = excluded.billing_interval,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			trial_start = excluded.trial_start,
			trial_end = excluded.trial_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			canceled_at = excluded.canceled_at,
			updated_at = excluded.updated_at
	`, sub.ID, sub.TenantID, sub.UserID, sub.ExternalSubscriptionID, sub.ExternalCustomerID,
		sub.PlanID, sub.PlanName, sub.Status, sub.Amount, sub.Currency, sub.Interval,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialStart, sub.TrialEnd,
		sub.CancelAtPeriodEnd, sub.CanceledAt, now, now).Error
}

func (r *repo) CancelPlatform(ctx context.Context, db *gorm.DB, tenantID string, canceledAt time.Time) error {
	return db.WithContext(ctx).Exec(`
		UPDATE platform_subscriptions
		SET status = ?, canceled_at = ?, updated_at = ?
		WHERE tenant_id = ? AND status <> ?
	`, domain.StatusCanceled, canceledAt, time.Now().UTC(), tenantID, domain.StatusCanceled).Error
}

func (r *repo) CancelMember(ctx context.Context, db *gorm.DB, tenantID, userID string, canceledAt time.Time) error {
	return db.WithContext(ctx).Exec(`
		UPDATE member_subscriptions
		SET status = ?, canceled_at = ?, updated_at = ?
		WHERE tenant_id = ? AND user_id = ? AND status <> ?
	`, domain.StatusCanceled, canceledAt, time.Now().UTC(), tenantID, userID, domain.StatusCanceled).Error
}

func (r *repo) FindPlatformByTenant(ctx context.Context, db *gorm.DB, tenantID string) (*domain.PlatformSubscription, error) {
	var sub domain.PlatformSubscription
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindMember(ctx context.Context, db *gorm.DB, tenantID, userID string) (*domain.MemberSubscription, error) {
	var sub domain.MemberSubscription
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Ref, error) {
	var platform domain.PlatformSubscription
	err := db.WithContext(ctx).
		Where("external_subscription_id = ?", externalID).
		First(&platform).Error
	if err == nil {
		return &domain.Ref{
			ID:                     platform.ID,
			Scope:                  domain.ScopePlatform,
			TenantID:               platform.TenantID,
			ExternalSubscriptionID: platform.ExternalSubscriptionID,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var member domain.MemberSubscription
	err = db.WithContext(ctx).
		Where("external_subscription_id = ?", externalID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Ref{
		ID:                     member.ID,
		Scope:                  domain.ScopeMember,
		TenantID:               member.TenantID,
		UserID:                 member.UserID,
		ExternalSubscriptionID: member.ExternalSubscriptionID,
	}, nil
}
