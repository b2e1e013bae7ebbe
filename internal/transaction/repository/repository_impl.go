package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/communa/internal/transaction/domain"
	pkgdb "github.com/smallbiznis/communa/pkg/db"
	"github.com/smallbiznis/communa/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfNew(ctx context.Context, db *gorm.DB, txn *domain.PaymentTransaction) (bool, error) {
	res := db.WithContext(ctx).Exec(`
		INSERT INTO payment_transactions (
			id, tenant_id, subscription_id, subscription_scope, event_id,
			external_payment_intent_id, transaction_type, amount, currency,
			status, failure_reason, processed_at, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING
	`, txn.ID, txn.TenantID, txn.SubscriptionID, txn.SubscriptionScope, txn.EventID,
		txn.ExternalPaymentIntentID, txn.TransactionType, txn.Amount, txn.Currency,
		txn.Status, txn.FailureReason, txn.ProcessedAt, txn.Metadata, time.Now().UTC())
	if res.Error != nil {
		if pkgdb.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) AttachPaymentIntent(ctx context.Context, db *gorm.DB, eventID, paymentIntentID string) error {
	return db.WithContext(ctx).Exec(`
		UPDATE payment_transactions
		SET external_payment_intent_id = ?
		WHERE event_id = ? AND external_payment_intent_id IS NULL
	`, paymentIntentID, eventID).Error
}

func (r *repo) FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*domain.PaymentTransaction, error) {
	var txn domain.PaymentTransaction
	err := db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID, scope string, page pagination.Params) ([]domain.PaymentTransaction, int64, error) {
	query := db.WithContext(ctx).
		Model(&domain.PaymentTransaction{}).
		Where("tenant_id = ?", tenantID)
	if scope != "" {
		query = query.Where("subscription_scope = ?", scope)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.PaymentTransaction
	err := query.
		Order("processed_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
