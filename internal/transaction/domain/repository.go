package domain

import (
	"context"

	"github.com/smallbiznis/communa/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfNew records the transaction unless one already exists for
	// the same event id. Returns true when this call inserted the row.
	InsertIfNew(ctx context.Context, db *gorm.DB, txn *PaymentTransaction) (bool, error)

	// AttachPaymentIntent sets the external payment intent id on an
	// existing row, only if none was recorded yet.
	AttachPaymentIntent(ctx context.Context, db *gorm.DB, eventID, paymentIntentID string) error

	FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*PaymentTransaction, error)

	List(ctx context.Context, db *gorm.DB, tenantID, scope string, page pagination.Params) ([]PaymentTransaction, int64, error)
}
