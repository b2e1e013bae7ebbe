package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/communa/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/communa/internal/subscription/domain"
	"github.com/smallbiznis/communa/internal/transaction/domain"
	webhookdomain "github.com/smallbiznis/communa/internal/webhook/domain"
	"github.com/smallbiznis/communa/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubscriptionResolver maps a provider-side subscription id to the
// local subscription it belongs to.
type SubscriptionResolver interface {
	ResolveByExternalID(ctx context.Context, externalID string) (*subscriptiondomain.Ref, error)
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	Subscriptions SubscriptionResolver
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	subscriptions SubscriptionResolver
	metrics       *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("transaction.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		subscriptions: p.Subscriptions,
		metrics:       p.Metrics,
	}
}

// RecordFromEvent writes the payment transaction for an invoice event.
// The event id doubles as the idempotency key: redeliveries never
// produce a second row, though they may attach a payment intent id the
// first delivery lacked.
func (s *Service) RecordFromEvent(ctx context.Context, eventID, eventType string, object []byte) error {
	var invoice domain.InvoiceObject
	if err := json.Unmarshal(object, &invoice); err != nil {
		return webhookdomain.Permanent(fmt.Errorf("%w: %v", webhookdomain.ErrInvalidPayload, err))
	}
	if invoice.Subscription == "" {
		s.log.Warn("invoice event missing subscription reference", zap.String("event_id", eventID))
		return webhookdomain.Permanent(webhookdomain.ErrMissingMetadata)
	}

	ref, err := s.subscriptions.ResolveByExternalID(ctx, invoice.Subscription)
	if err != nil {
		return err
	}
	if ref == nil {
		// Invoices can outrun the subscription events that define them.
		// Leave the ledger entry unprocessed and let the sweep retry.
		return fmt.Errorf("%w: %s", domain.ErrSubscriptionNotFound, invoice.Subscription)
	}

	status := domain.StatusSucceeded
	amount := invoice.AmountPaid
	var failureReason *string
	if eventType == webhookdomain.EventInvoicePaymentFailed {
		status = domain.StatusFailed
		amount = invoice.AmountDue
		if invoice.FailureMessage != "" {
			msg := invoice.FailureMessage
			failureReason = &msg
		}
	}

	var paymentIntent *string
	if invoice.PaymentIntent != "" {
		pi := invoice.PaymentIntent
		paymentIntent = &pi
	}

	metadata := datatypes.JSONMap{"invoice_id": invoice.ID}

	txn := &domain.PaymentTransaction{
		ID:                      s.genID.Generate(),
		TenantID:                ref.TenantID,
		SubscriptionID:          ref.ID,
		SubscriptionScope:       ref.Scope,
		EventID:                 eventID,
		ExternalPaymentIntentID: paymentIntent,
		TransactionType:         domain.TypePayment,
		Amount:                  amount,
		Currency:                invoice.Currency,
		Status:                  status,
		FailureReason:           failureReason,
		ProcessedAt:             time.Now().UTC(),
		Metadata:                metadata,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertIfNew(ctx, tx, txn)
		if err != nil {
			return err
		}
		if !inserted && invoice.PaymentIntent != "" {
			return s.repo.AttachPaymentIntent(ctx, tx, eventID, invoice.PaymentIntent)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordTransaction(ctx, status)
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, tenantID, scope string, page pagination.Params) ([]domain.PaymentTransaction, int64, error) {
	return s.repo.List(ctx, s.db, tenantID, scope, page.Normalize())
}
