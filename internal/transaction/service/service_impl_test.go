package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/communa/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/communa/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/communa/internal/subscription/service"
	"github.com/smallbiznis/communa/internal/transaction/domain"
	"github.com/smallbiznis/communa/internal/transaction/repository"
	"github.com/smallbiznis/communa/internal/transaction/service"
	webhookdomain "github.com/smallbiznis/communa/internal/webhook/domain"
	"github.com/smallbiznis/communa/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE platform_subscriptions (
			id BIGINT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			external_subscription_id TEXT NOT NULL,
			external_customer_id TEXT NOT NULL DEFAULT '',
			plan_id TEXT NOT NULL DEFAULT '',
			plan_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			billing_interval TEXT NOT NULL DEFAULT '',
			current_period_start TIMESTAMP,
			current_period_end TIMESTAMP,
			trial_start TIMESTAMP,
			trial_end TIMESTAMP,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			canceled_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_platform_subscriptions_tenant ON platform_subscriptions(tenant_id)`,
		`CREATE TABLE member_subscriptions (
			id BIGINT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			external_subscription_id TEXT NOT NULL,
			external_customer_id TEXT NOT NULL DEFAULT '',
			plan_id TEXT NOT NULL DEFAULT '',
			plan_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			billing_interval TEXT NOT NULL DEFAULT '',
			current_period_start TIMESTAMP,
			current_period_end TIMESTAMP,
			trial_start TIMESTAMP,
			trial_end TIMESTAMP,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			canceled_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_member_subscriptions_tenant_user ON member_subscriptions(tenant_id, user_id)`,
		`CREATE TABLE payment_transactions (
			id BIGINT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			subscription_id BIGINT NOT NULL,
			subscription_scope TEXT NOT NULL,
			event_id TEXT NOT NULL,
			external_payment_intent_id TEXT,
			transaction_type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			failure_reason TEXT,
			processed_at TIMESTAMP NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payment_transactions_event ON payment_transactions(event_id)`,
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema exec failed: %v", err)
		}
	}

	return db
}

func newServices(t *testing.T, db *gorm.DB) (*service.Service, *subscriptionservice.Service) {
	t.Helper()

	node, err := snowflake.NewNode(60)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	subscriptionSvc := subscriptionservice.New(subscriptionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  subscriptionrepo.NewRepository(),
	})
	transactionSvc := service.New(service.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          repository.NewRepository(),
		Subscriptions: subscriptionSvc,
	})
	return transactionSvc, subscriptionSvc
}

func seedSubscription(t *testing.T, svc *subscriptionservice.Service) {
	t.Helper()

	object := []byte(`{"id":"sub_1","tenant_id":"t1","scope":"platform","status":"active","amount":2900,"currency":"brl","interval":"month"}`)
	if err := svc.Reconcile(context.Background(), subscriptiondomain.ChangeCreated, object); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func TestRecordFromEventSucceeded(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	txnSvc, subSvc := newServices(t, db)
	seedSubscription(t, subSvc)

	object := []byte(`{"id":"in_1","subscription":"sub_1","payment_intent":"pi_1","amount_paid":2900,"currency":"brl"}`)
	if err := txnSvc.RecordFromEvent(ctx, "evt_1", webhookdomain.EventInvoicePaymentSucceeded, object); err != nil {
		t.Fatalf("record: %v", err)
	}

	items, total, err := txnSvc.ListTransactions(ctx, "t1", "", pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 transaction, got total=%d len=%d", total, len(items))
	}

	txn := items[0]
	if txn.Status != domain.StatusSucceeded || txn.Amount != 2900 {
		t.Fatalf("unexpected transaction: status=%s amount=%d", txn.Status, txn.Amount)
	}
	if txn.ExternalPaymentIntentID == nil || *txn.ExternalPaymentIntentID != "pi_1" {
		t.Fatalf("expected payment intent pi_1, got %v", txn.ExternalPaymentIntentID)
	}
	if txn.SubscriptionScope != subscriptiondomain.ScopePlatform {
		t.Fatalf("expected platform scope, got %s", txn.SubscriptionScope)
	}
}

func TestRecordFromEventFailedUsesAmountDue(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	txnSvc, subSvc := newServices(t, db)
	seedSubscription(t, subSvc)

	object := []byte(`{"id":"in_1","subscription":"sub_1","amount_due":2900,"currency":"brl","failure_message":"card_declined"}`)
	if err := txnSvc.RecordFromEvent(ctx, "evt_1", webhookdomain.EventInvoicePaymentFailed, object); err != nil {
		t.Fatalf("record: %v", err)
	}

	items, _, err := txnSvc.ListTransactions(ctx, "t1", "", pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	txn := items[0]
	if txn.Status != domain.StatusFailed || txn.Amount != 2900 {
		t.Fatalf("unexpected transaction: status=%s amount=%d", txn.Status, txn.Amount)
	}
	if txn.FailureReason == nil || *txn.FailureReason != "card_declined" {
		t.Fatalf("expected failure reason, got %v", txn.FailureReason)
	}
}

func TestRecordFromEventMissingSubscriptionIsRetryable(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	txnSvc, _ := newServices(t, db)

	object := []byte(`{"id":"in_1","subscription":"sub_ghost","amount_due":2900,"currency":"brl"}`)
	err := txnSvc.RecordFromEvent(ctx, "evt_1", webhookdomain.EventInvoicePaymentFailed, object)
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
	if webhookdomain.IsPermanent(err) {
		t.Fatalf("missing subscription must stay retryable")
	}
}

func TestRecordFromEventMissingReferenceIsPermanent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	txnSvc, _ := newServices(t, db)

	object := []byte(`{"id":"in_1","amount_due":2900,"currency":"brl"}`)
	err := txnSvc.RecordFromEvent(ctx, "evt_1", webhookdomain.EventInvoicePaymentFailed, object)
	if !webhookdomain.IsPermanent(err) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
}

func TestRecordFromEventAttachesLatePaymentIntent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	txnSvc, subSvc := newServices(t, db)
	seedSubscription(t, subSvc)

	// First delivery lacks the payment intent.
	without := []byte(`{"id":"in_1","subscription":"sub_1","amount_paid":2900,"currency":"brl"}`)
	if err := txnSvc.RecordFromEvent(ctx, "evt_1", webhookdomain.EventInvoicePaymentSucceeded, without); err != nil {
		t.Fatalf("record: %v", err)
	}

	// A redelivery carries it. No second row; the id is attached.
	with := []byte(`{"id":"in_1","subscription":"sub_1","payment_intent":"pi_1","amount_paid":2900,"currency":"brl"}`)
	if err := txnSvc.RecordFromEvent(ctx, "evt_1", webhookdomain.EventInvoicePaymentSucceeded, with); err != nil {
		t.Fatalf("record with intent: %v", err)
	}

	items, total, err := txnSvc.ListTransactions(ctx, "t1", "", pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 transaction, got %d", total)
	}
	if items[0].ExternalPaymentIntentID == nil || *items[0].ExternalPaymentIntentID != "pi_1" {
		t.Fatalf("expected late payment intent attached, got %v", items[0].ExternalPaymentIntentID)
	}
}

func TestListTransactionsScopeFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	txnSvc, subSvc := newServices(t, db)
	seedSubscription(t, subSvc)

	member := []byte(`{"id":"sub_m1","tenant_id":"t1","scope":"member","user_id":"u1","status":"active","amount":990,"currency":"brl","interval":"month"}`)
	if err := subSvc.Reconcile(ctx, subscriptiondomain.ChangeCreated, member); err != nil {
		t.Fatalf("seed member subscription: %v", err)
	}

	platformInvoice := []byte(`{"id":"in_p","subscription":"sub_1","amount_paid":2900,"currency":"brl"}`)
	memberInvoice := []byte(`{"id":"in_m","subscription":"sub_m1","amount_paid":990,"currency":"brl"}`)
	if err := txnSvc.RecordFromEvent(ctx, "evt_p", webhookdomain.EventInvoicePaymentSucceeded, platformInvoice); err != nil {
		t.Fatalf("record platform: %v", err)
	}
	if err := txnSvc.RecordFromEvent(ctx, "evt_m", webhookdomain.EventInvoicePaymentSucceeded, memberInvoice); err != nil {
		t.Fatalf("record member: %v", err)
	}

	items, total, err := txnSvc.ListTransactions(ctx, "t1", subscriptiondomain.ScopeMember, pagination.Params{})
	if err != nil {
		t.Fatalf("list member: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].SubscriptionScope != subscriptiondomain.ScopeMember {
		t.Fatalf("unexpected member listing: total=%d items=%+v", total, items)
	}

	_, total, err = txnSvc.ListTransactions(ctx, "t1", "", pagination.Params{Page: 2, Limit: 1})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}
}
