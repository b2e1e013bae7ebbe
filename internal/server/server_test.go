package server_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountrepo "github.com/smallbiznis/communa/internal/connectedaccount/repository"
	accountservice "github.com/smallbiznis/communa/internal/connectedaccount/service"
	"github.com/smallbiznis/communa/internal/config"
	"github.com/smallbiznis/communa/internal/server"
	subscriptionrepo "github.com/smallbiznis/communa/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/communa/internal/subscription/service"
	tenantrepo "github.com/smallbiznis/communa/internal/tenant/repository"
	transactionrepo "github.com/smallbiznis/communa/internal/transaction/repository"
	transactionservice "github.com/smallbiznis/communa/internal/transaction/service"
	webhookservice "github.com/smallbiznis/communa/internal/webhook/service"
	eventrepo "github.com/smallbiznis/communa/internal/webhookevent/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE webhook_events (
			id BIGINT PRIMARY KEY,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			schema_version TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			processed_at TIMESTAMP,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			received_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_webhook_events_event_id ON webhook_events(event_id)`,
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
		`CREATE TABLE connected_accounts (
			id BIGINT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			external_account_id TEXT NOT NULL,
			verification_status TEXT NOT NULL,
			charges_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			requirements TEXT,
			capabilities TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_connected_accounts_tenant ON connected_accounts(tenant_id)`,
		`CREATE TABLE tenants (
			id BIGINT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_tenants_tenant_id ON tenants(tenant_id)`,
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema exec failed: %v", err)
		}
	}

	return db
}

func newTestServer(t *testing.T, db *gorm.DB) *server.Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	node, err := snowflake.NewNode(80)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	cfg := config.Config{
		WebhookSecret:         testSecret,
		WebhookProcessTimeout: 10 * time.Second,
	}

	subscriptionSvc := subscriptionservice.New(subscriptionservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  subscriptionrepo.NewRepository(),
	})
	transactionSvc := transactionservice.New(transactionservice.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          transactionrepo.NewRepository(),
		Subscriptions: subscriptionSvc,
	})
	accountSvc := accountservice.New(accountservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    accountrepo.NewRepository(),
		Tenants: tenantrepo.NewRepository(),
	})
	webhookSvc := webhookservice.New(webhookservice.Params{
		Cfg:           cfg,
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Events:        eventrepo.NewRepository(),
		Subscriptions: subscriptionSvc,
		Transactions:  transactionSvc,
		Accounts:      accountSvc,
	})

	engine := gin.New()
	engine.Use(server.ErrorHandlingMiddleware())

	return server.NewServer(server.ServerParams{
		Gin:             engine,
		Cfg:             cfg,
		Log:             zap.NewNop(),
		WebhookSvc:      webhookSvc,
		SubscriptionSvc: subscriptionSvc,
		TransactionSvc:  transactionSvc,
		AccountSvc:      accountSvc,
	})
}

func signPayload(payload string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write([]byte(payload))
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, srv *server.Server, payload, header string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(payload))
	if header != "" {
		req.Header.Set(server.SignatureHeader, header)
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func TestWebhookEndpointAccepts(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db)

	payload := `{"id":"evt_1","type":"subscription.created","data":{"object":{"id":"sub_1","tenant_id":"t1","scope":"platform","status":"trialing","amount":2900,"currency":"brl","interval":"month"}}}`
	rec := postWebhook(t, srv, payload, signPayload(payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body["received"] {
		t.Fatalf("expected received=true, got %s", rec.Body.String())
	}
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db)

	payload := `{"id":"evt_1","type":"subscription.created","data":{"object":{"id":"sub_1"}}}`
	rec := postWebhook(t, srv, payload, "v1=deadbeef")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookEndpointRejectsMissingSignature(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db)

	rec := postWebhook(t, srv, `{"id":"evt_1","type":"x","data":{"object":{}}}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookEndpointAcceptsTransientFailure(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db)

	// Invoice before subscription: handled, so still 200.
	payload := `{"id":"evt_2","type":"invoice.payment_failed","data":{"object":{"id":"in_1","subscription":"sub_1","amount_due":2900,"currency":"brl"}}}`
	rec := postWebhook(t, srv, payload, signPayload(payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for transient failure, got %d: %s", rec.Code, rec.Body.String())
	}

	var processed bool
	if err := db.Raw("SELECT processed FROM webhook_events WHERE event_id = 'evt_2'").Scan(&processed).Error; err != nil {
		t.Fatalf("scan processed: %v", err)
	}
	if processed {
		t.Fatalf("transient failure must leave the event unprocessed")
	}
}

func TestGetPlatformSubscription(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db)

	payload := `{"id":"evt_1","type":"subscription.created","data":{"object":{"id":"sub_1","tenant_id":"t1","scope":"platform","status":"active","amount":2900,"currency":"brl","interval":"month"}}}`
	if rec := postWebhook(t, srv, payload, signPayload(payload)); rec.Code != http.StatusOK {
		t.Fatalf("seed webhook: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/subscription", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "active" || body.Amount != 2900 {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGetPlatformSubscriptionNotFound(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db)

	req := httptest.NewRequest(http.MethodGet, "/tenants/ghost/subscription", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListTransactionsEndpoint(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db)

	created := `{"id":"evt_1","type":"subscription.created","data":{"object":{"id":"sub_1","tenant_id":"t1","scope":"platform","status":"active","amount":2900,"currency":"brl","interval":"month"}}}`
	invoice := `{"id":"evt_2","type":"invoice.payment_succeeded","data":{"object":{"id":"in_1","subscription":"sub_1","payment_intent":"pi_1","amount_paid":2900,"currency":"brl"}}}`
	for _, payload := range []string{created, invoice} {
		if rec := postWebhook(t, srv, payload, signPayload(payload)); rec.Code != http.StatusOK {
			t.Fatalf("seed webhook: %d", rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/transactions?scope=platform&page=1&limit=10", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Items []json.RawMessage `json:"items"`
		Total int64             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Total != 1 || len(body.Items) != 1 {
		t.Fatalf("expected one transaction, got %s", rec.Body.String())
	}
}

func TestGetAccountStatusEndpoint(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db)

	payload := `{"id":"evt_1","type":"account.updated","data":{"object":{"id":"acct_1","tenant_id":"t1","charges_enabled":true,"payouts_enabled":false,"requirements":{}}}}`
	if rec := postWebhook(t, srv, payload, signPayload(payload)); rec.Code != http.StatusOK {
		t.Fatalf("seed webhook: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/account", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.VerificationStatus != "pending" {
		t.Fatalf("expected pending, got %s", body.VerificationStatus)
	}
}
