package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountservice "github.com/smallbiznis/communa/internal/connectedaccount/service"
	"github.com/smallbiznis/communa/internal/config"
	"github.com/smallbiznis/communa/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/communa/internal/subscription/domain"
	subscriptionservice "github.com/smallbiznis/communa/internal/subscription/service"
	transactionservice "github.com/smallbiznis/communa/internal/transaction/service"
	"github.com/smallbiznis/communa/internal/webhook/domain"
	"github.com/smallbiznis/communa/internal/webhook/signature"
	eventdomain "github.com/smallbiznis/communa/internal/webhookevent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type handlerFunc func(ctx context.Context, event *eventdomain.Event, object []byte) error

type Params struct {
	fx.In

	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Events        eventdomain.Repository
	Subscriptions *subscriptionservice.Service
	Transactions  *transactionservice.Service
	Accounts      *accountservice.Service
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	events        eventdomain.Repository
	subscriptions *subscriptionservice.Service
	transactions  *transactionservice.Service
	accounts      *accountservice.Service
	metrics       *metrics.Metrics

	handlers map[string]handlerFunc
}

func New(p Params) *Service {
	s := &Service{
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("webhook.service"),
		genID:         p.GenID,
		events:        p.Events,
		subscriptions: p.Subscriptions,
		transactions:  p.Transactions,
		accounts:      p.Accounts,
		metrics:       p.Metrics,
	}
	s.handlers = map[string]handlerFunc{
		domain.EventCheckoutSessionCompleted: s.handleCheckoutCompleted,
		domain.EventSubscriptionCreated:      s.subscriptionHandler(subscriptiondomain.ChangeCreated),
		domain.EventSubscriptionUpdated:      s.subscriptionHandler(subscriptiondomain.ChangeUpdated),
		domain.EventSubscriptionDeleted:      s.subscriptionHandler(subscriptiondomain.ChangeDeleted),
		domain.EventInvoicePaymentSucceeded:  s.handleInvoice,
		domain.EventInvoicePaymentFailed:     s.handleInvoice,
		domain.EventAccountUpdated:           s.handleAccountUpdated,
	}
	return s
}

// Ingest verifies, records, and processes one webhook delivery.
//
// Errors escape only when redelivery could help: a bad signature or
// unparseable envelope (the caller answers 400), or a ledger write
// failure (500). Handler failures are absorbed here after the ledger
// has recorded them; the retry sweep picks transient ones back up.
func (s *Service) Ingest(ctx context.Context, payload []byte, sigHeader string) error {
	if err := signature.Verify(payload, sigHeader, s.cfg.WebhookSecret); err != nil {
		return err
	}

	var envelope domain.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEnvelope, err)
	}
	if !envelope.Valid() {
		return domain.ErrInvalidEnvelope
	}

	if s.metrics != nil {
		s.metrics.RecordEventReceived(ctx, envelope.Type)
	}

	event := &eventdomain.Event{
		ID:            s.genID.Generate(),
		EventID:       envelope.ID,
		EventType:     envelope.Type,
		SchemaVersion: envelope.APIVersion,
		Payload:       payload,
		ReceivedAt:    time.Now().UTC(),
	}

	inserted, err := s.events.InsertIfNew(ctx, s.db, event)
	if err != nil {
		return err
	}
	if !inserted {
		existing, err := s.events.FindByEventID(ctx, s.db, envelope.ID)
		if err != nil {
			return err
		}
		if existing.Processed {
			s.log.Debug("duplicate delivery of processed event", zap.String("event_id", envelope.ID))
			return nil
		}
		// Unprocessed redelivery: take another attempt now.
		event = existing
	}

	return s.Process(ctx, event)
}

// Process dispatches a ledger event to its handler and settles the
// ledger afterwards. Every path ends in markProcessed, recordFailure,
// or both; handler errors never escape unrecorded.
func (s *Service) Process(ctx context.Context, event *eventdomain.Event) error {
	eventType := domain.NormalizeType(event.EventType)

	handler, ok := s.handlers[eventType]
	if !ok {
		s.log.Info("ignoring unhandled event type",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
		)
		return s.markProcessed(ctx, event)
	}

	handlerCtx, cancel := context.WithTimeout(ctx, s.cfg.WebhookProcessTimeout)
	defer cancel()

	var object []byte
	if len(event.Payload) > 0 {
		var envelope domain.Envelope
		if err := json.Unmarshal(event.Payload, &envelope); err == nil {
			object = envelope.Data.Object
		}
	}

	if err := handler(handlerCtx, event, object); err != nil {
		return s.onHandlerFailure(ctx, event, err)
	}

	if s.metrics != nil {
		s.metrics.RecordEventProcessed(ctx, event.EventType)
	}
	return s.markProcessed(ctx, event)
}

func (s *Service) markProcessed(ctx context.Context, event *eventdomain.Event) error {
	return s.events.MarkProcessed(ctx, s.db, event.EventID, time.Now().UTC())
}

// onHandlerFailure records the failure and decides whether the event
// stays eligible for retry. Permanent failures are marked processed so
// the sweep does not loop on them forever.
func (s *Service) onHandlerFailure(ctx context.Context, event *eventdomain.Event, handlerErr error) error {
	if err := s.events.RecordFailure(ctx, s.db, event.EventID, handlerErr.Error()); err != nil {
		return err
	}

	permanent := domain.IsPermanent(handlerErr)
	if s.metrics != nil {
		s.metrics.RecordEventFailed(ctx, event.EventType, permanent)
	}

	if permanent {
		s.log.Warn("event failed permanently",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Error(handlerErr),
		)
		return s.markProcessed(ctx, event)
	}

	s.log.Warn("event failed, will retry",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Int("attempt_count", event.AttemptCount+1),
		zap.Error(handlerErr),
	)
	return nil
}

func (s *Service) subscriptionHandler(change string) handlerFunc {
	return func(ctx context.Context, event *eventdomain.Event, object []byte) error {
		return s.subscriptions.Reconcile(ctx, change, object)
	}
}

func (s *Service) handleInvoice(ctx context.Context, event *eventdomain.Event, object []byte) error {
	return s.transactions.RecordFromEvent(ctx, event.EventID, domain.NormalizeType(event.EventType), object)
}

func (s *Service) handleAccountUpdated(ctx context.Context, event *eventdomain.Event, object []byte) error {
	return s.accounts.UpdateFromEvent(ctx, object)
}

// Checkout completion only confirms the hosted flow finished; the
// subscription and invoice events that follow carry the actual state.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *eventdomain.Event, object []byte) error {
	s.log.Info("checkout session completed", zap.String("event_id", event.EventID))
	return nil
}
