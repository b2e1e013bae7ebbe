package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/communa/internal/observability/metrics"
	"github.com/smallbiznis/communa/internal/subscription/domain"
	webhookdomain "github.com/smallbiznis/communa/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("subscription.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Reconcile applies a subscription lifecycle change to the store. The
// store mirrors whatever status the payload reports; only the deleted
// change forces a status of its own.
func (s *Service) Reconcile(ctx context.Context, change string, object []byte) error {
	var obj domain.Object
	if err := json.Unmarshal(object, &obj); err != nil {
		return webhookdomain.Permanent(fmt.Errorf("%w: %v", webhookdomain.ErrInvalidPayload, err))
	}

	tenantID := obj.ResolveTenantID()
	scope := obj.ResolveScope()
	if tenantID == "" || scope == "" {
		s.log.Warn("subscription event missing routing metadata",
			zap.String("change", change),
			zap.String("tenant_id", tenantID),
			zap.String("scope", scope),
		)
		return webhookdomain.Permanent(webhookdomain.ErrMissingMetadata)
	}
	if scope != domain.ScopePlatform && scope != domain.ScopeMember {
		return webhookdomain.Permanent(fmt.Errorf("%w: unknown scope %q", webhookdomain.ErrMissingMetadata, scope))
	}

	userID := obj.ResolveUserID()
	if scope == domain.ScopeMember && userID == "" {
		s.log.Warn("member subscription event missing user_id", zap.String("tenant_id", tenantID))
		return webhookdomain.Permanent(webhookdomain.ErrMissingMetadata)
	}

	var err error
	switch change {
	case domain.ChangeCreated, domain.ChangeUpdated:
		err = s.upsert(ctx, scope, tenantID, userID, obj)
	case domain.ChangeDeleted:
		err = s.cancel(ctx, scope, tenantID, userID, obj)
	default:
		return webhookdomain.Permanent(fmt.Errorf("unknown subscription change %q", change))
	}
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordReconcile(ctx, scope, change)
	}
	return nil
}

func (s *Service) upsert(ctx context.Context, scope, tenantID, userID string, obj domain.Object) error {
	if scope == domain.ScopePlatform {
		return s.repo.UpsertPlatform(ctx, s.db, &domain.PlatformSubscription{
			ID:                     s.genID.Generate(),
			TenantID:               tenantID,
			ExternalSubscriptionID: obj.ID,
			ExternalCustomerID:     obj.Customer,
			PlanID:                 obj.PlanID,
			PlanName:               obj.PlanName,
			Status:                 obj.Status,
			Amount:                 obj.Amount,
			Currency:               obj.Currency,
			Interval:               obj.Interval,
			CurrentPeriodStart:     domain.UnixTime(obj.CurrentPeriodStart),
			CurrentPeriodEnd:       domain.UnixTime(obj.CurrentPeriodEnd),
			TrialStart:             domain.UnixTime(obj.TrialStart),
			TrialEnd:               domain.UnixTime(obj.TrialEnd),
			CancelAtPeriodEnd:      obj.CancelAtPeriodEnd,
			CanceledAt:             domain.UnixTime(obj.CanceledAt),
		})
	}
	return s.repo.UpsertMember(ctx, s.db, &domain.MemberSubscription{
		ID:                     s.genID.Generate(),
		TenantID:               tenantID,
		UserID:                 userID,
		ExternalSubscriptionID: obj.ID,
		ExternalCustomerID:     obj.Customer,
		PlanID:                 obj.PlanID,
		PlanName:               obj.PlanName,
		Status:                 obj.Status,
		Amount:                 obj.Amount,
		Currency:               obj.Currency,
		Interval:               obj.Interval,
		CurrentPeriodStart:     domain.UnixTime(obj.CurrentPeriodStart),
		CurrentPeriodEnd:       domain.UnixTime(obj.CurrentPeriodEnd),
		TrialStart:             domain.UnixTime(obj.TrialStart),
		TrialEnd:               domain.UnixTime(obj.TrialEnd),
		CancelAtPeriodEnd:      obj.CancelAtPeriodEnd,
		CanceledAt:             domain.UnixTime(obj.CanceledAt),
	})
}

func (s *Service) cancel(ctx context.Context, scope, tenantID, userID string, obj domain.Object) error {
	canceledAt := time.Now().UTC()
	if at := domain.UnixTime(obj.CanceledAt); at != nil {
		canceledAt = *at
	}
	if scope == domain.ScopePlatform {
		return s.repo.CancelPlatform(ctx, s.db, tenantID, canceledAt)
	}
	return s.repo.CancelMember(ctx, s.db, tenantID, userID, canceledAt)
}

func (s *Service) GetPlatformSubscription(ctx context.Context, tenantID string) (*domain.PlatformSubscription, error) {
	return s.repo.FindPlatformByTenant(ctx, s.db, tenantID)
}

func (s *Service) GetMemberSubscription(ctx context.Context, tenantID, userID string) (*domain.MemberSubscription, error) {
	return s.repo.FindMember(ctx, s.db, tenantID, userID)
}

// ResolveByExternalID finds the subscription a provider-side id refers
// to, or nil when nothing matches yet.
func (s *Service) ResolveByExternalID(ctx context.Context, externalID string) (*domain.Ref, error) {
	return s.repo.FindByExternalID(ctx, s.db, externalID)
}
