package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/communa/internal/connectedaccount/domain"
	tenantdomain "github.com/smallbiznis/communa/internal/tenant/domain"
	webhookdomain "github.com/smallbiznis/communa/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Tenants tenantdomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	tenants tenantdomain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("connectedaccount.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		tenants: p.Tenants,
	}
}

// UpdateFromEvent stores the latest account snapshot for a tenant and
// recomputes the verification status from the payload's capability
// flags. When the account verifies, the tenant's onboarding flag flips
// on and stays on.
func (s *Service) UpdateFromEvent(ctx context.Context, object []byte) error {
	var obj domain.AccountObject
	if err := json.Unmarshal(object, &obj); err != nil {
		return webhookdomain.Permanent(fmt.Errorf("%w: %v", webhookdomain.ErrInvalidPayload, err))
	}

	tenantID := obj.ResolveTenantID()
	if tenantID == "" {
		s.log.Warn("account event missing tenant metadata", zap.String("account", obj.ID))
		return webhookdomain.Permanent(webhookdomain.ErrMissingMetadata)
	}

	status := domain.DeriveStatus(obj.ChargesEnabled, obj.PayoutsEnabled, obj.Requirements)

	requirements, err := json.Marshal(obj.Requirements)
	if err != nil {
		return webhookdomain.Permanent(fmt.Errorf("%w: %v", webhookdomain.ErrInvalidPayload, err))
	}
	var capabilities datatypes.JSON
	if len(obj.Capabilities) > 0 {
		capabilities, err = json.Marshal(obj.Capabilities)
		if err != nil {
			return webhookdomain.Permanent(fmt.Errorf("%w: %v", webhookdomain.ErrInvalidPayload, err))
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		err := s.repo.Upsert(ctx, tx, &domain.ConnectedAccount{
			ID:                 s.genID.Generate(),
			TenantID:           tenantID,
			ExternalAccountID:  obj.ID,
			VerificationStatus: status,
			ChargesEnabled:     obj.ChargesEnabled,
			PayoutsEnabled:     obj.PayoutsEnabled,
			Requirements:       requirements,
			Capabilities:       capabilities,
		})
		if err != nil {
			return err
		}
		if status == domain.StatusVerified {
			return s.tenants.MarkOnboardingCompleted(ctx, tx, s.genID.Generate(), tenantID)
		}
		return nil
	})
}

func (s *Service) GetAccountStatus(ctx context.Context, tenantID string) (*domain.ConnectedAccount, error) {
	return s.repo.FindByTenant(ctx, s.db, tenantID)
}
