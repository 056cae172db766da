package entitlements

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/subscriptions"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	"github.com/kitlyhq/kitly-backend/pkg/enums"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/outbox"
	"github.com/kitlyhq/kitly-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OverrideInput captures an admin-supplied entitlement override.
type OverrideInput struct {
	TenantID   uuid.UUID
	FeatureKey string
	Type       enums.FeatureType
	LimitValue *int64
	Enabled    bool
	Metadata   json.RawMessage
}

// ServiceParams wire the override service.
type ServiceParams struct {
	DB            txRunner
	Overrides     OverrideRepository
	Ledger        *Ledger
	Outbox        *outbox.Service
	Subscriptions subscriptions.Repository
	Logger        *logger.Logger
}

// Service applies override writes with the same discipline as webhook-driven
// changes: mutation, version bump, and outbox emit share one transaction.
type Service struct {
	db        txRunner
	overrides OverrideRepository
	ledger    *Ledger
	outbox    *outbox.Service
	subs      subscriptions.Repository
	logg      *logger.Logger
}

// NewService builds the override service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Overrides == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "override repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		db:        params.DB,
		overrides: params.Overrides,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		subs:      params.Subscriptions,
		logg:      params.Logger,
	}, nil
}

// UpsertOverride writes the override, bumps the tenant version, and queues an
// EntitlementsChanged event in one transaction.
func (s *Service) UpsertOverride(ctx context.Context, input OverrideInput) (*models.Entitlement, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if input.FeatureKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature key is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid feature type")
	}
	if input.Type != enums.FeatureTypeBoolean && input.LimitValue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit value is required for limit and quota features")
	}

	row := &models.Entitlement{
		TenantID:    input.TenantID,
		FeatureKey:  input.FeatureKey,
		FeatureType: input.Type,
		LimitValue:  input.LimitValue,
		Enabled:     input.Enabled,
		Metadata:    input.Metadata,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.overrides.WithTx(tx).Upsert(ctx, row); err != nil {
			return err
		}
		if _, err := s.ledger.WithTx(tx).Bump(ctx, input.TenantID); err != nil {
			return err
		}

		plan := enums.SubscriptionPlanFree
		status := enums.SubscriptionStatusActive
		sub, err := s.subs.WithTx(tx).FindCurrentByTenant(ctx, input.TenantID)
		if err != nil {
			return err
		}
		if sub != nil {
			plan = sub.Plan
			status = sub.Status
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEntitlementsChanged,
			AggregateType: enums.AggregateTenant,
			AggregateID:   input.TenantID,
			Version:       1,
			Data: payloads.EntitlementsChangedEvent{
				TenantID: input.TenantID,
				Plan:     plan,
				Status:   status,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id":   input.TenantID.String(),
		"feature_key": input.FeatureKey,
		"enabled":     input.Enabled,
	})
	s.logg.Info(logCtx, "entitlement override applied")
	return row, nil
}
