package processor

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/internal/inbox"
	"github.com/kitlyhq/kitly-backend/pkg/config"
	"github.com/kitlyhq/kitly-backend/pkg/db/models"
	pkgerrors "github.com/kitlyhq/kitly-backend/pkg/errors"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
	"github.com/kitlyhq/kitly-backend/pkg/metrics"
)

const (
	sweepInbox = "inbox"
	sweepRetry = "inbox-retry"

	defaultInboxBatch      = 100
	defaultInboxMaxRetries = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wire the processor sweep service.
type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       txRunner
	Inbox    inbox.Repository
	Registry *Registry
	Metrics  *metrics.SweepMetrics
}

// Service drains pending inbound events and applies their business effects.
// One sweep handles one batch; the worker loop decides the cadence.
type Service struct {
	logg       *logger.Logger
	db         txRunner
	inbox      inbox.Repository
	registry   *Registry
	metrics    *metrics.SweepMetrics
	batchSize  int
	maxRetries int
}

// NewService builds the processor service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "config required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Inbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inbox repository required")
	}
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "handler registry required")
	}

	batch := params.Config.Inbox.BatchSize
	if batch <= 0 {
		batch = defaultInboxBatch
	}
	maxRetries := params.Config.Inbox.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultInboxMaxRetries
	}

	return &Service{
		logg:       params.Logger,
		db:         params.DB,
		inbox:      params.Inbox,
		registry:   params.Registry,
		metrics:    params.Metrics,
		batchSize:  batch,
		maxRetries: maxRetries,
	}, nil
}

// SweepOnce processes one batch of pending events. A failing item only
// fails itself; the sweep continues with the rest of the batch.
func (s *Service) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	events, err := s.inbox.FetchPending(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	failed := 0
	for _, event := range events {
		claimed, err := s.inbox.Claim(ctx, event.ID)
		if err != nil {
			s.logg.Error(s.eventCtx(ctx, event), "claim inbound event", err)
			continue
		}
		if !claimed {
			// Another sweeper owns this row now.
			continue
		}

		if err := s.processOne(ctx, event); err != nil {
			failed++
			logCtx := s.logg.WithField(s.eventCtx(ctx, event), "error", err.Error())
			s.logg.Warn(logCtx, "inbound event failed")
			if markErr := s.inbox.MarkFailed(ctx, event.ID, err); markErr != nil {
				s.logg.Error(s.eventCtx(ctx, event), "mark inbound event failed", markErr)
			}
			continue
		}

		processed++
		if err := s.inbox.MarkProcessed(ctx, event.ID); err != nil {
			s.logg.Error(s.eventCtx(ctx, event), "mark inbound event processed", err)
		}
	}

	s.metrics.ObserveDuration(sweepInbox, time.Since(start))
	s.metrics.AddProcessed(sweepInbox, processed)
	s.metrics.AddFailed(sweepInbox, failed)
	return processed + failed, nil
}

// processOne runs the handler inside one transaction so the business
// mutation, version bump, and outbox emit commit or roll back together.
func (s *Service) processOne(ctx context.Context, event models.InboundEvent) error {
	handler, ok := s.registry.Resolve(event.EventType)
	if !ok {
		// Acknowledged, ignored.
		return nil
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return handler.Handle(ctx, tx, event)
	})
}

// RetryOnce moves failed events under the retry bound back to pending.
func (s *Service) RetryOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	reset, err := s.inbox.ResetFailedForRetry(ctx, s.maxRetries)
	if err != nil {
		return 0, err
	}
	s.metrics.ObserveDuration(sweepRetry, time.Since(start))
	if reset > 0 {
		logCtx := s.logg.WithField(ctx, "events_reset", reset)
		s.logg.Info(logCtx, "failed inbound events returned to pending")
	}
	return reset, nil
}

func (s *Service) eventCtx(ctx context.Context, event models.InboundEvent) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"inbound_event_id": event.ID.String(),
		"provider":         event.Provider,
		"event_type":       event.EventType,
	})
}
