package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kitlyhq/kitly-backend/internal/cron"
	"github.com/kitlyhq/kitly-backend/internal/processor"
	"github.com/kitlyhq/kitly-backend/pkg/config"
	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

const (
	defaultSweepPollMs = 5000
	defaultRetryPollMs = 60000
	sweepMaxBackoff    = 30 * time.Second
	sweepJitterWindow  = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type pinger interface {
	Ping(context.Context) error
}

type ServiceParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        pinger
	Redis     pinger
	Processor *processor.Service
	SweepLock cron.Lock
	RetryLock cron.Lock
}

// Service runs the inbound-event sweep and retry loops. The locks keep
// a sweep cycle single-flight across worker replicas; a replica that
// loses the race just waits for the next tick.
type Service struct {
	cfg           *config.Config
	logg          *logger.Logger
	db            pinger
	redis         pinger
	processor     *processor.Service
	sweepLock     cron.Lock
	retryLock     cron.Lock
	sweepInterval time.Duration
	retryInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Processor == nil {
		return nil, errors.New("processor service is required")
	}
	if params.SweepLock == nil {
		return nil, errors.New("sweep lock is required")
	}
	if params.RetryLock == nil {
		return nil, errors.New("retry lock is required")
	}

	sweepMs := params.Config.Inbox.PollIntervalMS
	if sweepMs <= 0 {
		sweepMs = defaultSweepPollMs
	}
	retryMs := params.Config.Inbox.RetryIntervalMS
	if retryMs <= 0 {
		retryMs = defaultRetryPollMs
	}

	return &Service{
		cfg:           params.Config,
		logg:          params.Logger,
		db:            params.DB,
		redis:         params.Redis,
		processor:     params.Processor,
		sweepLock:     params.SweepLock,
		retryLock:     params.RetryLock,
		sweepInterval: time.Duration(sweepMs) * time.Millisecond,
		retryInterval: time.Duration(retryMs) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.loop(groupCtx, "inbox sweep", s.sweepInterval, s.sweepLock, func(c context.Context) error {
			_, err := s.processor.SweepOnce(c)
			return err
		})
	})
	group.Go(func() error {
		return s.loop(groupCtx, "inbox retry", s.retryInterval, s.retryLock, func(c context.Context) error {
			_, err := s.processor.RetryOnce(c)
			return err
		})
	})
	return group.Wait()
}

func (s *Service) loop(ctx context.Context, name string, interval time.Duration, lock cron.Lock, run func(context.Context) error) error {
	backoff := interval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, fmt.Sprintf("%s loop context canceled", name))
			return ctx.Err()
		default:
		}

		if err := s.runLocked(ctx, lock, run); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s cycle error", name), err)
			backoff = nextBackoff(backoff, interval, sweepMaxBackoff)
		} else {
			backoff = interval
		}

		if err := s.sleep(ctx, withJitter(backoff)); err != nil {
			return err
		}
	}
}

func (s *Service) runLocked(ctx context.Context, lock cron.Lock, run func(context.Context) error) error {
	locked, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		return nil
	}
	defer func() {
		if relErr := lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release worker lock", relErr)
		}
	}()
	return run(ctx)
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(sweepJitterWindow)))
	return d + jitter
}
