package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/kitlyhq/kitly-backend/pkg/logger"
)

func TestInboxRetentionJobDeletesInsideTransaction(t *testing.T) {
	now := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	repo := &fakeInboxRetentionRepo{deletedRows: 9}
	runner := &countingTxRunner{}
	job := newInboxRetentionJob(t, runner, repo, 90)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.UTC().Add(-90 * 24 * time.Hour)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one transaction, got %d", runner.calls)
	}
}

func TestInboxRetentionJobPropagatesErrors(t *testing.T) {
	repo := &fakeInboxRetentionRepo{err: errors.New("boom")}
	job := newInboxRetentionJob(t, &countingTxRunner{}, repo, 90)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newInboxRetentionJob(t *testing.T, runner txRunner, repo *fakeInboxRetentionRepo, retention int) *inboxRetentionJob {
	t.Helper()

	jobIface, err := NewInboxRetentionJob(InboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         runner,
		Repository: repo,
		Retention:  retention,
	})
	if err != nil {
		t.Fatalf("NewInboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*inboxRetentionJob)
	if !ok {
		t.Fatalf("expected inboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeInboxRetentionRepo struct {
	lastCutoff  time.Time
	deletedRows int64
	err         error
}

func (f *fakeInboxRetentionRepo) DeleteProcessedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

type countingTxRunner struct {
	calls int
}

func (c *countingTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.calls++
	return fn(nil)
}
