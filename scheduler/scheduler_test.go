package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"realtors/config"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

type recordingPruner struct {
	before time.Time
}

func (p *recordingPruner) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	p.before = before
	return 3, nil
}

func TestScheduler_IntervalRefresh(t *testing.T) {
	r := &countingRefresher{}
	s := New(config.SchedulerConfig{Interval: 10 * time.Millisecond}, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if r.calls.Load() < 2 {
		t.Fatalf("expected at least 2 refreshes, got %d", r.calls.Load())
	}
}

func TestScheduler_InvalidCron(t *testing.T) {
	s := New(config.SchedulerConfig{Cron: "not a cron"}, &countingRefresher{})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected invalid cron to be rejected")
	}
}

func TestScheduler_RefreshErrorsAreLogged(t *testing.T) {
	r := &countingRefresher{err: errors.New("store down")}
	s := New(config.SchedulerConfig{}, r)
	s.refresh(context.Background())
	if r.calls.Load() != 1 {
		t.Fatalf("expected 1 refresh attempt, got %d", r.calls.Load())
	}
	if err := s.RefreshNow(context.Background()); err == nil {
		t.Fatalf("expected RefreshNow to return the error")
	}
}

func TestScheduler_PruneUsesRetention(t *testing.T) {
	p := &recordingPruner{}
	s := New(config.SchedulerConfig{AuditRetention: 90 * 24 * time.Hour}, &countingRefresher{})
	s.SetPruner(p)

	s.prune(context.Background())

	age := time.Since(p.before)
	if age < 89*24*time.Hour || age > 91*24*time.Hour {
		t.Fatalf("expected cutoff about 90 days ago, got %s", age)
	}
}
