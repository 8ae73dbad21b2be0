package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"realtors/config"
)

// Refresher reloads the public catalog.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AuditPruner drops audit entries older than a cutoff.
type AuditPruner interface {
	PruneAudit(ctx context.Context, before time.Time) (int64, error)
}

type Scheduler struct {
	cfg     config.SchedulerConfig
	catalog Refresher
	pruner  AuditPruner
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}
}

func New(cfg config.SchedulerConfig, catalog Refresher) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		catalog: catalog,
		cron:    cron.New(),
		stopCh:  make(chan struct{}),
	}
}

// SetPruner enables the daily audit retention job.
func (s *Scheduler) SetPruner(p AuditPruner) {
	s.pruner = p
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.pruner != nil && s.cfg.AuditRetention > 0 {
		log.Printf("Pruning audit log daily, keeping %s", s.cfg.AuditRetention)
		if _, err := s.cron.AddFunc("@daily", func() { s.prune(ctx) }); err != nil {
			return fmt.Errorf("schedule audit prune: %w", err)
		}
	}

	if s.cfg.Cron != "" {
		log.Printf("Refreshing catalog with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.refresh(ctx) })
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	} else if s.cfg.Interval > 0 {
		log.Printf("Refreshing catalog every %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.refresh(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No catalog refresh schedule, catalog reloads after writes only")
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// RefreshNow reloads the catalog immediately.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	return s.catalog.Refresh(ctx)
}

func (s *Scheduler) refresh(ctx context.Context) {
	if err := s.catalog.Refresh(ctx); err != nil {
		log.Printf("Scheduled catalog refresh error: %v", err)
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.AuditRetention)
	n, err := s.pruner.PruneAudit(ctx, cutoff)
	if err != nil {
		log.Printf("Audit prune error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Pruned %d audit entries older than %s", n, cutoff.Format(time.RFC3339))
	}
}
