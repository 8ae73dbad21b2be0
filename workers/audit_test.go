package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"realtors/models"
	"realtors/storage"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

func (s *recordingSink) WriteAudit(ctx context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestAuditWorker_FlushesOnShutdown(t *testing.T) {
	sink := &recordingSink{}
	w := NewAuditWorker(sink, 8)

	for i := 0; i < 3; i++ {
		w.Record(models.AuditEntry{Action: models.AuditPropertyCreated, PropertyID: "a"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
	if sink.count() != 3 {
		t.Fatalf("expected 3 entries written, got %d", sink.count())
	}
}

func TestAuditWorker_RecordNeverBlocks(t *testing.T) {
	w := NewAuditWorker(&recordingSink{}, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			w.Record(models.AuditEntry{Action: models.AuditPropertyUpdated, PropertyID: "a"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Record blocked with no worker running")
	}
	if w.Dropped() != 8 {
		t.Fatalf("expected 8 dropped entries, got %d", w.Dropped())
	}
}

func TestAuditWorker_SinkErrorsGoToChannel(t *testing.T) {
	sinkErr := errors.New("disk full")
	w := NewAuditWorker(&recordingSink{err: sinkErr}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Record(models.AuditEntry{Action: models.AuditPropertyDeleted, PropertyID: "a"})

	select {
	case err := <-w.Errors():
		if !errors.Is(err, sinkErr) {
			t.Fatalf("expected wrapped sink error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an error on the channel")
	}
}

func TestAuditWorker_ErrorsCloseWhenStopped(t *testing.T) {
	w := NewAuditWorker(&recordingSink{err: errors.New("disk full")}, 64)
	for i := 0; i < 40; i++ {
		w.Record(models.AuditEntry{Action: models.AuditPropertyUpdated, PropertyID: "a"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker blocked on unread errors")
	}

	n := 0
	for range w.Errors() {
		n++
	}
	if n == 0 || n > 16 {
		t.Fatalf("expected between 1 and 16 buffered errors, got %d", n)
	}
}

func TestTreeAuditSink_AppendsUnderAdminLogs(t *testing.T) {
	tree := storage.NewMemoryTreeWithClock(func() time.Time { return time.UnixMilli(1700000000000) })
	sink := NewTreeAuditSink(tree)
	ctx := context.Background()

	err := sink.WriteAudit(ctx, models.AuditEntry{
		Action:     models.AuditPropertyApproved,
		PropertyID: "-Nabc",
		Actor:      "admin@example.com",
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var logs map[string]struct {
		Action    string `json:"action"`
		Timestamp int64  `json:"timestamp"`
	}
	if _, err := tree.Get(ctx, adminLogsPath, &logs); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	for _, l := range logs {
		if l.Action != string(models.AuditPropertyApproved) {
			t.Fatalf("expected action property_approved, got %s", l.Action)
		}
		if l.Timestamp != 1700000000000 {
			t.Fatalf("expected server timestamp, got %d", l.Timestamp)
		}
	}
}
