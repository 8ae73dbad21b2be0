package workers

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"realtors/models"
)

// AuditSink is where audit entries end up.
type AuditSink interface {
	WriteAudit(ctx context.Context, entry models.AuditEntry) error
}

// AuditWorker writes audit entries in the background so a slow or failing
// sink never holds up the write that produced them.
type AuditWorker struct {
	sink    AuditSink
	queue   chan models.AuditEntry
	errs    chan error
	timeout time.Duration
	dropped atomic.Int64
}

func NewAuditWorker(sink AuditSink, queueSize int) *AuditWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &AuditWorker{
		sink:    sink,
		queue:   make(chan models.AuditEntry, queueSize),
		errs:    make(chan error, 16),
		timeout: 10 * time.Second,
	}
}

// Record queues an entry. It never blocks; a full queue drops the entry.
func (w *AuditWorker) Record(entry models.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	select {
	case w.queue <- entry:
	default:
		w.dropped.Add(1)
		log.Printf("Warning: audit queue full, dropped %s for %s", entry.Action, entry.PropertyID)
	}
}

// Errors reports sink failures. Nobody has to read it; errors that find the
// channel full are only logged. The channel is closed when Run returns.
func (w *AuditWorker) Errors() <-chan error {
	return w.errs
}

// Dropped is the number of entries discarded because the queue was full.
func (w *AuditWorker) Dropped() int64 {
	return w.dropped.Load()
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
// Call it once.
func (w *AuditWorker) Run(ctx context.Context) {
	defer close(w.errs)
	for {
		select {
		case entry := <-w.queue:
			w.write(context.Background(), entry)
		case <-ctx.Done():
			w.flush()
			log.Println("Audit worker stopping")
			return
		}
	}
}

func (w *AuditWorker) flush() {
	for {
		select {
		case entry := <-w.queue:
			w.write(context.Background(), entry)
		default:
			return
		}
	}
}

func (w *AuditWorker) write(ctx context.Context, entry models.AuditEntry) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.sink.WriteAudit(ctx, entry); err != nil {
		err = fmt.Errorf("audit %s %s: %w", entry.Action, entry.PropertyID, err)
		log.Printf("Warning: failed to write audit entry: %v", err)
		select {
		case w.errs <- err:
		default:
		}
	}
}
