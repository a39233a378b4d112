package notification

import (
	"context"
	"log"
	"sync"
	"time"

	"go.uber.org/fx"
)

const (
	reconcileInterval = 5 * time.Minute
	pendingPageSize   = 10
	flushBatchSize    = 5
)

// PendingSource pages through notifications whose email delivery is still
// pending.
type PendingSource interface {
	FindPendingRecommendations(ctx context.Context, limit int) ([]*Notification, error)
}

// Flusher attempts email delivery for one pending notification. Failures are
// the flusher's to log; a record left pending is picked up by the next run.
type Flusher interface {
	FlushNotification(ctx context.Context, n *Notification)
}

// Reconciler periodically re-scans recommendation notifications that were
// never emailed and flushes them in small concurrent batches. It runs
// independently of the event-consumption path.
type Reconciler struct {
	source  PendingSource
	flusher Flusher
}

// NewReconciler creates a new reconciler over the given pending-notification
// source.
func NewReconciler(source PendingSource, flusher Flusher) *Reconciler {
	return &Reconciler{source: source, flusher: flusher}
}

// ProcessPendingNotifications runs one reconciliation pass: a single page of
// pending notifications, flushed in sequential batches whose members run
// concurrently. Total concurrency is bounded by the batch size.
func (r *Reconciler) ProcessPendingNotifications(ctx context.Context) {
	pending, err := r.source.FindPendingRecommendations(ctx, pendingPageSize)
	if err != nil {
		log.Println("[Reconciler] Failed to fetch pending notifications:", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	log.Printf("[Reconciler] Found %d pending notifications", len(pending))

	for start := 0; start < len(pending); start += flushBatchSize {
		end := start + flushBatchSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, n := range pending[start:end] {
			wg.Add(1)
			go func(n *Notification) {
				defer wg.Done()
				r.flusher.FlushNotification(ctx, n)
			}(n)
		}
		wg.Wait()
	}
}

// StartScheduler starts the background goroutine that runs a reconciliation
// pass every five minutes, started and stopped with the application.
func (r *Reconciler) StartScheduler(lc fx.Lifecycle) {
	ticker := time.NewTicker(reconcileInterval)
	done := make(chan bool)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Printf("Starting notification reconciler (checking every %s)...", reconcileInterval)
			go func() {
				schedulerCtx := context.Background()
				for {
					select {
					case <-ticker.C:
						r.ProcessPendingNotifications(schedulerCtx)
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Stopping notification reconciler...")
			ticker.Stop()
			done <- true
			return nil
		},
	})
}
