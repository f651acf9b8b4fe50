package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphcap/batchqueue/internal/config"
	"github.com/graphcap/batchqueue/internal/inference"
	"github.com/graphcap/batchqueue/internal/store"
	"github.com/graphcap/batchqueue/pkg/models"
)

// Coordinator is the slice of the queue service the worker consumes.
type Coordinator interface {
	ClaimItem(ctx context.Context, workerID string) (*models.JobItem, error)
	CompleteItem(ctx context.Context, itemID int64, succeeded bool, itemErr *string) (*models.Job, error)
}

// Runner pulls items from the queue, runs them through the inference bridge,
// and reports outcomes. Any number of runners may operate concurrently; the
// claim contract guarantees each item is handed to exactly one of them.
type Runner struct {
	id        string
	queue     Coordinator
	inference inference.Client
	cfg       config.WorkerConfig
}

// NewRunner creates a worker Runner.
func NewRunner(id string, queue Coordinator, inf inference.Client, cfg config.WorkerConfig) *Runner {
	return &Runner{id: id, queue: queue, inference: inf, cfg: cfg}
}

// Run processes items until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("worker started", "worker_id", r.id)
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("worker stopping", "worker_id", r.id)
			return nil
		}

		item, err := r.queue.ClaimItem(ctx, r.id)
		if errors.Is(err, store.ErrNoItemAvailable) {
			if !r.sleep(ctx, r.cfg.PollInterval) {
				return nil
			}
			continue
		}
		if err != nil {
			slog.Error("claim failed", "worker_id", r.id, "error", err)
			if !r.sleep(ctx, r.cfg.PollInterval) {
				return nil
			}
			continue
		}

		r.process(ctx, item)
	}
}

// process runs one item and reports its outcome. The item is already claimed,
// so the outcome must be reported even when ctx is cancelled mid-caption.
func (r *Runner) process(ctx context.Context, item *models.JobItem) {
	_, err := r.inference.Caption(ctx, inference.CaptionRequest{
		ImagePath:   item.ImagePath,
		Perspective: item.Perspective,
	})

	var outcomeErr *string
	succeeded := err == nil
	if err != nil {
		msg := err.Error()
		outcomeErr = &msg
		slog.Warn("caption failed",
			"worker_id", r.id,
			"item_id", item.ID,
			"image", item.ImagePath,
			"perspective", item.Perspective,
			"error", err,
		)
	}

	if err := r.report(item.ID, succeeded, outcomeErr); err != nil {
		slog.Error("item outcome unresolved",
			"worker_id", r.id,
			"item_id", item.ID,
			"error", err,
		)
	}
}

// report retries the completion write until it lands or retries run out. A
// failed counter update must never be recorded as a failed captioning task,
// so transient store errors are retried with backoff; the item itself stays
// running until some attempt succeeds.
func (r *Runner) report(itemID int64, succeeded bool, outcomeErr *string) error {
	// Detached context: reporting must survive worker shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= r.cfg.ReportRetries; attempt++ {
		_, err := r.queue.CompleteItem(ctx, itemID, succeeded, outcomeErr)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrItemNotRunning) {
			// Someone else resolved the item; nothing left to report.
			return nil
		}
		lastErr = err
		time.Sleep(r.cfg.ReportBackoff * time.Duration(attempt))
	}
	return fmt.Errorf("reporting item %d after %d attempts: %w", itemID, r.cfg.ReportRetries, lastErr)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
