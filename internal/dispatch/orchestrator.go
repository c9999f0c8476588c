package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brightsend/wablast-backend/internal/model"
)

// Result is the ephemeral outcome of one attempted send.
type Result struct {
	ItemID            int
	Recipient         string
	Success           bool
	Error             string
	ProviderMessageID string
}

// Outcome aggregates one run. Sent+Failed equals the number of items actually
// attempted; items skipped by a stop remain pending.
type Outcome struct {
	Sent    int
	Failed  int
	Stopped bool
}

// TerminalStatus maps a finished run onto the campaign state machine:
// a stop yields cancelled, at least one success yields completed, and a run
// where every attempted item failed yields failed.
func (o Outcome) TerminalStatus() string {
	switch {
	case o.Stopped:
		return model.StatusCancelled
	case o.Sent > 0:
		return model.StatusCompleted
	default:
		return model.StatusFailed
	}
}

// SendFunc is the externally supplied single-message send primitive. It is
// called at most once per item per run; failures are ordinary per-item
// outcomes, never fatal to the run.
type SendFunc func(ctx context.Context, item model.CampaignItem) Result

// Options carries the pacing policy and the caller's event sinks. All
// callbacks are invoked synchronously from the run's own goroutine; marshaling
// to other execution contexts is the caller's responsibility.
type Options struct {
	Delay DelayPolicy

	// Stop is polled together with ctx at the top of each iteration.
	// Cancellation is cooperative: an in-flight send always finishes.
	Stop func() bool

	OnProgress     func(current, total int, label string)
	OnItemComplete func(Result)

	// Wait overrides the inter-send pause; tests substitute an instant wait.
	Wait func(ctx context.Context, d time.Duration) error
}

// Orchestrator drives one campaign run: strictly sequential, one item in
// flight at a time.
type Orchestrator struct {
	log *zap.SugaredLogger
}

func NewOrchestrator(log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{log: log}
}

// Run iterates items in order, pacing between sends and reporting each
// attempt. It returns the counts for items actually attempted.
func (o *Orchestrator) Run(ctx context.Context, items []model.CampaignItem, send SendFunc, opts Options) Outcome {
	wait := opts.Wait
	if wait == nil {
		wait = sleep
	}
	total := len(items)
	var out Outcome

	for i, item := range items {
		if stopped(ctx, opts.Stop) {
			out.Stopped = true
			break
		}
		if i > 0 {
			if err := wait(ctx, opts.Delay.NextDelay()); err != nil {
				out.Stopped = true
				break
			}
			// the stop may have flipped while waiting
			if stopped(ctx, opts.Stop) {
				out.Stopped = true
				break
			}
		}

		res := send(ctx, item)
		res.ItemID = item.ID
		res.Recipient = item.Recipient
		if res.Success {
			out.Sent++
		} else {
			out.Failed++
			o.log.Debugw("send failed", "recipient", item.Recipient, "error", res.Error)
		}

		if opts.OnItemComplete != nil {
			opts.OnItemComplete(res)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total, fmt.Sprintf("%d of %d processed", i+1, total))
		}
	}
	return out
}

func stopped(ctx context.Context, stop func() bool) bool {
	if ctx.Err() != nil {
		return true
	}
	return stop != nil && stop()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
