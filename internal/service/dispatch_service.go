// internal/service/dispatch_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brightsend/wablast-backend/internal/config"
	"github.com/brightsend/wablast-backend/internal/dispatch"
	"github.com/brightsend/wablast-backend/internal/model"
	"github.com/brightsend/wablast-backend/internal/repository"
	"github.com/brightsend/wablast-backend/internal/schedule"
	"github.com/brightsend/wablast-backend/internal/sender"
)

// DispatchService glues the dispatch core to storage and the send primitive:
// it loads the pending items, runs the orchestrator, persists per-item
// outcomes and counters incrementally, applies the terminal status, and
// re-arms recurring campaigns.
type DispatchService struct {
	Campaigns repository.CampaignRepositoryInterface
	Items     repository.CampaignItemRepositoryInterface
	Sender    sender.Sender
	Orch      *dispatch.Orchestrator
	Dispatch  config.DispatchConfig
	Log       *zap.SugaredLogger

	// Limiter is the optional process-wide outbound cap shared across all
	// concurrent campaign runs. It supplements, never replaces, per-campaign
	// pacing.
	Limiter *rate.Limiter

	// OnProgress, when set, receives the run's progress events so a host can
	// stream them; the callback runs on the dispatch goroutine.
	OnProgress func(campaignID, current, total int, label string)

	// Wait overrides the inter-send pause, mirroring dispatch.Options.Wait.
	Wait func(ctx context.Context, d time.Duration) error

	Now func() time.Time
}

func (s *DispatchService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RunCampaign executes one dispatch run. Per-item send failures are routine;
// the returned error reports only run-level fatal conditions (the persistence
// collaborator failing, or the host context being cancelled mid-run).
func (s *DispatchService) RunCampaign(ctx context.Context, campaignID int) error {
	c, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return err
	}
	if c.Terminal() {
		s.Log.Infow("skipping terminal campaign", "campaign_id", c.ID, "status", c.Status)
		return nil
	}

	started, err := s.Campaigns.UpdateStatusFrom(c.ID,
		[]string{model.StatusDraft, model.StatusScheduled, model.StatusProcessing, model.StatusPaused},
		model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("start campaign %d: %w", c.ID, err)
	}
	if !started {
		return nil
	}

	items, err := s.Items.ListPending(c.ID)
	if err != nil {
		return fmt.Errorf("load items for campaign %d: %w", c.ID, err)
	}
	if len(items) == 0 {
		return s.finalize(c, dispatch.Outcome{Sent: c.SentCount, Failed: c.FailedCount})
	}

	templates := c.TemplateBodies()
	policy := s.delayPolicy(c)

	// a persistence failure aborts the whole run; the flag doubles as the
	// stop signal so no further sends start
	var persistErr error

	opts := dispatch.Options{
		Delay: policy,
		Wait:  s.Wait,
		Stop: func() bool {
			if persistErr != nil {
				return true
			}
			status, err := s.Campaigns.GetStatus(c.ID)
			if err != nil {
				persistErr = err
				return true
			}
			return status == model.StatusCancelled || status == model.StatusPaused
		},
		OnItemComplete: func(r dispatch.Result) {
			status := model.ItemSent
			sent, failed := 1, 0
			if !r.Success {
				status = model.ItemFailed
				sent, failed = 0, 1
			}
			if err := s.Items.UpdateStatus(r.ItemID, status, r.Error); err != nil {
				persistErr = fmt.Errorf("record item %d: %w", r.ItemID, err)
				return
			}
			if err := s.Campaigns.IncrementCounters(c.ID, sent, failed); err != nil {
				persistErr = fmt.Errorf("update counters: %w", err)
			}
		},
		OnProgress: func(current, total int, label string) {
			s.Log.Debugw("campaign progress", "campaign_id", c.ID,
				"current", current, "total", total, "label", label)
			if s.OnProgress != nil {
				s.OnProgress(c.ID, current, total, label)
			}
		},
	}

	send := func(ctx context.Context, templateIndex int, item model.CampaignItem) dispatch.Result {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return dispatch.Result{Error: err.Error()}
			}
		}
		body := RenderTemplate(templates[templateIndex], ContactVars(item.DisplayName, item.Recipient))
		payload := sender.Payload{
			Message:  body,
			MediaRef: c.MediaRef,
			LinkURL:  c.LinkURL,
			Buttons:  c.Buttons,
		}
		providerID, err := s.Sender.SendOne(ctx, c.InstanceID, item.Recipient, payload)
		if err != nil {
			return dispatch.Result{Error: err.Error()}
		}
		return dispatch.Result{Success: true, ProviderMessageID: providerID}
	}

	outcome, err := s.Orch.RunMulti(ctx, templates, items, send, opts)
	if err != nil {
		s.Campaigns.UpdateStatus(c.ID, model.StatusFailed)
		return fmt.Errorf("campaign %d: %w", c.ID, err)
	}
	if persistErr != nil {
		// best-effort terminal mark; already-processed items keep their
		// last-known state, unattempted items stay pending
		s.Campaigns.UpdateStatus(c.ID, model.StatusFailed)
		return fmt.Errorf("campaign %d aborted: %w", c.ID, persistErr)
	}

	if outcome.Stopped {
		return s.finishStopped(ctx, c, outcome)
	}
	return s.finalize(c, outcome)
}

func (s *DispatchService) delayPolicy(c *model.Campaign) dispatch.DelayPolicy {
	policy := dispatch.DelayPolicy{
		MinDelay: c.MinDelay,
		MaxDelay: c.MaxDelay,
		Throttle: dispatch.ThrottleConfig{
			Enabled:      c.ThrottleEnabled,
			Rate:         c.ThrottleRate,
			DelaySeconds: c.ThrottleDelay,
		},
	}
	if policy.MinDelay == 0 && policy.MaxDelay == 0 {
		policy.MinDelay = s.Dispatch.DefaultMinDelay
		policy.MaxDelay = s.Dispatch.DefaultMaxDelay
	}
	return policy
}

// finishStopped resolves a stopped run: a user cancel or pause keeps the
// status the user set; a host shutdown leaves the campaign processing and
// surfaces the context error so the job can be retried.
func (s *DispatchService) finishStopped(ctx context.Context, c *model.Campaign, outcome dispatch.Outcome) error {
	status, err := s.Campaigns.GetStatus(c.ID)
	if err != nil {
		return err
	}
	switch status {
	case model.StatusCancelled, model.StatusPaused:
		s.Log.Infow("campaign stopped", "campaign_id", c.ID, "status", status,
			"sent", outcome.Sent, "failed", outcome.Failed)
		return nil
	default:
		return fmt.Errorf("campaign %d interrupted: %w", c.ID, ctx.Err())
	}
}

func (s *DispatchService) finalize(c *model.Campaign, outcome dispatch.Outcome) error {
	status := outcome.TerminalStatus()
	s.Log.Infow("campaign finished", "campaign_id", c.ID, "status", status,
		"sent", outcome.Sent, "failed", outcome.Failed)

	if status == model.StatusCompleted && c.RecurrencePattern != nil {
		return s.rearm(c)
	}
	if _, err := s.Campaigns.UpdateStatusFrom(c.ID, []string{model.StatusProcessing}, status); err != nil {
		return fmt.Errorf("finalize campaign %d: %w", c.ID, err)
	}
	return nil
}

// rearm computes the next run of a recurring campaign and returns it to the
// pending queue with a fresh item set.
func (s *DispatchService) rearm(c *model.Campaign) error {
	pattern, err := schedule.ParsePattern(*c.RecurrencePattern)
	if err != nil {
		s.Campaigns.UpdateStatus(c.ID, model.StatusCompleted)
		return fmt.Errorf("campaign %d recurrence: %w", c.ID, err)
	}
	loc := time.UTC
	if c.Timezone != "" {
		if l, err := time.LoadLocation(c.Timezone); err == nil {
			loc = l
		}
	}
	next, err := pattern.NextRun(s.now().In(loc))
	if err != nil {
		s.Campaigns.UpdateStatus(c.ID, model.StatusCompleted)
		return fmt.Errorf("campaign %d recurrence: %w", c.ID, err)
	}

	if err := s.Items.ResetToPending(c.ID); err != nil {
		return fmt.Errorf("re-arm campaign %d: %w", c.ID, err)
	}
	if err := s.Campaigns.ResetCounters(c.ID); err != nil {
		return fmt.Errorf("re-arm campaign %d: %w", c.ID, err)
	}
	if err := s.Campaigns.UpdateSchedule(c.ID, next, model.StatusScheduled); err != nil {
		return fmt.Errorf("re-arm campaign %d: %w", c.ID, err)
	}
	s.Log.Infow("recurring campaign re-armed", "campaign_id", c.ID, "next_run", next)
	return nil
}
