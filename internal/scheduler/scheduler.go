// Package scheduler promotes due scheduled campaigns onto the dispatch queue.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/brightsend/wablast-backend/internal/model"
	"github.com/brightsend/wablast-backend/internal/queue"
	"github.com/brightsend/wablast-backend/internal/repository"
)

const claimBatchSize = 50

// Service polls for campaigns whose scheduled_at has arrived and publishes a
// dispatch job for each. Claiming flips the campaign to processing, so two
// pollers never double-dispatch the same campaign.
type Service struct {
	Campaigns repository.CampaignRepositoryInterface
	Queue     queue.Queue
	Log       *zap.SugaredLogger

	workerID string
	cron     *cron.Cron
	spec     string
}

// New builds a scheduler ticking on the given cron spec ("@every 30s" style).
func New(campaigns repository.CampaignRepositoryInterface, q queue.Queue, spec string, log *zap.SugaredLogger) *Service {
	return &Service{
		Campaigns: campaigns,
		Queue:     q,
		Log:       log,
		workerID:  fmt.Sprintf("scheduler-%s", uuid.New().String()[:8]),
		spec:      spec,
	}
}

func (s *Service) Start() error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already running")
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		s.cron = nil
		return fmt.Errorf("register poll job %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.Log.Infow("scheduler started", "worker_id", s.workerID, "poll", s.spec)
	return nil
}

// Stop halts polling and waits for an in-flight tick to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.Log.Infow("scheduler stopped", "worker_id", s.workerID)
}

func (s *Service) tick() {
	ids, err := s.Campaigns.ClaimDue(time.Now(), claimBatchSize)
	if err != nil {
		s.Log.Errorw("claim due campaigns", "error", err)
		return
	}
	for _, id := range ids {
		if err := s.Queue.Publish(context.Background(), queue.Job{CampaignID: id}); err != nil {
			s.Log.Errorw("enqueue dispatch", "campaign_id", id, "error", err)
			// put the claim back so the next tick retries it
			if _, rbErr := s.Campaigns.UpdateStatusFrom(id,
				[]string{model.StatusProcessing}, model.StatusScheduled); rbErr != nil {
				s.Log.Errorw("rollback claim", "campaign_id", id, "error", rbErr)
			}
			continue
		}
		s.Log.Infow("campaign due, dispatched", "campaign_id", id)
	}
}
