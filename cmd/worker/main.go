// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/brightsend/wablast-backend/internal/config"
	"github.com/brightsend/wablast-backend/internal/db"
	"github.com/brightsend/wablast-backend/internal/dispatch"
	"github.com/brightsend/wablast-backend/internal/logging"
	"github.com/brightsend/wablast-backend/internal/queue"
	"github.com/brightsend/wablast-backend/internal/repository"
	"github.com/brightsend/wablast-backend/internal/sender"
	"github.com/brightsend/wablast-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config:", err)
	}
	if cfg.QueueURL == "" {
		log.Fatal("QUEUE_URL is required for the worker")
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("init logger:", err)
	}
	defer logger.Sync()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("connect database", "error", err)
	}
	defer conn.Close()

	q, err := queue.NewAMQP(cfg.QueueURL, cfg.QueueName, logger)
	if err != nil {
		logger.Fatalw("connect queue", "error", err)
	}
	defer q.Close()

	var snd sender.Sender = &sender.Mock{}
	if cfg.GatewayURL != "" {
		snd = sender.NewGateway(cfg.GatewayURL, cfg.GatewayToken)
	}

	dispatchSvc := &service.DispatchService{
		Campaigns: &repository.CampaignRepository{DB: conn},
		Items:     &repository.CampaignItemRepository{DB: conn},
		Sender:    snd,
		Orch:      dispatch.NewOrchestrator(logger),
		Dispatch:  cfg.Dispatch,
		Log:       logger,
	}
	if cfg.Dispatch.GlobalRatePerSec > 0 {
		dispatchSvc.Limiter = rate.NewLimiter(rate.Limit(cfg.Dispatch.GlobalRatePerSec), cfg.Dispatch.GlobalRatePerSec)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infow("worker running", "queue", cfg.QueueName)
	err = q.Consume(ctx, func(ctx context.Context, job queue.Job) error {
		if err := dispatchSvc.RunCampaign(ctx, job.CampaignID); err != nil {
			logger.Errorw("dispatch run failed", "campaign_id", job.CampaignID, "error", err)
			return err
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Fatalw("consumer stopped", "error", err)
	}
	logger.Infow("worker shut down")
}
