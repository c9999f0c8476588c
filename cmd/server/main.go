// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/brightsend/wablast-backend/internal/config"
	"github.com/brightsend/wablast-backend/internal/controller"
	"github.com/brightsend/wablast-backend/internal/db"
	"github.com/brightsend/wablast-backend/internal/dispatch"
	"github.com/brightsend/wablast-backend/internal/logging"
	"github.com/brightsend/wablast-backend/internal/queue"
	"github.com/brightsend/wablast-backend/internal/repository"
	"github.com/brightsend/wablast-backend/internal/scheduler"
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

	campaignRepo := &repository.CampaignRepository{DB: conn}
	itemRepo := &repository.CampaignItemRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	creditRepo := &repository.CreditRepository{DB: conn}

	var q queue.Queue
	if cfg.QueueURL != "" {
		amqpQueue, err := queue.NewAMQP(cfg.QueueURL, cfg.QueueName, logger)
		if err != nil {
			logger.Fatalw("connect queue", "error", err)
		}
		defer amqpQueue.Close()
		q = amqpQueue
	} else {
		// no broker configured: dispatch in-process
		inMem := queue.NewInMemory()
		q = inMem

		var snd sender.Sender = &sender.Mock{}
		if cfg.GatewayURL != "" {
			snd = sender.NewGateway(cfg.GatewayURL, cfg.GatewayToken)
		}
		dispatchSvc := &service.DispatchService{
			Campaigns: campaignRepo,
			Items:     itemRepo,
			Sender:    snd,
			Orch:      dispatch.NewOrchestrator(logger),
			Dispatch:  cfg.Dispatch,
			Log:       logger,
		}
		if cfg.Dispatch.GlobalRatePerSec > 0 {
			dispatchSvc.Limiter = rate.NewLimiter(rate.Limit(cfg.Dispatch.GlobalRatePerSec), cfg.Dispatch.GlobalRatePerSec)
		}
		go func() {
			err := inMem.Consume(context.Background(), func(ctx context.Context, job queue.Job) error {
				if err := dispatchSvc.RunCampaign(ctx, job.CampaignID); err != nil {
					logger.Errorw("dispatch run failed", "campaign_id", job.CampaignID, "error", err)
				}
				return nil
			})
			logger.Errorw("in-memory consumer stopped", "error", err)
		}()
	}

	campaignService := &service.CampaignService{
		Campaigns: campaignRepo,
		Items:     itemRepo,
		Contacts:  contactRepo,
		Credits:   creditRepo,
		Queue:     q,
		Dispatch:  cfg.Dispatch,
		Log:       logger,
	}

	sched := scheduler.New(campaignRepo, q, cfg.SchedulerPollEvery, logger)
	if err := sched.Start(); err != nil {
		logger.Fatalw("start scheduler", "error", err)
	}
	defer sched.Stop()

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
	r.Get("/campaigns/{id}/items", campaignController.ListCampaignItems)
	r.Post("/campaigns/{id}/dispatch", campaignController.DispatchCampaign)
	r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)
	r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)
	r.Post("/campaigns/{id}/resume", campaignController.ResumeCampaign)
	r.Post("/campaigns/{id}/preview", campaignController.PersonalizedPreview)
	r.Get("/schedule/suggest", campaignController.SuggestSmartTime)

	logger.Infow("server running", "addr", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Fatalw("server stopped", "error", err)
	}
}
