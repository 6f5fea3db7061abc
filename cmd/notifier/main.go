package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nightpass/cmd/notifier/jobs"
	"nightpass/internal/api"
	"nightpass/internal/config"
	"nightpass/internal/consumers"
	"nightpass/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()
	log.Info("Starting notifier service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := api.Bootstrap(ctx, cfg, "notifier")
	if err != nil {
		logger.Fatal("Failed to bootstrap notifier", "error", err)
	}
	defer app.Close()

	var mailer consumers.Mailer = consumers.LogMailer{}
	if app.Email != nil {
		mailer = app.Email
	}

	var consumerService *consumers.ConsumerService
	if app.NATS != nil {
		consumerService = consumers.NewConsumerService(app.NATS, consumers.NewHandlers(app.Repos, mailer, cfg.PublicBaseURL))
		if err := consumerService.Start(); err != nil {
			logger.Fatal("Failed to start consumers", "error", err)
		}
	} else {
		log.Warn("NATS is disabled, only the expiration job runs")
	}

	job := jobs.NewExpirationJob(cfg.Reservations.ExpirationInterval, app.Services.Reservations, app.Services.Tickets)
	job.Start(ctx)

	log.Info("Notifier service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notifier service...")
	job.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if consumerService != nil {
		if err := consumerService.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during shutdown", "error", err)
		}
	}

	log.Info("Notifier service stopped")
}
