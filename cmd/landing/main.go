package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nightpass/internal/api"
	"nightpass/internal/config"
	"nightpass/internal/logger"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	app, err := api.Bootstrap(context.Background(), cfg, "landing")
	if err != nil {
		logger.Fatal("Failed to bootstrap landing", "error", err)
	}

	server := api.NewLandingServer(app)

	// Запускаем сервер в отдельной горутине
	go func() {
		log.Info("Starting landing server", "port", cfg.LandingPort)
		if err := server.Run(); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ждем сигнал для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Закрываем соединения
	app.Close()

	log.Info("Server stopped")
}
