package main

import (
	"context"
	"flag"
	"os"
	"time"

	"nightpass/internal/logger"
	"nightpass/internal/validation"
)

func main() {
	var cfg validation.Config
	flag.StringVar(&cfg.LandingURL, "landing", "http://localhost:8082", "Landing API base URL (empty to skip)")
	flag.StringVar(&cfg.BackofficeURL, "backoffice", "http://localhost:8081", "Backoffice API base URL (empty to skip)")
	flag.StringVar(&cfg.Tenant, "tenant", "demo", "Tenant slug for landing routes")
	flag.StringVar(&cfg.Token, "token", os.Getenv("SMOKE_STAFF_TOKEN"), "Staff access token for authenticated checks")
	flag.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.Parse()

	logger.Init("info", "text")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := validation.NewSmokeValidator(cfg).ValidateAll(ctx); err != nil {
		logger.Fatal("❌ Валидация не пройдена", "error", err)
	}
	logger.Get().Info("✅ Валидация успешно пройдена!")
}
