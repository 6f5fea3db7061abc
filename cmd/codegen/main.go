package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"nightpass/internal/api"
	"nightpass/internal/config"
	"nightpass/internal/logger"
	"nightpass/internal/models"
	"nightpass/internal/reports"
	"nightpass/internal/timezone"
)

var (
	tenantSlug = flag.String("tenant", "", "Tenant slug (required)")
	eventID    = flag.String("event", "", "Event ID (required)")
	codeType   = flag.String("type", models.CodeTypeCourtesy, "Code type: courtesy, promoter, table or discount")
	quantity   = flag.Int("quantity", 10, "Number of codes to generate")
	prefix     = flag.String("prefix", "", "Optional code prefix")
	promoterID = flag.String("promoter", "", "Promoter ID, required for promoter codes")
	maxUses    = flag.Int("max-uses", 1, "Redemptions allowed per code")
	expires    = flag.String("expires", "", "Last valid day in Lima time, YYYY-MM-DD")
	actorID    = flag.String("actor", "", "Staff ID recorded as creator")
	outFile    = flag.String("out", "", "Write the batch to this .xlsx file instead of stdout")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if *tenantSlug == "" || *eventID == "" {
		flag.Usage()
		os.Exit(2)
	}

	req := &models.GenerateCodesRequest{
		EventID:  *eventID,
		Type:     *codeType,
		Quantity: *quantity,
		Prefix:   *prefix,
		MaxUses:  *maxUses,
	}
	if *promoterID != "" {
		req.PromoterID = promoterID
	}
	if *expires != "" {
		t, err := timezone.LocalToUTC(*expires, "23:59:59")
		if err != nil {
			logger.Fatal("Invalid -expires", "error", err)
		}
		req.ExpiresAt = &t
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	app, err := api.Bootstrap(ctx, cfg, "codegen")
	if err != nil {
		logger.Fatal("Failed to bootstrap", "error", err)
	}

	err = run(ctx, app, req)
	app.Close()
	if err != nil {
		logger.Fatal("Code generation failed", "error", err)
	}
}

func run(ctx context.Context, app *api.App, req *models.GenerateCodesRequest) error {
	tenant, err := app.Services.Tenants.Resolve(ctx, *tenantSlug)
	if err != nil {
		return fmt.Errorf("failed to resolve tenant: %w", err)
	}
	event, err := app.Services.Events.Get(ctx, tenant.ID, req.EventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}

	batch, err := app.Services.Codes.Generate(ctx, tenant.ID, *actorID, req)
	if err != nil {
		return err
	}
	logger.Get().Info("Code batch generated",
		"batch_id", batch.BatchID,
		"event", event.Name,
		"type", batch.Type,
		"count", len(batch.Codes))

	if *outFile == "" {
		for _, c := range batch.Codes {
			fmt.Println(c.Code)
		}
		return nil
	}

	data, err := reports.Codes(event, batch)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *outFile, err)
	}
	logger.Get().Info("Batch written", "file", *outFile)
	return nil
}
