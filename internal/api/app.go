package api

import (
	"context"
	"fmt"
	"strings"

	"nightpass/internal/cache"
	"nightpass/internal/config"
	"nightpass/internal/database"
	"nightpass/internal/external"
	"nightpass/internal/logger"
	"nightpass/internal/messaging"
	"nightpass/internal/metrics"
	"nightpass/internal/repository"
	"nightpass/internal/search"
	"nightpass/internal/service"
)

// App is the infrastructure shared by one process: connections, clients and
// the services built on them.
type App struct {
	Config   *config.Config
	DB       *database.DB
	NATS     *messaging.NATSClient
	Cache    *cache.ValkeyClient
	Search   *search.ElasticsearchClient
	Email    *external.EmailClient
	Metrics  *metrics.Metrics
	Repos    *repository.Repositories
	Services *service.Services
}

// Bootstrap connects everything a binary needs. Postgres is mandatory; NATS,
// Valkey and Elasticsearch are optional and degrade to disabled on failure.
func Bootstrap(ctx context.Context, cfg *config.Config, name string) (*App, error) {
	log := logger.Get()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	app := &App{
		Config:  cfg,
		DB:      db,
		Metrics: metrics.New(name),
		Repos:   repository.NewRepositories(db),
	}

	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.NATS.Enabled {
		natsCfg := cfg.NATS
		natsCfg.ClientID = cfg.NATS.ClientID + "-" + name
		if app.NATS, err = messaging.NewNATSClient(natsCfg); err != nil {
			log.Warn("NATS unavailable, domain events are dropped", "error", err)
		} else {
			publisher = app.NATS
		}
	}

	if cfg.Valkey.Enabled {
		if app.Cache, err = cache.NewValkeyClient(cfg.Valkey); err != nil {
			log.Warn("Valkey unavailable, caching disabled", "error", err)
		}
	}

	if cfg.Elasticsearch.Enabled {
		if app.Search, err = search.NewElasticsearchClient(cfg.Elasticsearch); err != nil {
			log.Warn("Elasticsearch unavailable, search falls back to Postgres", "error", err)
		}
	}

	var payment *external.PaymentClient
	if cfg.Payment.TeamSlug != "" {
		payment = external.NewPaymentClient(cfg.Payment)
	}
	var identity *external.IdentityClient
	if cfg.Identity.Token != "" {
		identity = external.NewIdentityClient(cfg.Identity)
	}
	var storage *external.StorageClient
	if cfg.Storage.ServiceKey != "" {
		storage = external.NewStorageClient(cfg.Storage)
	}
	if cfg.Email.APIKey != "" {
		app.Email = external.NewEmailClient(cfg.Email)
	}

	app.Services = service.NewServices(service.Deps{
		Repos:     app.Repos,
		Publisher: publisher,
		Cache:     app.Cache,
		Search:    app.Search,
		Payment:   payment,
		Identity:  identity,
		Storage:   storage,
		Metrics:   app.Metrics,
		Options: service.Options{
			PendingTTL:         cfg.Reservations.PendingTTL,
			PaymentTimeout:     cfg.Reservations.PaymentTimeout,
			EventGracePeriod:   cfg.Reservations.EventGracePeriod,
			MaxTicketsPerOrder: cfg.Reservations.MaxTicketsPerOrder,
			PublicBaseURL:      cfg.PublicBaseURL,
			NotificationURL:    strings.TrimRight(cfg.LandingAPIURL, "/") + WebhookPath,
		},
	})

	log.Info("Application bootstrapped",
		"service", name,
		"nats", app.NATS != nil,
		"cache", app.Cache != nil,
		"search", app.Search != nil,
		"payments", payment != nil)
	return app, nil
}

// Close releases the connections in reverse order of creation.
func (a *App) Close() {
	log := logger.Get()
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Error("Error closing Valkey connection", "error", err)
		}
	}
	if a.NATS != nil {
		if err := a.NATS.Close(); err != nil {
			log.Error("Error closing NATS connection", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Error("Error closing database connection", "error", err)
		}
	}
}
