package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nightpass/internal/handlers"
	"nightpass/internal/logger"
	"nightpass/internal/metrics"
	"nightpass/internal/middleware"
	"nightpass/internal/models"
	"nightpass/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// WebhookPath is where the payment gateway posts notifications.
const WebhookPath = "/api/public/payments/webhook"

var (
	allRoles     = []string{models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleDoor, models.RolePromoter}
	managerRoles = []string{models.RoleOwner, models.RoleAdmin, models.RoleManager}
	doorRoles    = []string{models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleDoor}
	adminRoles   = []string{models.RoleOwner, models.RoleAdmin}
)

// Server представляет HTTP сервер одного из фронтов (backoffice или landing)
type Server struct {
	name       string
	router     *gin.Engine
	httpServer *http.Server
	app        *App
}

// Limiters groups the public endpoint limiters; nil entries are not limited.
type Limiters struct {
	Reservations ratelimit.Limiter
	Checkout     ratelimit.Limiter
	Lookup       ratelimit.Limiter
}

func newServer(app *App, name, port string) *Server {
	gin.SetMode(app.Config.GinMode)

	router := gin.New()
	// Rate limits are keyed by ClientIP, so forwarded headers count only
	// from configured proxies.
	if err := router.SetTrustedProxies(app.Config.TrustedProxies); err != nil {
		logger.Get().Error("Invalid TRUSTED_PROXIES, trusting no proxy", "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(app.Config.AllowedOrigins))
	router.Use(middleware.Logger())
	router.Use(app.Metrics.Middleware())

	s := &Server{
		name:   name,
		router: router,
		app:    app,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      app.Config.RequestTimeout + 5*time.Second,
	}

	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	return s
}

// NewBackofficeServer builds the staff-facing API.
func NewBackofficeServer(app *App) *Server {
	s := newServer(app, "backoffice", app.Config.BackofficePort)
	BackofficeRoutes(s.router, handlers.NewHandlers(app.Services), middleware.AuthConfig{
		Secret: app.Config.Auth.JWTSecret,
		Issuer: app.Config.Auth.Issuer,
	}, app.Services.Staff)
	return s
}

// NewLandingServer builds the public API used by the landing site.
func NewLandingServer(app *App) *Server {
	s := newServer(app, "landing", app.Config.LandingPort)
	LandingRoutes(s.router, handlers.NewHandlers(app.Services), app.Services.Tenants, app.limiters(), app.Metrics)
	return s
}

func (a *App) limiters() Limiters {
	rl := a.Config.RateLimit
	if !rl.Enabled {
		return Limiters{}
	}
	build := func(limit int) ratelimit.Limiter {
		if rl.Store == "redis" && a.Cache != nil {
			return ratelimit.NewRedisLimiter(a.Cache.Redis(), limit, rl.Window)
		}
		return ratelimit.NewMemoryLimiter(limit, rl.Window)
	}
	return Limiters{
		Reservations: build(rl.ReservationLimit),
		Checkout:     build(rl.CheckoutLimit),
		Lookup:       build(rl.LookupLimit),
	}
}

// BackofficeRoutes регистрирует роуты бэкофиса. Все роуты под /api требуют
// JWT, tenant берется из записи сотрудника.
func BackofficeRoutes(r *gin.Engine, h *handlers.Handlers, auth middleware.AuthConfig, staff middleware.StaffResolver) {
	api := r.Group("/api")
	api.Use(middleware.Auth(auth, staff))

	// Read access for every role
	read := api.Group("", middleware.RequireRole(allRoles...))
	{
		read.GET("/me", h.Me)
		read.GET("/events", h.ListEvents)
		read.GET("/events/:id", h.GetEvent)
		read.GET("/events/:id/availability", h.EventAvailability)
		read.GET("/tables", h.ListTables)
		read.GET("/tables/:id", h.GetTable)
		read.GET("/tables/:id/products", h.ListTableProducts)
	}

	// Door staff: check-in and the guest list
	door := api.Group("", middleware.RequireRole(doorRoles...))
	{
		door.GET("/tickets", h.ListTickets)
		door.POST("/tickets/scan", h.ScanTicket)
		door.GET("/reservations", h.ListReservations)
		door.GET("/reservations/:id", h.GetReservation)
	}

	manage := api.Group("", middleware.RequireRole(managerRoles...))
	{
		// Events
		manage.POST("/events", h.CreateEvent)
		manage.PATCH("/events/:id", h.UpdateEvent)
		manage.DELETE("/events/:id", h.ArchiveEvent)
		manage.POST("/events/:id/flyer", h.UploadEventFlyer)
		manage.PUT("/events/:id/general-code", h.SetGeneralCode)
		manage.GET("/events/:id/code-batches", h.ListCodeBatches)
		manage.GET("/events/:id/promoter-stats", h.PromoterStats)
		manage.GET("/events/:id/reservations/export", h.ExportReservations)
		manage.GET("/events/:id/tickets/export", h.ExportTickets)

		// Tables and products
		manage.POST("/tables", h.CreateTable)
		manage.PATCH("/tables/:id", h.UpdateTable)
		manage.DELETE("/tables/:id", h.ArchiveTable)
		manage.POST("/tables/:id/products", h.CreateTableProduct)
		manage.PATCH("/table-products/:id", h.UpdateTableProduct)
		manage.DELETE("/table-products/:id", h.ArchiveTableProduct)

		// Reservations
		manage.POST("/reservations", h.CreateReservation)
		manage.PATCH("/reservations/:id/status", h.ChangeReservationStatus)
		manage.DELETE("/reservations/:id", h.ArchiveReservation)

		// Codes
		manage.POST("/codes/batches", h.GenerateCodes)
		manage.GET("/codes", h.ListCodes)
		manage.DELETE("/codes/:id", h.ArchiveCode)
		manage.DELETE("/codes/batches/:id", h.ArchiveCodeBatch)

		// Promoters
		manage.POST("/promoters", h.CreatePromoter)
		manage.GET("/promoters", h.ListPromoters)
		manage.GET("/promoters/:id", h.GetPromoter)
		manage.PATCH("/promoters/:id", h.UpdatePromoter)
		manage.DELETE("/promoters/:id", h.ArchivePromoter)

		// Persons
		manage.GET("/persons", h.ListPersons)
		manage.GET("/persons/dni/:dni", h.LookupPerson)

		// Tickets
		manage.POST("/tickets/courtesy", h.IssueCourtesyTickets)
		manage.POST("/tickets/:id/cancel", h.CancelTicket)

		// Settings
		manage.GET("/settings/brand", h.GetBrandSettings)
		manage.PUT("/settings/brand", h.UpsertBrandSettings)
		manage.POST("/settings/brand/logo", h.UploadBrandLogo)
		manage.GET("/settings/layout", h.GetLayoutSettings)
		manage.PUT("/settings/layout", h.UpsertLayoutSettings)
		manage.POST("/settings/layout/background", h.UploadLayoutBackground)
	}

	admin := api.Group("/staff", middleware.RequireRole(adminRoles...))
	{
		admin.GET("", h.ListStaff)
		admin.POST("", h.CreateStaff)
		admin.PATCH("/:id", h.UpdateStaff)
		admin.DELETE("/:id", h.ArchiveStaff)
	}
}

// LandingRoutes регистрирует публичные роуты. Tenant берется из slug в пути.
func LandingRoutes(r *gin.Engine, h *handlers.Handlers, tenants middleware.TenantResolver, limiters Limiters, m *metrics.Metrics) {
	r.POST(WebhookPath, h.PaymentWebhook)

	public := r.Group("/api/public/:tenant")
	public.Use(middleware.Tenant(tenants))
	{
		public.GET("/site", h.PublicSite)
		public.GET("/events", h.ListPublicEvents)
		public.GET("/events/:id", h.GetPublicEvent)
		public.GET("/events/:id/availability", h.PublicAvailability)

		reservations := middleware.RateLimit(limiters.Reservations, "reservations", m)
		public.POST("/reservations", reservations, h.CreatePublicReservation)
		public.POST("/reservations/:id/voucher", reservations, h.UploadVoucher)

		lookup := middleware.RateLimit(limiters.Lookup, "lookup", m)
		public.POST("/codes/validate", lookup, h.ValidateCode)
		public.GET("/persons/:dni", lookup, h.LookupPublicPerson)

		public.POST("/checkout", middleware.RateLimit(limiters.Checkout, "checkout", m), h.Checkout)
		public.GET("/checkout/:order", h.CheckoutStatus)
	}
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	health := s.app.DB.HealthCheck(ctx)
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	deps := gin.H{"database": health}
	if s.app.Search != nil {
		deps["search"] = "healthy"
		if err := s.app.Search.HealthCheck(ctx); err != nil {
			deps["search"] = "unhealthy"
		}
	}
	if s.app.Cache != nil {
		deps["cache"] = "healthy"
		if err := s.app.Cache.Redis().Ping(ctx).Err(); err != nil {
			deps["cache"] = "unhealthy"
		}
	}

	c.JSON(status, gin.H{
		"status":       health.Status,
		"service":      "nightpass-" + s.name,
		"dependencies": deps,
	})
}

// Run запускает HTTP сервер и блокируется до Shutdown.
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown дожидается завершения активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router возвращает роутер для тестирования
func (s *Server) Router() *gin.Engine {
	return s.router
}
