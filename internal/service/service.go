package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"nightpass/internal/cache"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/external"
	"nightpass/internal/logger"
	"nightpass/internal/messaging"
	"nightpass/internal/metrics"
	"nightpass/internal/models"
	"nightpass/internal/repository"
	"nightpass/internal/search"
)

// Options are the business settings shared by the services.
type Options struct {
	PendingTTL         time.Duration
	PaymentTimeout     time.Duration
	EventGracePeriod   time.Duration
	MaxTicketsPerOrder int
	// Landing URL the gateway redirects buyers back to.
	PublicBaseURL string
	// Public URL of the payment webhook.
	NotificationURL string
}

// Deps are the collaborators of the services. Cache and Search are nil when
// the integration is disabled.
type Deps struct {
	Repos     *repository.Repositories
	Publisher messaging.Publisher
	Cache     *cache.ValkeyClient
	Search    *search.ElasticsearchClient
	Payment   *external.PaymentClient
	Identity  *external.IdentityClient
	Storage   *external.StorageClient
	Metrics   *metrics.Metrics
	Options   Options
}

type Services struct {
	Tenants      *TenantService
	Staff        *StaffService
	Events       *EventService
	Tables       *TableService
	Reservations *ReservationService
	Codes        *CodeService
	Promoters    *PromoterService
	Persons      *PersonService
	Tickets      *TicketService
	Settings     *SettingsService
}

func NewServices(d Deps) *Services {
	if d.Publisher == nil {
		d.Publisher = messaging.NopPublisher{}
	}
	d.Options = d.Options.withDefaults()

	codes := NewCodeService(d.Repos.Codes, d.Repos.Events, d.Repos.Promoters, d.Metrics, d.Options)

	return &Services{
		Tenants:      NewTenantService(d.Repos.Tenants, d.Cache),
		Staff:        NewStaffService(d.Repos.Staff),
		Events:       NewEventService(d.Repos.Events, d.Cache, d.Search, d.Storage, d.Options),
		Tables:       NewTableService(d.Repos.Tables, d.Repos.Products),
		Reservations: NewReservationService(d.Repos.Reservations, d.Repos.Events, d.Repos.Tables, codes, d.Storage, d.Publisher, d.Metrics, d.Options),
		Codes:        codes,
		Promoters:    NewPromoterService(d.Repos.Promoters, d.Repos.Events),
		Persons:      NewPersonService(d.Repos.Persons, d.Cache, d.Identity),
		Tickets:      NewTicketService(d.Repos.Tickets, d.Repos.Payments, d.Repos.Events, codes, d.Payment, d.Publisher, d.Metrics, d.Options),
		Settings:     NewSettingsService(d.Repos.Settings, d.Repos.Tables, d.Storage),
	}
}

func (o Options) withDefaults() Options {
	if o.PendingTTL <= 0 {
		o.PendingTTL = 24 * time.Hour
	}
	if o.PaymentTimeout <= 0 {
		o.PaymentTimeout = 15 * time.Minute
	}
	if o.EventGracePeriod < 0 {
		o.EventGracePeriod = 0
	}
	if o.MaxTicketsPerOrder <= 0 {
		o.MaxTicketsPerOrder = 10
	}
	return o
}

// publish sends a domain event; a failure is logged and never fails the request.
func publish(ctx context.Context, p messaging.Publisher, subject string, data interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err,
			"event_type", subject)
	}
}

// ValidID reports whether s is a UUID.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func requireID(entity, id string) error {
	if !ValidID(id) {
		return apperrors.Invalid("invalid %s id", entity)
	}
	return nil
}

// normalizePage clamps page to >= 1 and pageSize to [1, MaxPageSize].
func normalizePage(p models.Pagination) models.Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = models.DefaultPageSize
	}
	if p.PageSize > models.MaxPageSize {
		p.PageSize = models.MaxPageSize
	}
	return p
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

const maxUploadSize = 5 << 20

var (
	imageTypes   = []string{"image/png", "image/jpeg", "image/webp"}
	voucherTypes = []string{"image/png", "image/jpeg", "image/webp", "application/pdf"}
)

var extensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// checkUpload sniffs the content type of an upload and returns it when allowed.
func checkUpload(u *models.Upload, allowed []string) (string, error) {
	if u == nil || len(u.Data) == 0 {
		return "", apperrors.Invalid("file is required")
	}
	if len(u.Data) > maxUploadSize {
		return "", apperrors.Invalid("file exceeds %d MB", maxUploadSize>>20)
	}

	detected := http.DetectContentType(u.Data)
	if i := strings.Index(detected, ";"); i >= 0 {
		detected = detected[:i]
	}
	for _, t := range allowed {
		if t == detected {
			return detected, nil
		}
	}
	return "", apperrors.Invalid("unsupported file type %s", detected)
}

// objectPath builds a unique storage key under the tenant folder.
func objectPath(tenantID, prefix, contentType string) string {
	return tenantID + "/" + prefix + "-" + uuid.New().String() + extensions[contentType]
}
