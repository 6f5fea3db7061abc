package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant is a venue operating its own landing site.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Slug      string    `json:"slug" db:"slug"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
)

// Event represents a night at the venue
type Event struct {
	ID             string          `json:"id" db:"id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	Name           string          `json:"name" db:"name"`
	Description    *string         `json:"description" db:"description"`
	Venue          *string         `json:"venue" db:"venue"`
	StartsAt       time.Time       `json:"starts_at" db:"starts_at"`
	EndsAt         *time.Time      `json:"ends_at" db:"ends_at"`
	FlyerURL       *string         `json:"flyer_url" db:"flyer_url"`
	TicketPrice    decimal.Decimal `json:"ticket_price" db:"ticket_price"`
	TicketCapacity int             `json:"ticket_capacity" db:"ticket_capacity"`
	Status         string          `json:"status" db:"status"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time      `json:"-" db:"deleted_at"`
	DeletedBy      *string         `json:"-" db:"deleted_by"`

	// Lima wall-clock rendering of StartsAt, filled by the service layer.
	StartDate string `json:"start_date,omitempty" db:"-"`
	StartTime string `json:"start_time,omitempty" db:"-"`
}

// Table is a bookable table of the venue floor
type Table struct {
	ID             string          `json:"id" db:"id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	Name           string          `json:"name" db:"name"`
	Zone           *string         `json:"zone" db:"zone"`
	Capacity       int             `json:"capacity" db:"capacity"`
	Price          decimal.Decimal `json:"price" db:"price"`
	MinConsumption decimal.Decimal `json:"min_consumption" db:"min_consumption"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time      `json:"-" db:"deleted_at"`
}

// TableProduct is a bottle or package included with a table
type TableProduct struct {
	ID        string          `json:"id" db:"id"`
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	TableID   string          `json:"table_id" db:"table_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationRejected  = "rejected"
	ReservationCancelled = "cancelled"
	ReservationCompleted = "completed"
)

// TableReservation holds a table for one event
type TableReservation struct {
	ID               string     `json:"id" db:"id"`
	TenantID         string     `json:"tenant_id" db:"tenant_id"`
	EventID          string     `json:"event_id" db:"event_id"`
	TableID          string     `json:"table_id" db:"table_id"`
	PersonID         *string    `json:"person_id" db:"person_id"`
	CustomerName     string     `json:"customer_name" db:"customer_name"`
	CustomerDocument *string    `json:"customer_document" db:"customer_document"`
	CustomerEmail    *string    `json:"customer_email" db:"customer_email"`
	CustomerPhone    *string    `json:"customer_phone" db:"customer_phone"`
	Guests           int        `json:"guests" db:"guests"`
	Status           string     `json:"status" db:"status"`
	PromoterID       *string    `json:"promoter_id" db:"promoter_id"`
	CodeID           *string    `json:"code_id" db:"code_id"`
	VoucherURL       *string    `json:"voucher_url" db:"voucher_url"`
	Notes            *string    `json:"notes" db:"notes"`
	CreatedBy        *string    `json:"created_by" db:"created_by"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt        *time.Time `json:"-" db:"deleted_at"`

	TableName string `json:"table_name,omitempty" db:"-"`
	EventName string `json:"event_name,omitempty" db:"-"`
}

// TableAvailability is a table annotated with its state for one event.
type TableAvailability struct {
	Table
	Available         bool    `json:"available"`
	ReservationID     *string `json:"reservation_id,omitempty"`
	ReservationStatus *string `json:"reservation_status,omitempty"`
}

const (
	CodeTypeGeneral  = "general"
	CodeTypeCourtesy = "courtesy"
	CodeTypePromoter = "promoter"
	CodeTypeTable    = "table"
	CodeTypeDiscount = "discount"
)

// CodeBatch records one call to the batch generator
type CodeBatch struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	EventID    string     `json:"event_id" db:"event_id"`
	Type       string     `json:"type" db:"type"`
	Quantity   int        `json:"quantity" db:"quantity"`
	Prefix     *string    `json:"prefix" db:"prefix"`
	PromoterID *string    `json:"promoter_id" db:"promoter_id"`
	MaxUses    int        `json:"max_uses" db:"max_uses"`
	ExpiresAt  *time.Time `json:"expires_at" db:"expires_at"`
	CreatedBy  *string    `json:"created_by" db:"created_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Code is a promotional code with a redemption counter
type Code struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	EventID    string     `json:"event_id" db:"event_id"`
	BatchID    *string    `json:"batch_id" db:"batch_id"`
	Code       string     `json:"code" db:"code"`
	Type       string     `json:"type" db:"type"`
	PromoterID *string    `json:"promoter_id" db:"promoter_id"`
	MaxUses    int        `json:"max_uses" db:"max_uses"`
	Uses       int        `json:"uses" db:"uses"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Remaining is the number of redemptions left.
func (c *Code) Remaining() int {
	if r := c.MaxUses - c.Uses; r > 0 {
		return r
	}
	return 0
}

// Promoter brings guests and receives codes
type Promoter struct {
	ID             string          `json:"id" db:"id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	Name           string          `json:"name" db:"name"`
	Document       *string         `json:"document" db:"document"`
	Email          *string         `json:"email" db:"email"`
	Phone          *string         `json:"phone" db:"phone"`
	CommissionRate decimal.Decimal `json:"commission_rate" db:"commission_rate"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// PromoterStats aggregates a promoter's results for one event
type PromoterStats struct {
	PromoterID    string `json:"promoter_id"`
	Name          string `json:"name"`
	CodesIssued   int    `json:"codes_issued"`
	CodesRedeemed int    `json:"codes_redeemed"`
	Reservations  int    `json:"reservations"`
	Guests        int    `json:"guests"`
}

const DocumentTypeDNI = "DNI"

// Person is a customer identified by national document
type Person struct {
	ID             string    `json:"id" db:"id"`
	DocumentType   string    `json:"document_type" db:"document_type"`
	DocumentNumber string    `json:"document_number" db:"document_number"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Birthdate      *string   `json:"birthdate" db:"birthdate"`
	Email          *string   `json:"email" db:"email"`
	Phone          *string   `json:"phone" db:"phone"`
	Source         string    `json:"source" db:"source"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// PublicPerson is what the landing lookup may reveal: enough to prefill a
// form, no contact data.
type PublicPerson struct {
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
}

func (p *Person) Public() PublicPerson {
	return PublicPerson{
		DocumentType:   p.DocumentType,
		DocumentNumber: p.DocumentNumber,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
	}
}

const (
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleDoor     = "door"
	RolePromoter = "promoter"
)

// Staff links an auth-provider user to a tenant and a role
type Staff struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	TicketIssued    = "issued"
	TicketUsed      = "used"
	TicketCancelled = "cancelled"
)

// Ticket grants entry to an event
type Ticket struct {
	ID             string          `json:"id" db:"id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	EventID        string          `json:"event_id" db:"event_id"`
	PersonID       *string         `json:"person_id" db:"person_id"`
	HolderName     string          `json:"holder_name" db:"holder_name"`
	HolderDocument *string         `json:"holder_document" db:"holder_document"`
	HolderEmail    *string         `json:"holder_email" db:"holder_email"`
	CodeID         *string         `json:"code_id" db:"code_id"`
	PaymentID      *string         `json:"payment_id" db:"payment_id"`
	Price          decimal.Decimal `json:"price" db:"price"`
	Status         string          `json:"status" db:"status"`
	QRToken        string          `json:"qr_token" db:"qr_token"`
	UsedAt         *time.Time      `json:"used_at" db:"used_at"`
	UsedBy         *string         `json:"used_by" db:"used_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
	PaymentExpired   = "expired"
)

// Payment tracks one gateway order
type Payment struct {
	ID                string          `json:"id" db:"id"`
	TenantID          string          `json:"tenant_id" db:"tenant_id"`
	EventID           string          `json:"event_id" db:"event_id"`
	OrderID           string          `json:"order_id" db:"order_id"`
	ProviderPaymentID *string         `json:"provider_payment_id" db:"provider_payment_id"`
	Purpose           string          `json:"purpose" db:"purpose"`
	Quantity          int             `json:"quantity" db:"quantity"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Currency          string          `json:"currency" db:"currency"`
	Status            string          `json:"status" db:"status"`
	BuyerName         string          `json:"buyer_name" db:"buyer_name"`
	BuyerDocument     *string         `json:"buyer_document" db:"buyer_document"`
	BuyerEmail        string          `json:"buyer_email" db:"buyer_email"`
	CodeID            *string         `json:"code_id" db:"code_id"`
	PaymentURL        *string         `json:"payment_url" db:"payment_url"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// BrandSettings drives the landing site look
type BrandSettings struct {
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	LogoURL        *string   `json:"logo_url" db:"logo_url"`
	PrimaryColor   string    `json:"primary_color" db:"primary_color"`
	SecondaryColor string    `json:"secondary_color" db:"secondary_color"`
	InstagramURL   *string   `json:"instagram_url" db:"instagram_url"`
	WhatsAppNumber *string   `json:"whatsapp_number" db:"whatsapp_number"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TablePosition places a table on the floor plan.
type TablePosition struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// LayoutSettings is the floor plan shown on the landing site
type LayoutSettings struct {
	TenantID      string                   `json:"tenant_id" db:"tenant_id"`
	CanvasWidth   int                      `json:"canvas_width" db:"canvas_width"`
	CanvasHeight  int                      `json:"canvas_height" db:"canvas_height"`
	BackgroundURL *string                  `json:"background_url" db:"background_url"`
	Positions     map[string]TablePosition `json:"positions" db:"positions"`
	UpdatedAt     time.Time                `json:"updated_at" db:"updated_at"`
}
