package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlexibleBool - гибкий boolean тип, поддерживающий строки и числа
type FlexibleBool bool

// UnmarshalJSON поддерживает парсинг boolean из строки, числа и boolean
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on", "si", "sí":
		*fb = true
	case "false", "0", "no", "off":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool возвращает bool значение
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is the page/pageSize pair of list endpoints.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Page wraps one page of a list response.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func NewPage[T any](items []T, total int, p Pagination) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
}

// Events

// EventRequest creates an event; dates and times are Lima wall clock.
type EventRequest struct {
	Name           string          `json:"name" binding:"required"`
	Description    *string         `json:"description"`
	Venue          *string         `json:"venue"`
	StartDate      string          `json:"start_date" binding:"required"`
	StartTime      string          `json:"start_time" binding:"required"`
	EndDate        *string         `json:"end_date"`
	EndTime        *string         `json:"end_time"`
	TicketPrice    decimal.Decimal `json:"ticket_price"`
	TicketCapacity int             `json:"ticket_capacity"`
	Status         string          `json:"status"`
}

type EventUpdateRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	Venue          *string          `json:"venue"`
	StartDate      *string          `json:"start_date"`
	StartTime      *string          `json:"start_time"`
	EndDate        *string          `json:"end_date"`
	EndTime        *string          `json:"end_time"`
	TicketPrice    *decimal.Decimal `json:"ticket_price"`
	TicketCapacity *int             `json:"ticket_capacity"`
	Status         *string          `json:"status"`
	IsActive       *FlexibleBool    `json:"is_active"`
}

type EventFilter struct {
	Query  string
	Status string
	// Only published, active events.
	PublicOnly bool
	// Events whose end (or start when no end is set) is at or after this instant.
	OpenAfter *time.Time
	Pagination
}

// Tables

type TableRequest struct {
	Name           string          `json:"name" binding:"required"`
	Zone           *string         `json:"zone"`
	Capacity       int             `json:"capacity" binding:"required"`
	Price          decimal.Decimal `json:"price"`
	MinConsumption decimal.Decimal `json:"min_consumption"`
}

type TableUpdateRequest struct {
	Name           *string          `json:"name"`
	Zone           *string          `json:"zone"`
	Capacity       *int             `json:"capacity"`
	Price          *decimal.Decimal `json:"price"`
	MinConsumption *decimal.Decimal `json:"min_consumption"`
	IsActive       *FlexibleBool    `json:"is_active"`
}

type TableProductRequest struct {
	Name     string          `json:"name" binding:"required"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type TableProductUpdateRequest struct {
	Name     *string          `json:"name"`
	Quantity *int             `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
	IsActive *FlexibleBool    `json:"is_active"`
}

// Reservations

type ReservationRequest struct {
	EventID          string  `json:"event_id" binding:"required"`
	TableID          string  `json:"table_id" binding:"required"`
	CustomerName     string  `json:"customer_name" binding:"required"`
	CustomerDocument *string `json:"customer_document"`
	CustomerEmail    *string `json:"customer_email"`
	CustomerPhone    *string `json:"customer_phone"`
	Guests           int     `json:"guests"`
	Notes            *string `json:"notes"`
	Code             *string `json:"code"`
	PromoterID       *string `json:"promoter_id"`
}

type ReservationStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Reason *string `json:"reason"`
}

type ReservationFilter struct {
	EventID string
	TableID string
	Status  string
	Pagination
}

// Codes

type GenerateCodesRequest struct {
	EventID    string     `json:"event_id" binding:"required"`
	Type       string     `json:"type" binding:"required"`
	Quantity   int        `json:"quantity"`
	Prefix     string     `json:"prefix"`
	PromoterID *string    `json:"promoter_id"`
	MaxUses    int        `json:"max_uses"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

type GeneratedCode struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type CodeBatchResult struct {
	BatchID  string          `json:"batch_id"`
	EventID  string          `json:"event_id"`
	Type     string          `json:"type"`
	Quantity int             `json:"quantity"`
	Codes    []GeneratedCode `json:"codes"`
}

type GeneralCodeRequest struct {
	Code    string `json:"code" binding:"required"`
	MaxUses int    `json:"max_uses"`
}

type ValidateCodeRequest struct {
	EventID string `json:"event_id" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

// CodeValidation is the public answer to a code check.
type CodeValidation struct {
	Valid     bool   `json:"valid"`
	Type      string `json:"type,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
}

type CodeFilter struct {
	EventID string
	BatchID string
	Type    string
	Pagination
}

// Promoters and staff

type PromoterRequest struct {
	Name           string          `json:"name" binding:"required"`
	Document       *string         `json:"document"`
	Email          *string         `json:"email"`
	Phone          *string         `json:"phone"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

type PromoterUpdateRequest struct {
	Name           *string          `json:"name"`
	Document       *string          `json:"document"`
	Email          *string          `json:"email"`
	Phone          *string          `json:"phone"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
	IsActive       *FlexibleBool    `json:"is_active"`
}

type StaffRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type StaffUpdateRequest struct {
	Name     *string       `json:"name"`
	Role     *string       `json:"role"`
	IsActive *FlexibleBool `json:"is_active"`
}

// Tickets and payments

type CheckoutRequest struct {
	EventID       string  `json:"event_id" binding:"required"`
	Quantity      int     `json:"quantity"`
	BuyerName     string  `json:"buyer_name" binding:"required"`
	BuyerDocument *string `json:"buyer_document"`
	BuyerEmail    string  `json:"buyer_email" binding:"required"`
	Code          *string `json:"code"`
}

type CheckoutResponse struct {
	OrderID    string          `json:"order_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	PaymentURL *string         `json:"payment_url,omitempty"`
	Tickets    []Ticket        `json:"tickets,omitempty"`
}

// PaymentNotification is the gateway webhook body.
type PaymentNotification struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Token     string `json:"token"`
}

type CourtesyRequest struct {
	EventID        string  `json:"event_id" binding:"required"`
	HolderName     string  `json:"holder_name" binding:"required"`
	HolderDocument *string `json:"holder_document"`
	HolderEmail    *string `json:"holder_email"`
	Quantity       int     `json:"quantity"`
}

type ScanRequest struct {
	QRToken string `json:"qr_token" binding:"required"`
}

type TicketFilter struct {
	EventID string
	Status  string
	Pagination
}

// Settings and persons

type BrandSettingsRequest struct {
	DisplayName    string  `json:"display_name" binding:"required"`
	PrimaryColor   string  `json:"primary_color"`
	SecondaryColor string  `json:"secondary_color"`
	InstagramURL   *string `json:"instagram_url"`
	WhatsAppNumber *string `json:"whatsapp_number"`
}

type LayoutSettingsRequest struct {
	CanvasWidth  int                      `json:"canvas_width"`
	CanvasHeight int                      `json:"canvas_height"`
	Positions    map[string]TablePosition `json:"positions"`
}

type PersonFilter struct {
	Query string
	Pagination
}

// Upload is a file received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
