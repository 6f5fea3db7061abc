package external

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"nightpass/internal/models"
)

// Gateway payment statuses seen in notifications.
const (
	GatewayConfirmed = "CONFIRMED"
	GatewayRejected  = "REJECTED"
	GatewayCancelled = "CANCELLED"
	GatewayExpired   = "EXPIRED"
)

type PaymentClient struct {
	httpClient *resty.Client
	teamSlug   string
	password   string
	currency   string
}

type PaymentConfig struct {
	BaseURL  string
	TeamSlug string
	Password string
	Currency string
	Timeout  time.Duration
}

type PaymentInitRequest struct {
	TeamSlug        string `json:"teamSlug"`
	Token           string `json:"token"`
	Amount          int64  `json:"amount"`
	OrderID         string `json:"orderId"`
	Currency        string `json:"currency"`
	Description     string `json:"description,omitempty"`
	Email           string `json:"email,omitempty"`
	SuccessURL      string `json:"successURL,omitempty"`
	FailURL         string `json:"failURL,omitempty"`
	NotificationURL string `json:"notificationURL,omitempty"`
	Language        string `json:"language,omitempty"`
}

type PaymentInitResponse struct {
	Success    bool   `json:"success"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	PaymentURL string `json:"paymentURL"`
	ExpiresAt  string `json:"expiresAt"`
	Message    string `json:"message,omitempty"`
}

type PaymentCheckRequest struct {
	TeamSlug  string `json:"teamSlug"`
	Token     string `json:"token"`
	PaymentID string `json:"paymentId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

type PaymentCheckResponse struct {
	Success  bool             `json:"success"`
	Payments []PaymentDetails `json:"payments"`
	OrderID  string           `json:"orderId"`
}

type PaymentDetails struct {
	PaymentID         string `json:"paymentId"`
	OrderID           string `json:"orderId"`
	Status            string `json:"status"`
	StatusDescription string `json:"statusDescription"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
}

// InitParams describe one checkout order; Amount is in cents.
type InitParams struct {
	Amount          int64
	OrderID         string
	Description     string
	Email           string
	SuccessURL      string
	FailURL         string
	NotificationURL string
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "PEN"
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &PaymentClient{
		httpClient: client,
		teamSlug:   cfg.TeamSlug,
		password:   cfg.Password,
		currency:   cfg.Currency,
	}
}

func (pc *PaymentClient) Currency() string {
	return pc.currency
}

// token signs params: SHA-256 over the values sorted by key, with the team
// slug and password added as TeamSlug and Password.
func (pc *PaymentClient) token(params map[string]string) string {
	all := make(map[string]string, len(params)+2)
	for k, v := range params {
		all[k] = v
	}
	all["TeamSlug"] = pc.teamSlug
	all["Password"] = pc.password

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(all[key])
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

func (pc *PaymentClient) Init(ctx context.Context, p InitParams) (*PaymentInitResponse, error) {
	req := PaymentInitRequest{
		TeamSlug: pc.teamSlug,
		Token: pc.token(map[string]string{
			"Amount":   strconv.FormatInt(p.Amount, 10),
			"Currency": pc.currency,
			"OrderId":  p.OrderID,
		}),
		Amount:          p.Amount,
		OrderID:         p.OrderID,
		Currency:        pc.currency,
		Description:     p.Description,
		Email:           p.Email,
		SuccessURL:      p.SuccessURL,
		FailURL:         p.FailURL,
		NotificationURL: p.NotificationURL,
		Language:        "es",
	}

	var result PaymentInitResponse
	resp, err := pc.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post("/api/v1/PaymentInit/init")
	if err != nil {
		return nil, fmt.Errorf("failed to init payment: %w", err)
	}
	if resp.IsError() || !result.Success {
		return nil, fmt.Errorf("payment init failed: status %d %s", resp.StatusCode(), result.Message)
	}

	return &result, nil
}

func (pc *PaymentClient) Check(ctx context.Context, paymentID string) (*PaymentCheckResponse, error) {
	req := PaymentCheckRequest{
		TeamSlug:  pc.teamSlug,
		Token:     pc.token(map[string]string{"PaymentId": paymentID}),
		PaymentID: paymentID,
	}

	var result PaymentCheckResponse
	resp, err := pc.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/api/v1/PaymentCheck/check")
	if err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("payment check failed: status %d", resp.StatusCode())
	}

	return &result, nil
}

func (pc *PaymentClient) Cancel(ctx context.Context, paymentID, reason string) error {
	body := map[string]interface{}{
		"teamSlug":  pc.teamSlug,
		"token":     pc.token(map[string]string{"PaymentId": paymentID}),
		"paymentId": paymentID,
		"reason":    reason,
	}

	resp, err := pc.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/v1/PaymentCancel/cancel")
	if err != nil {
		return fmt.Errorf("failed to cancel payment: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("payment cancel failed: status %d", resp.StatusCode())
	}

	return nil
}

// VerifyNotification checks the token of a webhook notification.
func (pc *PaymentClient) VerifyNotification(n models.PaymentNotification) bool {
	expected := pc.SignNotification(n)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.Token))) == 1
}

// SignNotification builds the token the gateway puts on a notification.
func (pc *PaymentClient) SignNotification(n models.PaymentNotification) string {
	return pc.token(map[string]string{
		"Amount":    strconv.FormatInt(n.Amount, 10),
		"OrderId":   n.OrderID,
		"PaymentId": n.PaymentID,
		"Status":    n.Status,
	})
}
