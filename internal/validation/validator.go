package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config points the smoke validator at running landing and backoffice servers.
type Config struct {
	LandingURL    string
	BackofficeURL string
	// Tenant slug used for landing routes.
	Tenant string
	// Optional staff access token; without it only the unauthenticated
	// backoffice behaviour is checked.
	Token   string
	Timeout time.Duration
}

// SmokeValidator - проверяет развернутые сервисы запросами к публичному API
type SmokeValidator struct {
	cfg    Config
	client *resty.Client
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type check struct {
	name string
	run  func(ctx context.Context) error
}

func NewSmokeValidator(cfg Config) *SmokeValidator {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.LandingURL = strings.TrimRight(cfg.LandingURL, "/")
	cfg.BackofficeURL = strings.TrimRight(cfg.BackofficeURL, "/")

	return &SmokeValidator{
		cfg:    cfg,
		client: resty.New().SetTimeout(cfg.Timeout),
	}
}

// ValidateAll runs every check and reports the first failure.
func (v *SmokeValidator) ValidateAll(ctx context.Context) error {
	slog.Info("Starting smoke validation", "landing", v.cfg.LandingURL, "backoffice", v.cfg.BackofficeURL)

	var checks []check
	if v.cfg.LandingURL != "" {
		checks = append(checks,
			check{"landing health", v.health(v.cfg.LandingURL)},
			check{"landing site", v.landingSite},
			check{"landing events", v.landingEvents},
			check{"unknown tenant", v.unknownTenant},
			check{"malformed DNI", v.malformedDNI},
			check{"malformed checkout", v.malformedCheckout},
		)
	}
	if v.cfg.BackofficeURL != "" {
		checks = append(checks,
			check{"backoffice health", v.health(v.cfg.BackofficeURL)},
			check{"backoffice auth", v.backofficeAuth},
		)
		if v.cfg.Token != "" {
			checks = append(checks, check{"backoffice events", v.backofficeEvents})
		}
	}
	if len(checks) == 0 {
		return fmt.Errorf("no server URL configured")
	}

	for _, c := range checks {
		if err := c.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		slog.Info("Check passed", "check", c.name)
	}

	slog.Info("Smoke validation passed", "checks", len(checks))
	return nil
}

func (v *SmokeValidator) health(base string) func(context.Context) error {
	return func(ctx context.Context) error {
		var body struct {
			Status string `json:"status"`
		}
		resp, err := v.client.R().SetContext(ctx).SetResult(&body).Get(base + "/health")
		if err != nil {
			return err
		}
		if resp.StatusCode() != http.StatusOK || body.Status != "healthy" {
			return fmt.Errorf("expected healthy 200, got %d %q", resp.StatusCode(), body.Status)
		}
		return nil
	}
}

func (v *SmokeValidator) public(path string) string {
	return v.cfg.LandingURL + "/api/public/" + v.cfg.Tenant + path
}

func (v *SmokeValidator) landingSite(ctx context.Context) error {
	env, err := v.expect(ctx, http.MethodGet, v.public("/site"), nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	var site struct {
		Brand  json.RawMessage `json:"brand"`
		Layout json.RawMessage `json:"layout"`
	}
	if err := json.Unmarshal(env.Data, &site); err != nil {
		return fmt.Errorf("failed to decode site: %w", err)
	}
	if len(site.Brand) == 0 || len(site.Layout) == 0 {
		return fmt.Errorf("site is missing brand or layout")
	}
	return nil
}

// landingEvents lists published events and checks availability of the first one.
func (v *SmokeValidator) landingEvents(ctx context.Context) error {
	env, err := v.expect(ctx, http.MethodGet, v.public("/events?page=1&pageSize=5"), nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		return fmt.Errorf("failed to decode events page: %w", err)
	}
	if len(page.Items) == 0 {
		slog.Warn("No published events, availability not checked")
		return nil
	}

	_, err = v.expect(ctx, http.MethodGet, v.public("/events/"+page.Items[0].ID+"/availability"), nil, "", http.StatusOK)
	return err
}

func (v *SmokeValidator) unknownTenant(ctx context.Context) error {
	url := v.cfg.LandingURL + "/api/public/smoke-no-such-tenant/events"
	_, err := v.expect(ctx, http.MethodGet, url, nil, "", http.StatusNotFound)
	return err
}

func (v *SmokeValidator) malformedDNI(ctx context.Context) error {
	_, err := v.expect(ctx, http.MethodGet, v.public("/persons/12ab"), nil, "", http.StatusBadRequest, http.StatusTooManyRequests)
	return err
}

func (v *SmokeValidator) malformedCheckout(ctx context.Context) error {
	_, err := v.expect(ctx, http.MethodPost, v.public("/checkout"), map[string]any{"quantity": 0}, "", http.StatusBadRequest, http.StatusTooManyRequests)
	return err
}

func (v *SmokeValidator) backofficeAuth(ctx context.Context) error {
	_, err := v.expect(ctx, http.MethodGet, v.cfg.BackofficeURL+"/api/me", nil, "", http.StatusUnauthorized)
	if err != nil {
		return err
	}
	_, err = v.expect(ctx, http.MethodGet, v.cfg.BackofficeURL+"/api/me", nil, "not-a-jwt", http.StatusUnauthorized)
	return err
}

func (v *SmokeValidator) backofficeEvents(ctx context.Context) error {
	if _, err := v.expect(ctx, http.MethodGet, v.cfg.BackofficeURL+"/api/me", nil, v.cfg.Token, http.StatusOK); err != nil {
		return err
	}
	_, err := v.expect(ctx, http.MethodGet, v.cfg.BackofficeURL+"/api/events?page=1&pageSize=1", nil, v.cfg.Token, http.StatusOK)
	return err
}

// expect performs one request and checks its status and envelope shape.
func (v *SmokeValidator) expect(ctx context.Context, method, url string, body any, token string, statuses ...int) (*envelope, error) {
	req := v.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	ok := false
	for _, s := range statuses {
		if resp.StatusCode() == s {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: expected %v, got %d", method, url, statuses, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%s %s: response is not a JSON envelope: %w", method, url, err)
	}
	wantSuccess := resp.StatusCode() < http.StatusBadRequest
	if env.Success != wantSuccess {
		return nil, fmt.Errorf("%s %s: success=%v with status %d", method, url, env.Success, resp.StatusCode())
	}
	if !wantSuccess && env.Error == "" {
		return nil, fmt.Errorf("%s %s: error response without message", method, url)
	}
	return &env, nil
}
