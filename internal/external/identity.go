package external

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"nightpass/internal/models"
)

// IdentityClient looks up Peruvian national IDs (DNI) in the public registry API.
type IdentityClient struct {
	httpClient *resty.Client
}

type IdentityConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// DNIResponse is the registry answer for one document.
type DNIResponse struct {
	FirstNames      string `json:"nombres"`
	PaternalSurname string `json:"apellidoPaterno"`
	MaternalSurname string `json:"apellidoMaterno"`
	DocumentNumber  string `json:"numeroDocumento"`
}

func NewIdentityClient(cfg IdentityConfig) *IdentityClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &IdentityClient{httpClient: client}
}

// LookupDNI returns the person registered under dni, or nil when the
// registry has no such document.
func (ic *IdentityClient) LookupDNI(ctx context.Context, dni string) (*models.Person, error) {
	var result DNIResponse
	resp, err := ic.httpClient.R().
		SetContext(ctx).
		SetQueryParam("numero", dni).
		SetResult(&result).
		Get("/v2/reniec/dni")
	if err != nil {
		return nil, fmt.Errorf("failed to query identity API: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound, resp.StatusCode() == http.StatusUnprocessableEntity:
		return nil, nil
	case resp.IsError():
		return nil, fmt.Errorf("identity API returned status %d", resp.StatusCode())
	}

	if result.FirstNames == "" {
		return nil, nil
	}

	lastName := strings.TrimSpace(result.PaternalSurname + " " + result.MaternalSurname)
	return &models.Person{
		DocumentType:   models.DocumentTypeDNI,
		DocumentNumber: dni,
		FirstName:      strings.TrimSpace(result.FirstNames),
		LastName:       lastName,
		Source:         "registry",
	}, nil
}
