package external

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// EmailClient sends transactional mail through the provider REST API.
type EmailClient struct {
	httpClient *resty.Client
	from       string
}

type EmailConfig struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

type EmailMessage struct {
	To      []string
	Subject string
	HTML    string
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendEmailResponse struct {
	ID string `json:"id"`
}

func NewEmailClient(cfg EmailConfig) *EmailClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &EmailClient{httpClient: client, from: cfg.From}
}

// Send delivers one message and returns the provider message id.
func (ec *EmailClient) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("email has no recipients")
	}

	var result sendEmailResponse
	resp, err := ec.httpClient.R().
		SetContext(ctx).
		SetBody(sendEmailRequest{
			From:    ec.from,
			To:      msg.To,
			Subject: msg.Subject,
			HTML:    msg.HTML,
		}).
		SetResult(&result).
		Post("/emails")
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("email API returned status %d", resp.StatusCode())
	}

	return result.ID, nil
}
