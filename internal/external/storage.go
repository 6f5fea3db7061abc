package external

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Storage buckets.
const (
	BucketFlyers   = "flyers"
	BucketBranding = "branding"
	BucketVouchers = "vouchers"
)

// StorageClient uploads files to the object store of the hosted database project.
type StorageClient struct {
	httpClient *resty.Client
	baseURL    string
}

type StorageConfig struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
}

func NewStorageClient(cfg StorageConfig) *StorageClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.ServiceKey).
		SetHeader("apikey", cfg.ServiceKey)

	return &StorageClient{httpClient: client, baseURL: base}
}

// Upload stores data at bucket/path, replacing any existing object, and
// returns its public URL.
func (sc *StorageClient) Upload(ctx context.Context, bucket, path, contentType string, data []byte) (string, error) {
	resp, err := sc.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(bytes.NewReader(data)).
		Post("/storage/v1/object/" + bucket + "/" + escapePath(path))
	if err != nil {
		return "", fmt.Errorf("failed to upload %s/%s: %w", bucket, path, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("storage returned status %d for %s/%s", resp.StatusCode(), bucket, path)
	}

	return sc.PublicURL(bucket, path), nil
}

func (sc *StorageClient) PublicURL(bucket, path string) string {
	return sc.baseURL + "/storage/v1/object/public/" + bucket + "/" + escapePath(path)
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
