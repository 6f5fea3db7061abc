package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nightpass/internal/models"
)

type Config struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	EventsTTL time.Duration
	TenantTTL time.Duration
	PersonTTL time.Duration
}

// ValkeyClient caches read-mostly data of the landing site: tenant slugs,
// public event pages and national-ID lookups.
type ValkeyClient struct {
	client *redis.Client
	cfg    Config
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return NewValkeyClientFromRedis(rdb, cfg), nil
}

// NewValkeyClientFromRedis wraps an existing client.
func NewValkeyClientFromRedis(rdb *redis.Client, cfg Config) *ValkeyClient {
	return &ValkeyClient{client: rdb, cfg: cfg}
}

// Redis exposes the underlying client for the rate limiter store.
func (v *ValkeyClient) Redis() *redis.Client {
	return v.client
}

func eventsPrefix(tenantID string) string {
	return "events:" + tenantID + ":"
}

// GetEvents returns a cached public event page. ok is false on a miss.
func (v *ValkeyClient) GetEvents(ctx context.Context, tenantID, key string) (data []byte, ok bool, err error) {
	data, err = v.client.Get(ctx, eventsPrefix(tenantID)+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup error: %w", err)
	}
	return data, true, nil
}

func (v *ValkeyClient) SetEvents(ctx context.Context, tenantID, key string, data []byte) error {
	return v.client.Set(ctx, eventsPrefix(tenantID)+key, data, v.cfg.EventsTTL).Err()
}

// InvalidateEvents drops every cached event page of the tenant.
func (v *ValkeyClient) InvalidateEvents(ctx context.Context, tenantID string) error {
	var cursor uint64
	for {
		keys, next, err := v.client.Scan(ctx, cursor, eventsPrefix(tenantID)+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan error: %w", err)
		}
		if len(keys) > 0 {
			if err := v.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache delete error: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (v *ValkeyClient) GetTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	var t models.Tenant
	ok, err := v.getJSON(ctx, "tenant:"+slug, &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

func (v *ValkeyClient) SetTenant(ctx context.Context, t *models.Tenant) error {
	return v.setJSON(ctx, "tenant:"+t.Slug, t, v.cfg.TenantTTL)
}

func (v *ValkeyClient) GetPerson(ctx context.Context, docType, number string) (*models.Person, error) {
	var p models.Person
	ok, err := v.getJSON(ctx, "person:"+docType+":"+number, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (v *ValkeyClient) SetPerson(ctx context.Context, p *models.Person) error {
	return v.setJSON(ctx, "person:"+p.DocumentType+":"+p.DocumentNumber, p, v.cfg.PersonTTL)
}

func (v *ValkeyClient) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := v.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache lookup error: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("invalid cached value for %s: %w", key, err)
	}
	return true, nil
}

func (v *ValkeyClient) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return v.client.Set(ctx, key, raw, ttl).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
