package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nightpass/internal/models"
)

func setupValkey(t *testing.T) (*ValkeyClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewValkeyClientFromRedis(rdb, Config{
		EventsTTL: time.Minute,
		TenantTTL: 5 * time.Minute,
		PersonTTL: time.Hour,
	}), mr
}

func TestEventsCacheRoundTrip(t *testing.T) {
	v, mr := setupValkey(t)
	ctx := context.Background()

	_, ok, err := v.GetEvents(ctx, "tenant-1", "page:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.SetEvents(ctx, "tenant-1", "page:1", []byte(`{"items":[]}`)))

	data, ok, err := v.GetEvents(ctx, "tenant-1", "page:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"items":[]}`, string(data))

	mr.FastForward(2 * time.Minute)
	_, ok, err = v.GetEvents(ctx, "tenant-1", "page:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidateEventsIsTenantScoped(t *testing.T) {
	v, mr := setupValkey(t)
	ctx := context.Background()

	for _, key := range []string{"page:1", "page:2", "q:salsa"} {
		require.NoError(t, v.SetEvents(ctx, "tenant-1", key, []byte("x")))
	}
	require.NoError(t, v.SetEvents(ctx, "tenant-2", "page:1", []byte("y")))

	require.NoError(t, v.InvalidateEvents(ctx, "tenant-1"))

	assert.False(t, mr.Exists("events:tenant-1:page:1"))
	assert.False(t, mr.Exists("events:tenant-1:q:salsa"))
	assert.True(t, mr.Exists("events:tenant-2:page:1"))
}

func TestTenantAndPersonCache(t *testing.T) {
	v, mr := setupValkey(t)
	ctx := context.Background()

	tenant, err := v.GetTenant(ctx, "lima-club")
	require.NoError(t, err)
	assert.Nil(t, tenant)

	require.NoError(t, v.SetTenant(ctx, &models.Tenant{ID: "tenant-1", Slug: "lima-club", Name: "Lima Club", IsActive: true}))
	tenant, err = v.GetTenant(ctx, "lima-club")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "tenant-1", tenant.ID)
	assert.Equal(t, 5*time.Minute, mr.TTL("tenant:lima-club"))

	require.NoError(t, v.SetPerson(ctx, &models.Person{DocumentType: "DNI", DocumentNumber: "12345678", FirstName: "Ana", LastName: "Quispe"}))
	p, err := v.GetPerson(ctx, "DNI", "12345678")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Ana Quispe", p.FullName())
}

func TestCorruptedEntry(t *testing.T) {
	v, mr := setupValkey(t)
	require.NoError(t, mr.Set("tenant:broken", "not-json"))

	_, err := v.GetTenant(context.Background(), "broken")
	assert.Error(t, err)
}
