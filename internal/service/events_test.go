package service

import (
	"context"
	"database/sql/driver"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nightpass/internal/cache"
	"nightpass/internal/config"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
	"nightpass/internal/search"
)

// instant matches a time argument regardless of its location.
type instant time.Time

func (i instant) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	return ok && t.Equal(time.Time(i))
}

// fakeIndex is an Elasticsearch endpoint that records document writes.
type fakeIndex struct {
	mu       sync.Mutex
	requests []string
	status   int
}

func (f *fakeIndex) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newFakeIndex(t *testing.T) (*fakeIndex, *search.ElasticsearchClient) {
	f := &fakeIndex{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		status := f.status
		f.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, `{"result":"updated"}`)
	}))
	t.Cleanup(srv.Close)

	es, err := search.NewElasticsearchClient(config.ElasticsearchConfig{
		URL:     srv.URL,
		Index:   "events-test",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return f, es
}

func newEventService(t *testing.T) (*EventService, sqlmock.Sqlmock, *miniredis.Miniredis, *fakeIndex) {
	repos, mock := setupMockDB(t)
	mr := miniredis.RunT(t)
	c := cache.NewValkeyClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		cache.Config{Enabled: true, EventsTTL: time.Minute})
	idx, es := newFakeIndex(t)

	s := NewEventService(repos.Events, c, es, nil, Options{})
	s.now = func() time.Time { return fixedNow }
	return s, mock, mr, idx
}

const cachedPage = "events:" + tenantID + ":1:20:"

func TestCreateEventStoresUTC(t *testing.T) {
	s, mock, mr, idx := newEventService(t)
	require.NoError(t, mr.Set(cachedPage, `{"items":[]}`))

	// 23:00 in Lima is 04:00 UTC the next day.
	startsAt := time.Date(2025, 3, 16, 4, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO events`).
		WithArgs(tenantID, "Noche de Salsa", nil, nil, instant(startsAt), nil, sqlmock.AnyArg(), 200, models.EventStatusPublished).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
			AddRow(eventID, true, fixedNow, fixedNow))

	e, err := s.Create(context.Background(), tenantID, &models.EventRequest{
		Name:           "  Noche de Salsa ",
		StartDate:      "2025-03-15",
		StartTime:      "23:00",
		TicketPrice:    decimal.NewFromInt(40),
		TicketCapacity: 200,
		Status:         models.EventStatusPublished,
	})
	require.NoError(t, err)

	assert.Equal(t, eventID, e.ID)
	assert.True(t, e.StartsAt.Equal(startsAt))
	assert.Equal(t, "2025-03-15", e.StartDate)
	assert.Equal(t, "23:00", e.StartTime)
	assert.False(t, mr.Exists(cachedPage))
	assert.Equal(t, []string{"PUT /events-test/_doc/" + eventID}, idx.calls())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEventDefaultsToDraft(t *testing.T) {
	s, mock, _, _ := newEventService(t)

	endsAt := time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO events`).
		WithArgs(tenantID, "After", nil, nil, sqlmock.AnyArg(), instant(endsAt), sqlmock.AnyArg(), 0, models.EventStatusDraft).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
			AddRow(eventID, true, fixedNow, fixedNow))

	endDate, endTime := "2025-03-16", "05:00"
	e, err := s.Create(context.Background(), tenantID, &models.EventRequest{
		Name:      "After",
		StartDate: "2025-03-15",
		StartTime: "23:00",
		EndDate:   &endDate,
		EndTime:   &endTime,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusDraft, e.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEventValidation(t *testing.T) {
	early := "22:00"
	sameDay := "2025-03-15"
	tests := []struct {
		name string
		req  models.EventRequest
	}{
		{"impossible date", models.EventRequest{Name: "x", StartDate: "2025-02-30", StartTime: "23:00"}},
		{"bad clock", models.EventRequest{Name: "x", StartDate: "2025-03-15", StartTime: "24:30"}},
		{"missing clock", models.EventRequest{Name: "x", StartDate: "2025-03-15"}},
		{"blank name", models.EventRequest{Name: "  ", StartDate: "2025-03-15", StartTime: "23:00"}},
		{"end before start", models.EventRequest{Name: "x", StartDate: "2025-03-15", StartTime: "23:00", EndDate: &sameDay, EndTime: &early}},
		{"negative price", models.EventRequest{Name: "x", StartDate: "2025-03-15", StartTime: "23:00", TicketPrice: decimal.NewFromInt(-1)}},
		{"unknown status", models.EventRequest{Name: "x", StartDate: "2025-03-15", StartTime: "23:00", Status: "cancelled"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock, _, idx := newEventService(t)

			_, err := s.Create(context.Background(), tenantID, &tt.req)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Empty(t, idx.calls())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateEventMovesStart(t *testing.T) {
	s, mock, mr, idx := newEventService(t)
	require.NoError(t, mr.Set(cachedPage, `{"items":[]}`))

	// Only the clock changes; the Lima date stays 2025-03-15.
	startsAt := time.Date(2025, 3, 16, 3, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM events`).WithArgs(eventID, tenantID).WillReturnRows(eventRow("40.00", 200))
	mock.ExpectQuery(`UPDATE events`).
		WithArgs(eventID, tenantID, "Noche de Salsa", nil, nil, instant(startsAt), nil, sqlmock.AnyArg(), 200, models.EventStatusPublished, true).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(fixedNow))

	clock := "22:30"
	e, err := s.Update(context.Background(), tenantID, eventID, &models.EventUpdateRequest{StartTime: &clock})
	require.NoError(t, err)

	assert.True(t, e.StartsAt.Equal(startsAt))
	assert.Equal(t, "2025-03-15", e.StartDate)
	assert.Equal(t, "22:30", e.StartTime)
	assert.False(t, mr.Exists(cachedPage))
	assert.Equal(t, []string{"PUT /events-test/_doc/" + eventID}, idx.calls())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEventRejectsBadClock(t *testing.T) {
	s, mock, mr, idx := newEventService(t)
	require.NoError(t, mr.Set(cachedPage, `{"items":[]}`))

	mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("40.00", 200))

	clock := "7pm"
	_, err := s.Update(context.Background(), tenantID, eventID, &models.EventUpdateRequest{StartTime: &clock})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.True(t, mr.Exists(cachedPage))
	assert.Empty(t, idx.calls())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingEvent(t *testing.T) {
	s, mock, _, _ := newEventService(t)

	mock.ExpectQuery(`FROM events`).WillReturnRows(sqlmock.NewRows(eventCols))

	name := "Otra"
	_, err := s.Update(context.Background(), tenantID, eventID, &models.EventUpdateRequest{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveEventDropsIndexAndCache(t *testing.T) {
	s, mock, mr, idx := newEventService(t)
	otherTenant := "events:ffffffff-0000-4000-8000-000000000000:1:20:"
	require.NoError(t, mr.Set(cachedPage, `{"items":[]}`))
	require.NoError(t, mr.Set(otherTenant, `{"items":[]}`))

	mock.ExpectExec(`UPDATE events\s+SET deleted_at = NOW\(\)`).
		WithArgs(eventID, tenantID, actorID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Archive(context.Background(), tenantID, eventID, actorID))

	assert.Equal(t, []string{"DELETE /events-test/_doc/" + eventID}, idx.calls())
	assert.False(t, mr.Exists(cachedPage))
	assert.True(t, mr.Exists(otherTenant))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveMissingEventKeepsIndex(t *testing.T) {
	s, mock, mr, idx := newEventService(t)
	require.NoError(t, mr.Set(cachedPage, `{"items":[]}`))

	mock.ExpectExec(`UPDATE events`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Archive(context.Background(), tenantID, eventID, actorID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, idx.calls())
	assert.True(t, mr.Exists(cachedPage))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexFailureDoesNotFailWrite(t *testing.T) {
	s, mock, mr, idx := newEventService(t)
	idx.status = http.StatusInternalServerError
	require.NoError(t, mr.Set(cachedPage, `{"items":[]}`))

	mock.ExpectQuery(`INSERT INTO events`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
			AddRow(eventID, true, fixedNow, fixedNow))

	_, err := s.Create(context.Background(), tenantID, &models.EventRequest{
		Name: "Noche de Salsa", StartDate: "2025-03-15", StartTime: "23:00",
	})
	require.NoError(t, err)
	assert.Len(t, idx.calls(), 1)
	assert.False(t, mr.Exists(cachedPage))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPublicServesFromCacheUntilWrite(t *testing.T) {
	s, mock, _, _ := newEventService(t)
	ctx := context.Background()
	page := models.Pagination{Page: 1, PageSize: 20}

	expectList := func() {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM events`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("40.00", 200))
	}

	expectList()
	first, err := s.ListPublic(ctx, tenantID, "", page)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "23:00", first.Items[0].StartTime)

	cached, err := s.ListPublic(ctx, tenantID, "", page)
	require.NoError(t, err)
	assert.Equal(t, first.Items[0].ID, cached.Items[0].ID)
	assert.Equal(t, "2025-03-15", cached.Items[0].StartDate)

	mock.ExpectExec(`UPDATE events`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Archive(ctx, tenantID, eventID, actorID))

	expectList()
	_, err = s.ListPublic(ctx, tenantID, "", page)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
