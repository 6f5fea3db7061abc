package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"nightpass/internal/config"
	"nightpass/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/shopspring/decimal"
)

// ElasticsearchClient индексирует события для публичного поиска
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// EventDocument is the indexed form of an event.
type EventDocument struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Venue       string          `json:"venue,omitempty"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      *time.Time      `json:"ends_at,omitempty"`
	FlyerURL    string          `json:"flyer_url,omitempty"`
	TicketPrice decimal.Decimal `json:"ticket_price"`
	Status      string          `json:"status"`
	IsActive    bool            `json:"is_active"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func documentFromEvent(e *models.Event) EventDocument {
	doc := EventDocument{
		ID:          e.ID,
		TenantID:    e.TenantID,
		Name:        e.Name,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
		TicketPrice: e.TicketPrice,
		Status:      e.Status,
		IsActive:    e.IsActive,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Description != nil {
		doc.Description = *e.Description
	}
	if e.Venue != nil {
		doc.Venue = *e.Venue
	}
	if e.FlyerURL != nil {
		doc.FlyerURL = *e.FlyerURL
	}
	return doc
}

func (d EventDocument) toEvent() models.Event {
	e := models.Event{
		ID:          d.ID,
		TenantID:    d.TenantID,
		Name:        d.Name,
		StartsAt:    d.StartsAt,
		EndsAt:      d.EndsAt,
		TicketPrice: d.TicketPrice,
		Status:      d.Status,
		IsActive:    d.IsActive,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Description != "" {
		e.Description = &d.Description
	}
	if d.Venue != "" {
		e.Venue = &d.Venue
	}
	if d.FlyerURL != "" {
		e.FlyerURL = &d.FlyerURL
	}
	return e
}

// NewElasticsearchClient создает клиент и индекс при необходимости
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// Event names and descriptions are Spanish.
func indexMapping() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"analysis": map[string]interface{}{
				"analyzer": map[string]interface{}{
					"spanish_folded": map[string]interface{}{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "asciifolding", "spanish_stop", "spanish_stemmer"},
					},
				},
				"filter": map[string]interface{}{
					"spanish_stop": map[string]interface{}{
						"type":      "stop",
						"stopwords": "_spanish_",
					},
					"spanish_stemmer": map[string]interface{}{
						"type":     "stemmer",
						"language": "light_spanish",
					},
				},
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":        map[string]interface{}{"type": "keyword"},
				"tenant_id": map[string]interface{}{"type": "keyword"},
				"name": map[string]interface{}{
					"type":     "text",
					"analyzer": "spanish_folded",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
					},
				},
				"description":  map[string]interface{}{"type": "text", "analyzer": "spanish_folded"},
				"venue":        map[string]interface{}{"type": "text", "analyzer": "spanish_folded"},
				"starts_at":    map[string]interface{}{"type": "date"},
				"ends_at":      map[string]interface{}{"type": "date"},
				"flyer_url":    map[string]interface{}{"type": "keyword", "index": false},
				"ticket_price": map[string]interface{}{"type": "scaled_float", "scaling_factor": 100},
				"status":       map[string]interface{}{"type": "keyword"},
				"is_active":    map[string]interface{}{"type": "boolean"},
				"updated_at":   map[string]interface{}{"type": "date"},
			},
		},
	}
}

// SearchParams narrows a public event search.
type SearchParams struct {
	TenantID  string
	Query     string
	OpenAfter *time.Time
	Page      int
	PageSize  int
}

// Search returns published, active events of one tenant matching the query.
func (c *ElasticsearchClient) Search(ctx context.Context, p SearchParams) ([]models.Event, int, error) {
	from := 0
	if p.Page > 0 && p.PageSize > 0 {
		from = (p.Page - 1) * p.PageSize
	}
	if p.PageSize <= 0 {
		p.PageSize = 10
	}

	searchRequest := map[string]interface{}{
		"query":            buildSearchQuery(p),
		"sort":             buildSortQuery(p.Query),
		"from":             from,
		"size":             p.PageSize,
		"track_total_hits": true,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source EventDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	events := make([]models.Event, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		events[i] = hit.Source.toEvent()
	}

	return events, response.Hits.Total.Value, nil
}

func buildSearchQuery(p SearchParams) map[string]interface{} {
	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"tenant_id": p.TenantID}},
		{"term": map[string]interface{}{"status": models.EventStatusPublished}},
		{"term": map[string]interface{}{"is_active": true}},
	}

	if p.OpenAfter != nil {
		filters = append(filters, map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"range": map[string]interface{}{"ends_at": map[string]interface{}{"gte": p.OpenAfter.UTC().Format(time.RFC3339)}}},
					{"bool": map[string]interface{}{
						"must_not": map[string]interface{}{"exists": map[string]interface{}{"field": "ends_at"}},
						"filter":   map[string]interface{}{"range": map[string]interface{}{"starts_at": map[string]interface{}{"gte": p.OpenAfter.UTC().Format(time.RFC3339)}}},
					}},
				},
				"minimum_should_match": 1,
			},
		})
	}

	boolQuery := map[string]interface{}{"filter": filters}
	if p.Query != "" {
		boolQuery["must"] = []map[string]interface{}{{
			"multi_match": map[string]interface{}{
				"query":     p.Query,
				"fields":    []string{"name^3", "venue^2", "description"},
				"fuzziness": "AUTO",
			},
		}}
	}

	return map[string]interface{}{"bool": boolQuery}
}

func buildSortQuery(query string) []map[string]interface{} {
	if query != "" {
		return []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"starts_at": map[string]interface{}{"order": "asc"}},
		}
	}
	return []map[string]interface{}{
		{"starts_at": map[string]interface{}{"order": "asc"}},
	}
}

// IndexEvent индексирует или перезаписывает событие
func (c *ElasticsearchClient) IndexEvent(ctx context.Context, event *models.Event) error {
	docJSON, err := json.Marshal(documentFromEvent(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: event.ID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteEvent удаляет событие из индекса
func (c *ElasticsearchClient) DeleteEvent(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: id,
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
