package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rental-process/internal/common/config"
	"rental-process/internal/common/logger"
	"rental-process/internal/common/metrics"
	"rental-process/internal/common/observability"
	"rental-process/internal/models"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

const (
	ViewTenants = "tenants"
	ViewUnits   = "units"
)

type TenantSearcher interface {
	SearchTenants(ctx context.Context, filter models.TenantFilter) ([]models.TenantSummary, error)
}

type UnitSearcher interface {
	SearchAvailableUnits(ctx context.Context, filter models.UnitFilter) ([]models.UnitSummary, error)
}

// Service answers both lookups from Elasticsearch.
type Service struct {
	client      *elasticsearch.Client
	tenantIndex string
	unitIndex   string
	pageSize    int
	logger      logger.Logger
	obs         *observability.Observability
}

func NewService(client *elasticsearch.Client, cfg config.SearchConfig, log logger.Logger, obs *observability.Observability) *Service {
	return &Service{
		client:      client,
		tenantIndex: cfg.TenantIndex,
		unitIndex:   cfg.UnitIndex,
		pageSize:    cfg.PageSize,
		logger:      logger.ForComponent(log, "search"),
		obs:         obs,
	}
}

func (s *Service) SearchTenants(ctx context.Context, f models.TenantFilter) ([]models.TenantSummary, error) {
	from, size := page(f.Page, f.Size, s.pageSize)
	hits, err := execute[models.TenantSummary](ctx, s, ViewTenants, s.tenantIndex, TenantQuery(f), from, size)
	if err != nil {
		return nil, err
	}
	out := make([]models.TenantSummary, 0, len(hits))
	for _, h := range hits {
		if h.Source.ID == "" {
			h.Source.ID = h.ID
		}
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *Service) SearchAvailableUnits(ctx context.Context, f models.UnitFilter) ([]models.UnitSummary, error) {
	from, size := page(f.Page, f.Size, s.pageSize)
	hits, err := execute[models.UnitSummary](ctx, s, ViewUnits, s.unitIndex, UnitQuery(f), from, size)
	if err != nil {
		return nil, err
	}
	out := make([]models.UnitSummary, 0, len(hits))
	for _, h := range hits {
		if h.Source.ID == "" {
			h.Source.ID = h.ID
		}
		out = append(out, h.Source)
	}
	return out, nil
}

type hit[T any] struct {
	ID     string `json:"_id"`
	Source T      `json:"_source"`
}

type searchResponse[T any] struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []hit[T] `json:"hits"`
	} `json:"hits"`
}

func execute[T any](ctx context.Context, s *Service, view, index string, query map[string]interface{}, from, size int) (hits []hit[T], err error) {
	ctx, span := observability.Tracer().Start(ctx, "search."+view)
	span.SetAttributes(attribute.String("search.index", index))
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		metrics.QueryDuration.WithLabelValues(view).Observe(elapsed.Seconds())
		s.obs.RecordQuery(ctx, view, elapsed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrSearchTimeout, view)
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		s.logger.Warn("search returned error status", map[string]interface{}{
			"view":   view,
			"index":  index,
			"status": res.StatusCode,
		})
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.String())
	}

	var r searchResponse[T]
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchQueryFailed, err)
	}

	span.SetAttributes(attribute.Int64("search.total_hits", r.Hits.Total.Value))
	return r.Hits.Hits, nil
}
