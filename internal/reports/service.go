// Package reports talks to the upstream IPH registry through the resilient
// client and fronts it with the TTL cache. The composition rule is fixed:
// check the cache, fetch on miss, write back. The client and the cache
// never call each other.
package reports

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cuadrantes/iph-console/backend/internal/cache"
	"github.com/cuadrantes/iph-console/backend/internal/circuitbreaker"
	"github.com/cuadrantes/iph-console/backend/internal/httpclient"
	"github.com/cuadrantes/iph-console/backend/internal/logger"
)

// Namespace partitions every cache key this service writes.
const Namespace = "reports"

const statsKey = "stats"

// ServiceConfig tunes cache TTLs per data shape. Zero values get defaults
// matching the dashboard's refresh expectations.
type ServiceConfig struct {
	ListTTL   time.Duration
	DetailTTL time.Duration
	StatsTTL  time.Duration
	GeoTTL    time.Duration

	// Breaker, when set, sheds upstream load after repeated failures.
	Breaker *circuitbreaker.CircuitBreaker
}

// Service is the report feature service consumed by the API handlers.
type Service struct {
	client  *httpclient.Client
	cache   *cache.Cache
	breaker *circuitbreaker.CircuitBreaker

	listTTL   time.Duration
	detailTTL time.Duration
	statsTTL  time.Duration
	geoTTL    time.Duration
}

// NewService builds a report service over the given client and cache.
func NewService(client *httpclient.Client, c *cache.Cache, cfg ServiceConfig) *Service {
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 30 * time.Second
	}
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = 5 * time.Minute
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 10 * time.Minute
	}
	if cfg.GeoTTL <= 0 {
		cfg.GeoTTL = time.Minute
	}
	return &Service{
		client:    client,
		cache:     c,
		breaker:   cfg.Breaker,
		listTTL:   cfg.ListTTL,
		detailTTL: cfg.DetailTTL,
		statsTTL:  cfg.StatsTTL,
		geoTTL:    cfg.GeoTTL,
	}
}

// List returns one page of reports. Pages are cached in the session backend
// for a short TTL; listings churn too fast for durable storage.
func (s *Service) List(ctx context.Context, params ListParams) (*Page, error) {
	key := "list:" + params.queryString()
	return cachedFetch[Page](ctx, s, key, cachePlan{session: true, ttl: s.listTTL, priority: cache.PriorityNormal},
		func() (*httpclient.Response[Page], error) {
			return httpclient.Get[Page](ctx, s.client, "/reports?"+params.queryString(), nil)
		})
}

// Get returns a single report by ID, cached durably so a reopened console
// shows the detail without a round trip.
func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	return cachedFetch[Report](ctx, s, detailKey(id), cachePlan{ttl: s.detailTTL, priority: cache.PriorityHigh},
		func() (*httpclient.Response[Report], error) {
			return httpclient.Get[Report](ctx, s.client, "/reports/"+url.PathEscape(id), nil)
		})
}

// Stats returns aggregate counts for the dashboard panels.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return cachedFetch[Stats](ctx, s, statsKey, cachePlan{ttl: s.statsTTL, priority: cache.PriorityLow},
		func() (*httpclient.Response[Stats], error) {
			return httpclient.Get[Stats](ctx, s.client, "/reports/stats", nil)
		})
}

// GeoPoints returns map points within bounds, session-cached per viewport.
func (s *Service) GeoPoints(ctx context.Context, b Bounds) ([]GeoPoint, error) {
	key := fmt.Sprintf("geo:%.4f,%.4f,%.4f,%.4f", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
	points, err := cachedFetch[[]GeoPoint](ctx, s, key, cachePlan{session: true, ttl: s.geoTTL, priority: cache.PriorityNormal},
		func() (*httpclient.Response[[]GeoPoint], error) {
			q := url.Values{}
			q.Set("minLat", formatCoord(b.MinLat))
			q.Set("minLng", formatCoord(b.MinLng))
			q.Set("maxLat", formatCoord(b.MaxLat))
			q.Set("maxLng", formatCoord(b.MaxLng))
			return httpclient.Get[[]GeoPoint](ctx, s.client, "/reports/geo?"+q.Encode(), nil)
		})
	if err != nil {
		return nil, err
	}
	return *points, nil
}

// Create registers a new report. Creation is never retried automatically:
// a duplicate IPH folio is worse than a failed submission the operator can
// repeat.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Report, error) {
	var resp *httpclient.Response[Report]
	err := s.guard(func() error {
		var err error
		resp, err = httpclient.Post[Report](ctx, s.client, "/reports", req, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	return &resp.Data, nil
}

// Update modifies a report and refreshes its cached detail.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Report, error) {
	var resp *httpclient.Response[Report]
	err := s.guard(func() error {
		var err error
		resp, err = httpclient.Put[Report](ctx, s.client, "/reports/"+url.PathEscape(id), req, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.DeleteFrom(ctx, Namespace, detailKey(id), false)
	s.invalidateListings(ctx)
	return &resp.Data, nil
}

// Delete removes a report from the registry and from both cache backends.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.guard(func() error {
		_, err := httpclient.Delete[struct{}](ctx, s.client, "/reports/"+url.PathEscape(id), nil)
		return err
	})
	if err != nil {
		return err
	}
	s.cache.DeleteFrom(ctx, Namespace, detailKey(id), false)
	s.invalidateListings(ctx)
	return nil
}

// invalidateListings drops every derived view after a write: listing pages
// and geo points in the session backend, aggregates in the persistent one.
func (s *Service) invalidateListings(ctx context.Context) {
	s.cache.Clear(ctx, Namespace, true)
	s.cache.DeleteFrom(ctx, Namespace, statsKey, false)
}

func (s *Service) guard(fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	return s.breaker.Call(fn)
}

type cachePlan struct {
	session  bool
	ttl      time.Duration
	priority cache.Priority
}

// cachedFetch is the read path shared by every cached operation.
func cachedFetch[T any](ctx context.Context, s *Service, key string, plan cachePlan, fetch func() (*httpclient.Response[T], error)) (*T, error) {
	if v, ok := cache.GetFrom[T](ctx, s.cache, Namespace, key, plan.session); ok {
		return &v, nil
	}
	var resp *httpclient.Response[T]
	err := s.guard(func() error {
		var err error
		resp, err = fetch()
		return err
	})
	if err != nil {
		return nil, err
	}
	if !s.cache.Set(ctx, key, resp.Data, cache.SetOptions{
		ExpiresIn:         plan.ttl,
		Priority:          plan.priority,
		Namespace:         Namespace,
		UseSessionStorage: plan.session,
		Metadata:          map[string]any{"fetchedIn": resp.Duration.String(), "attempts": resp.Attempts},
	}) {
		logger.DebugContext(ctx, "report cache write skipped", "key", key)
	}
	return &resp.Data, nil
}

func detailKey(id string) string { return "detail:" + id }

func formatCoord(f float64) string { return strconv.FormatFloat(f, 'f', 6, 64) }

func (p ListParams) queryString() string {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.IncidentType != "" {
		q.Set("incidentType", p.IncidentType)
	}
	if p.Municipality != "" {
		q.Set("municipality", p.Municipality)
	}
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	return q.Encode()
}
