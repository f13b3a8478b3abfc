package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuadrantes/iph-console/backend/internal/cache"
	"github.com/cuadrantes/iph-console/backend/internal/circuitbreaker"
	"github.com/cuadrantes/iph-console/backend/internal/httpclient"
)

type upstream struct {
	srv   *httptest.Server
	calls int32
}

func (u *upstream) count() int32 { return atomic.LoadInt32(&u.calls) }

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&u.calls, 1)
		handler(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func newTestService(t *testing.T, u *upstream, breaker *circuitbreaker.CircuitBreaker) (*Service, *cache.Cache) {
	t.Helper()
	c := cache.New(cache.NewMockStore(), cache.NewMockStore())
	client := httpclient.New(httpclient.Config{BaseURL: u.srv.URL, Timeout: 2 * time.Second, Retries: 0})
	svc := NewService(client, c, ServiceConfig{Breaker: breaker})
	return svc, c
}

func sampleReport(id string) Report {
	return Report{ID: id, Folio: "IPH-2026-" + id, Title: "Incident " + id, Status: StatusSubmitted}
}

func TestListCachesPages(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Page{Items: []Report{sampleReport("r1")}, Total: 1, Page: 1, PageSize: 25})
	})
	svc, _ := newTestService(t, u, nil)
	ctx := context.Background()

	params := ListParams{Page: 1, PageSize: 25}
	first, err := svc.List(ctx, params)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first.Items) != 1 || first.Items[0].ID != "r1" {
		t.Errorf("unexpected page: %+v", first)
	}

	second, err := svc.List(ctx, params)
	if err != nil {
		t.Fatalf("second List: %v", err)
	}
	if second.Items[0].ID != "r1" {
		t.Errorf("unexpected cached page: %+v", second)
	}
	if u.count() != 1 {
		t.Errorf("upstream saw %d requests, want 1 (second call served from cache)", u.count())
	}
}

func TestListDistinctParamsAreDistinctEntries(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Page{Page: 1})
	})
	svc, _ := newTestService(t, u, nil)
	ctx := context.Background()

	svc.List(ctx, ListParams{Page: 1})
	svc.List(ctx, ListParams{Page: 2})
	svc.List(ctx, ListParams{Page: 1, Status: "closed"})

	if u.count() != 3 {
		t.Errorf("upstream saw %d requests, want 3 (one per distinct query)", u.count())
	}
}

func TestGetCachesDetailDurably(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/r1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(sampleReport("r1"))
	})
	svc, c := newTestService(t, u, nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "r1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := svc.Get(ctx, "r1"); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if u.count() != 1 {
		t.Errorf("upstream saw %d requests, want 1", u.count())
	}

	// The detail lives in the persistent backend with a high priority.
	e, ok := c.GetEntry(ctx, Namespace, "detail:r1", false)
	if !ok {
		t.Fatal("expected persistent entry")
	}
	if e.Priority != cache.PriorityHigh {
		t.Errorf("priority = %q, want high", e.Priority)
	}
	if e.Metadata["attempts"] == nil {
		t.Error("expected fetch metadata on the entry")
	}
}

func TestWarmedDetailServesFreshProcess(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleReport("r1"))
	})
	persistent := cache.NewMockStore()
	client := httpclient.New(httpclient.Config{BaseURL: u.srv.URL, Timeout: 2 * time.Second, Retries: 0})
	ctx := context.Background()

	// One process warms the detail into the shared persistent backend.
	warmer := NewService(client, cache.New(cache.NewMockStore(), persistent), ServiceConfig{})
	if _, err := warmer.Get(ctx, "r1"); err != nil {
		t.Fatalf("warm Get: %v", err)
	}

	// Another process with its own empty session backend serves it from cache.
	serving := NewService(client, cache.New(cache.NewMockStore(), persistent), ServiceConfig{})
	rep, err := serving.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rep.ID != "r1" {
		t.Errorf("unexpected report: %+v", rep)
	}
	if u.count() != 1 {
		t.Errorf("upstream saw %d requests, want 1 (warmed detail must carry over)", u.count())
	}
}

func TestStatsCached(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Stats{Total: 12})
	})
	svc, _ := newTestService(t, u, nil)
	ctx := context.Background()

	s1, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s1.Total != 12 {
		t.Errorf("total = %d", s1.Total)
	}
	svc.Stats(ctx)
	if u.count() != 1 {
		t.Errorf("upstream saw %d requests, want 1", u.count())
	}
}

func TestGeoPointsCachedPerViewport(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]GeoPoint{{ID: "r1", Latitude: 19.43, Longitude: -99.13}})
	})
	svc, _ := newTestService(t, u, nil)
	ctx := context.Background()

	b := Bounds{MinLat: 19.0, MinLng: -99.5, MaxLat: 19.6, MaxLng: -98.9}
	points, err := svc.GeoPoints(ctx, b)
	if err != nil {
		t.Fatalf("GeoPoints: %v", err)
	}
	if len(points) != 1 {
		t.Errorf("points = %+v", points)
	}

	svc.GeoPoints(ctx, b)
	if u.count() != 1 {
		t.Errorf("same viewport should be cached, upstream saw %d", u.count())
	}

	svc.GeoPoints(ctx, Bounds{MinLat: 20.0, MinLng: -99.5, MaxLat: 20.6, MaxLng: -98.9})
	if u.count() != 2 {
		t.Errorf("different viewport should fetch, upstream saw %d", u.count())
	}
}

func TestCreateInvalidatesListings(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(sampleReport("new"))
		case r.URL.Path == "/reports/stats":
			json.NewEncoder(w).Encode(Stats{Total: 1})
		default:
			json.NewEncoder(w).Encode(Page{Page: 1})
		}
	})
	svc, _ := newTestService(t, u, nil)
	ctx := context.Background()

	svc.List(ctx, ListParams{Page: 1})
	svc.Stats(ctx)
	before := u.count()

	created, err := svc.Create(ctx, CreateRequest{Folio: "IPH-2026-new", Title: "t"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "new" {
		t.Errorf("created = %+v", created)
	}

	// Both derived views must refetch after the write.
	svc.List(ctx, ListParams{Page: 1})
	svc.Stats(ctx)
	if got := u.count() - before; got != 3 {
		t.Errorf("upstream saw %d requests after create, want 3 (create + list + stats)", got)
	}
}

func TestUpdateDropsCachedDetail(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleReport("r1"))
	})
	svc, c := newTestService(t, u, nil)
	ctx := context.Background()

	svc.Get(ctx, "r1")
	title := "updated"
	if _, err := svc.Update(ctx, "r1", UpdateRequest{Title: &title}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, ok := c.GetEntry(ctx, Namespace, "detail:r1", false); ok {
		t.Error("cached detail should be dropped after update")
	}
}

func TestDeleteDropsCachedDetail(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(sampleReport("r1"))
	})
	svc, c := newTestService(t, u, nil)
	ctx := context.Background()

	svc.Get(ctx, "r1")
	if err := svc.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.GetEntry(ctx, Namespace, "detail:r1", false); ok {
		t.Error("cached detail should be dropped after delete")
	}
}

func TestUpstreamErrorPropagates(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"gone"}`, http.StatusNotFound)
	})
	svc, _ := newTestService(t, u, nil)

	_, err := svc.Get(context.Background(), "missing")
	if httpclient.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 to surface, got %v", err)
	}
}

func TestBreakerShedsAfterFailures(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"down"}`, http.StatusInternalServerError)
	})
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "test-upstream",
		FailureThreshold: 2,
		Timeout:          time.Minute,
	})
	svc, _ := newTestService(t, u, breaker)
	ctx := context.Background()

	svc.Stats(ctx)
	svc.Stats(ctx)

	_, err := svc.Stats(ctx)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("expected circuit open, got %v", err)
	}
	if u.count() != 2 {
		t.Errorf("upstream saw %d requests, want 2 (third call shed)", u.count())
	}
}

func TestQueryStringDeterministic(t *testing.T) {
	p := ListParams{Page: 2, PageSize: 50, Status: "closed", Municipality: "Monterrey", Query: "robo"}
	first := p.queryString()
	for i := 0; i < 10; i++ {
		if got := p.queryString(); got != first {
			t.Fatalf("queryString unstable: %q != %q", got, first)
		}
	}
	if first != "municipality=Monterrey&page=2&pageSize=50&q=robo&status=closed" {
		t.Errorf("queryString = %q", first)
	}
}
