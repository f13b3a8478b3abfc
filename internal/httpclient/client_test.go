package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type testPayload struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestClient(baseURL string, retries int) *Client {
	c := New(Config{BaseURL: baseURL, Timeout: 2 * time.Second, Retries: retries})
	c.sleep = noSleep
	return c
}

func TestGetDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/iph-001" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(testPayload{ID: "iph-001", Count: 3})
	}))
	defer srv.Close()

	resp, err := Get[testPayload](context.Background(), newTestClient(srv.URL, 2), "/reports/iph-001", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK {
		t.Error("expected OK for 200")
	}
	if resp.Status != http.StatusOK || resp.StatusText != "OK" {
		t.Errorf("status = %d %q", resp.Status, resp.StatusText)
	}
	if resp.Data.ID != "iph-001" || resp.Data.Count != 3 {
		t.Errorf("unexpected data: %+v", resp.Data)
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", resp.Attempts)
	}
}

func TestRetryTuningHonored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		Retries:   2,
		RetryBase: 10 * time.Millisecond,
		RetryCap:  20 * time.Millisecond,
	})
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if _, err := Get[testPayload](context.Background(), c, "/reports", nil); err == nil {
		t.Fatal("expected error")
	}
	if len(slept) != 2 {
		t.Fatalf("recorded %d backoffs, want 2", len(slept))
	}
	// With the default 300ms base every backoff would be at least 300ms;
	// tuned delays stay under cap plus jitter.
	for i, d := range slept {
		if d < 10*time.Millisecond || d >= 220*time.Millisecond {
			t.Errorf("backoff %d = %s, want within [10ms, 220ms)", i+1, d)
		}
	}
}

func TestRetryExhaustionOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"down"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Get[testPayload](context.Background(), newTestClient(srv.URL, 3), "/reports", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	ce, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ce.Kind != KindStatus || ce.Status != http.StatusServiceUnavailable {
		t.Errorf("kind=%v status=%d", ce.Kind, ce.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("server saw %d requests, want 4 (1 + 3 retries)", got)
	}
	if ce.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", ce.Attempts)
	}
	if len(ce.Body) == 0 {
		t.Error("expected raw error body to be preserved")
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Get[testPayload](context.Background(), newTestClient(srv.URL, 3), "/reports/missing", nil)
	if StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d requests, want 1 (4xx is terminal)", got)
	}
}

func TestTooManyRequestsIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, `{"error":"slow down"}`, http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":"ok"}`))
	}))
	defer srv.Close()

	resp, err := Get[testPayload](context.Background(), newTestClient(srv.URL, 3), "/reports", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", resp.Attempts)
	}
}

func TestPostNotRetriedByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Post[testPayload](context.Background(), newTestClient(srv.URL, 3), "/reports", testPayload{ID: "x"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d POSTs, want 1", got)
	}
}

func TestPostRetriedWhenOptedIn(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	two := 2
	_, err := Post[testPayload](context.Background(), newTestClient(srv.URL, 0), "/reports",
		testPayload{ID: "x"}, &RequestOptions{Retries: &two})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server saw %d POSTs, want 3 (explicit opt-in)", got)
	}
}

func TestNetworkErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	start := time.Now()
	_, err := Get[testPayload](context.Background(), newTestClient(srv.URL, 2), "/reports", nil)
	if !IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	ce, _ := AsError(err)
	if ce.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ce.Attempts)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("injected sleeper should avoid real backoff, took %v", elapsed)
	}
}

func TestTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1)
	_, err := Get[testPayload](context.Background(), c, "/slow", &RequestOptions{Timeout: 30 * time.Millisecond})
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	ce, _ := AsError(err)
	if ce.Attempts != 2 {
		t.Errorf("timeouts should be retried: Attempts = %d, want 2", ce.Attempts)
	}
}

func TestCancellationClassification(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := Get[testPayload](ctx, newTestClient(srv.URL, 3), "/slow", nil)
	if !IsCanceled(err) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestParseErrorBodyReturnsEnvelope(t *testing.T) {
	type upstreamError struct {
		Error string `json:"error"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(upstreamError{Error: "bad folio"})
	}))
	defer srv.Close()

	resp, err := Get[upstreamError](context.Background(), newTestClient(srv.URL, 2), "/reports",
		&RequestOptions{ParseErrorBody: true})
	if err != nil {
		t.Fatalf("ParseErrorBody should suppress the typed error, got %v", err)
	}
	if resp.OK {
		t.Error("expected OK=false for 400")
	}
	if resp.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.Status)
	}
	if resp.Data.Error != "bad folio" {
		t.Errorf("error body not decoded: %+v", resp.Data)
	}
}

func TestDecodeFailureOnSuccessIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": not-json`))
	}))
	defer srv.Close()

	_, err := Get[testPayload](context.Background(), newTestClient(srv.URL, 0), "/reports", nil)
	if err == nil {
		t.Fatal("expected decode error for malformed success body")
	}
}

func TestHeaderMerging(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL: srv.URL,
		Timeout: time.Second,
		DefaultHeaders: map[string]string{
			"User-Agent":    "iph-console/test",
			"X-Environment": "default",
		},
	})
	c.sleep = noSleep

	_, err := Post[map[string]any](context.Background(), c, "/reports", map[string]string{"a": "b"},
		&RequestOptions{Headers: map[string]string{"X-Environment": "override"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Get("User-Agent") != "iph-console/test" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("X-Environment") != "override" {
		t.Errorf("per-call header should win: %q", got.Get("X-Environment"))
	}
	if got.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", got.Get("Content-Type"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", got.Get("Accept"))
	}
}

func TestResolveURL(t *testing.T) {
	c := New(Config{BaseURL: "http://registry.local/api/v1/"})
	tests := []struct {
		path     string
		expected string
	}{
		{"/reports", "http://registry.local/api/v1/reports"},
		{"reports", "http://registry.local/api/v1/reports"},
		{"", "http://registry.local/api/v1"},
		{"https://other.example/abs", "https://other.example/abs"},
		{"http://other.example/abs", "http://other.example/abs"},
	}
	for _, tt := range tests {
		if got := c.resolveURL(tt.path); got != tt.expected {
			t.Errorf("resolveURL(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := New(Config{BaseURL: "http://x", Retries: -5})
	cfg := c.Config()
	if cfg.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, defaultTimeout)
	}
	if cfg.Retries != 0 {
		t.Errorf("Retries = %d, want 0", cfg.Retries)
	}
}
