package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eventhub/edge-gateway/internal/config"
)

type testUpstream struct {
	server *httptest.Server
	calls  atomic.Int64
}

func newTestUpstream(handler http.HandlerFunc) *testUpstream {
	u := &testUpstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		if handler != nil {
			handler(w, r)
		}
	}))
	return u
}

func newTestGateway(t *testing.T, upstream *testUpstream, mutate func(*config.Config)) *Gateway {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Upstream.BaseURL = upstream.server.URL
	cfg.Upstream.DeploymentID = "test-deploy"
	cfg.Upstream.Timeout = 2 * time.Second
	cfg.Upstream.AssetHost = "https://assets.backend.example"
	if mutate != nil {
		mutate(cfg)
	}
	gw, err := New(cfg, "test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		gw.Close()
		upstream.server.Close()
	})
	return gw
}

func TestValidPageRequestProxied(t *testing.T) {
	var upstreamQuery string
	upstream := newTestUpstream(func(w http.ResponseWriter, r *http.Request) {
		upstreamQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("<html>admin page</html>"))
	})
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("GET", "/events?page=admin", nil))

	if w.Code != http.StatusAccepted {
		t.Errorf("status should mirror upstream, got %d", w.Code)
	}
	if !strings.Contains(upstreamQuery, "page=admin") {
		t.Errorf("page=admin should be appended upstream, got %q", upstreamQuery)
	}
	if w.Body.String() != "<html>admin page</html>" {
		t.Error("page body must pass through untouched")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("page responses must not carry CORS headers")
	}
	if w.Header().Get("X-Proxied-By") == "" || w.Header().Get("X-Proxy-Version") == "" {
		t.Error("diagnostic headers missing")
	}
	if w.Header().Get("X-Response-Time") == "" {
		t.Error("elapsed-duration header missing")
	}
}

func TestUpstreamCannotSpoofProxyIdentity(t *testing.T) {
	upstream := newTestUpstream(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Proxied-By", "origin")
		w.Header().Set("X-Proxy-Version", "0.0.0")
		w.Write([]byte("ok"))
	})
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("GET", "/events", nil))

	if got := w.Header().Get("X-Proxied-By"); got != "edge-gateway" {
		t.Errorf("origin must not overwrite the identity stamp, got %q", got)
	}
	if got := w.Header().Get("X-Proxy-Version"); got != "test" {
		t.Errorf("origin must not overwrite the version stamp, got %q", got)
	}
}

func TestInvalidActionRejectedWithoutUpstreamCall(t *testing.T) {
	upstream := newTestUpstream(nil)
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"method":"api_doSomethingUnlisted"}`)
	gw.ServeHTTP(w, httptest.NewRequest("POST", "/api/rpc", body))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp struct {
		OK    bool     `json:"ok"`
		Code  string   `json:"code"`
		Valid []string `json:"validActions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if resp.Code != "NOT_FOUND" {
		t.Errorf("expected code NOT_FOUND, got %q", resp.Code)
	}
	if len(resp.Valid) == 0 {
		t.Error("expected a sample of valid actions")
	}
	if upstream.calls.Load() != 0 {
		t.Errorf("expected zero upstream calls, got %d", upstream.calls.Load())
	}
}

func TestUnknownQueryActionRejected(t *testing.T) {
	upstream := newTestUpstream(nil)
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("GET", "/exec?action=dropTables", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("action requests are API requests and must get JSON, got %q", ct)
	}
	if upstream.calls.Load() != 0 {
		t.Error("invalid routes must not reach the upstream")
	}
}

func TestUpstream5xxDegrades(t *testing.T) {
	upstream := newTestUpstream(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stack trace here", http.StatusInternalServerError)
	})
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("GET", "/events", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("origin 5xx should surface as 503, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "stack trace here") {
		t.Error("backend error internals must not leak to the client")
	}
	corrID := w.Header().Get("X-Correlation-ID")
	if corrID == "" {
		t.Fatal("correlation ID header missing")
	}
	if !strings.Contains(w.Body.String(), corrID) {
		t.Error("correlation ID should be visible in the error page")
	}
	if w.Header().Get("Retry-After") != "30" {
		t.Errorf("expected Retry-After 30, got %q", w.Header().Get("Retry-After"))
	}
}

func TestUpstream5xxOnAPIReturnsJSON(t *testing.T) {
	upstream := newTestUpstream(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"method":"api_list","payload":{"brandId":"root"}}`)
	gw.ServeHTTP(w, httptest.NewRequest("POST", "/api/rpc", body))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp struct {
		OK     bool   `json:"ok"`
		Code   string `json:"code"`
		CorrID string `json:"corrId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("API callers must always receive valid JSON: %v", err)
	}
	if resp.Code != "UPSTREAM_ERROR" || resp.CorrID == "" {
		t.Errorf("unexpected envelope: %+v", resp)
	}
}

func TestMalformedJSONBodyRejected(t *testing.T) {
	upstream := newTestUpstream(nil)
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("POST", "/api/rpc", strings.NewReader(`{broken`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "BAD_INPUT" {
		t.Errorf("expected BAD_INPUT, got %q", resp.Code)
	}
	if upstream.calls.Load() != 0 {
		t.Error("bad input must be rejected before any network call")
	}
}

func TestPreflightAnsweredLocally(t *testing.T) {
	upstream := newTestUpstream(nil)
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("OPTIONS", "/api/rpc", nil)
	r.Header.Set("Origin", "https://example.com")
	r.Header.Set("Access-Control-Request-Method", "POST")
	gw.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("preflight must allow all origins")
	}
	if upstream.calls.Load() != 0 {
		t.Error("preflight must not contact the upstream")
	}
}

func TestAPIResponseGetsCORSAndCacheDirectives(t *testing.T) {
	upstream := newTestUpstream(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"value":[]}`))
	})
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"method":"api_list"}`)
	gw.ServeHTTP(w, httptest.NewRequest("POST", "/api/rpc", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("API responses must carry CORS headers")
	}
	if w.Header().Get("Cache-Control") != "no-cache, no-store, must-revalidate" {
		t.Errorf("expected default cache directives, got %q", w.Header().Get("Cache-Control"))
	}
	if w.Body.String() != `{"ok":true,"value":[]}` {
		t.Error("success envelope must pass through unmodified")
	}
}

func TestUpstreamCacheControlPreserved(t *testing.T) {
	upstream := newTestUpstream(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte(`{"ok":true}`))
	})
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("POST", "/api/rpc", strings.NewReader(`{"method":"api_list"}`)))

	if w.Header().Get("Cache-Control") != "max-age=60" {
		t.Errorf("upstream cache directives should win, got %q", w.Header().Get("Cache-Control"))
	}
}

func TestStaticAssetRedirect(t *testing.T) {
	upstream := newTestUpstream(nil)
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("GET", "/static/logo.png", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://assets.backend.example/static/logo.png" {
		t.Errorf("unexpected redirect target %q", loc)
	}
	if upstream.calls.Load() != 0 {
		t.Error("assets must not be proxied")
	}
}

func TestTelemetryPathStubbed(t *testing.T) {
	upstream := newTestUpstream(nil)
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("POST", "/backend/telemetry", strings.NewReader(`{}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != `{"ok":true}` {
		t.Errorf("expected stub payload, got %q", w.Body.String())
	}
	if upstream.calls.Load() != 0 {
		t.Error("telemetry must never be forwarded")
	}
}

func TestTimeoutProducesBounded504(t *testing.T) {
	upstream := newTestUpstream(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	gw := newTestGateway(t, upstream, func(cfg *config.Config) {
		cfg.Upstream.Timeout = 100 * time.Millisecond
	})

	w := httptest.NewRecorder()
	start := time.Now()
	gw.ServeHTTP(w, httptest.NewRequest("GET", "/events", nil))
	elapsed := time.Since(start)

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
	if elapsed > time.Second {
		t.Errorf("degraded response should arrive near the bound, took %v", elapsed)
	}
	if !strings.Contains(w.Body.String(), "<html") {
		t.Error("page callers must receive a complete HTML document on timeout")
	}
}

func TestInvalidPathRendersBrandedNotFound(t *testing.T) {
	upstream := newTestUpstream(nil)
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("GET", "/totally/bogus", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<html") || !strings.Contains(body, "events") {
		t.Error("branded 404 should be HTML listing valid top-level routes")
	}
	if upstream.calls.Load() != 0 {
		t.Error("invalid routes must not reach the upstream")
	}
}

func TestLegacyProxyPath(t *testing.T) {
	var upstreamPath, upstreamQuery string
	upstream := newTestUpstream(func(w http.ResponseWriter, r *http.Request) {
		upstreamPath = r.URL.Path
		upstreamQuery = r.URL.RawQuery
	})
	gw := newTestGateway(t, upstream, nil)

	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httptest.NewRequest("GET", "/proxy/rows/42?fields=name", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasSuffix(upstreamPath, "/rows/42") {
		t.Errorf("positional path should be preserved, got %q", upstreamPath)
	}
	if upstreamQuery != "fields=name" {
		t.Errorf("query should be forwarded verbatim, got %q", upstreamQuery)
	}
}
