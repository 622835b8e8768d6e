package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/allsafeASM/intel/internal/config"
	"github.com/gin-gonic/gin"
)

const testKey = "st-test-key-0123456789"

type mockUpstream struct {
	server   *httptest.Server
	calls    atomic.Int32
	lastPath atomic.Value
	lastKey  atomic.Value
	lastQ    atomic.Value
}

func newMockUpstream(t *testing.T, status int, body string) *mockUpstream {
	t.Helper()
	m := &mockUpstream{}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.calls.Add(1)
		m.lastPath.Store(r.URL.Path)
		m.lastKey.Store(r.Header.Get("APIKEY"))
		m.lastQ.Store(r.URL.RawQuery)
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Expected Accept: application/json, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func testConfig(upstreamBase, key string) config.GatewayConfig {
	return config.GatewayConfig{
		ListenAddr:      ":0",
		RoutePrefix:     "/proxy",
		UpstreamBaseURL: upstreamBase,
		Credential:      key,
		UpstreamTimeout: 5,
		ShutdownTimeout: 5,
	}
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	expected := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Max-Age":       "86400",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("Expected %s %q, got %q", header, want, got)
		}
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestProxyForwardsAllowListedPath(t *testing.T) {
	upstream := newMockUpstream(t, http.StatusOK, `{"hostname":"example.com"}`)
	router := NewRouter(testConfig(upstream.server.URL+"/v1", testKey), nil)

	rec := serve(router, http.MethodGet, "/proxy/domain/example.com/subdomains?children_only=false&include_inactive=false")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := upstream.calls.Load(); got != 1 {
		t.Fatalf("Expected exactly one upstream call, got %d", got)
	}
	if got := upstream.lastPath.Load(); got != "/v1/domain/example.com/subdomains" {
		t.Errorf("Unexpected upstream path %v", got)
	}
	if got := upstream.lastQ.Load(); got != "children_only=false&include_inactive=false" {
		t.Errorf("Expected query string to be forwarded, got %v", got)
	}
	if got := upstream.lastKey.Load(); got != testKey {
		t.Errorf("Expected credential to be injected, got %v", got)
	}
	if rec.Body.String() != `{"hostname":"example.com"}` {
		t.Errorf("Expected body to be relayed verbatim, got %s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got %q", cc)
	}
	assertCORS(t, rec)
}

func TestProxyRelaysUpstreamErrorStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			body := `{"message":"upstream says no"}`
			upstream := newMockUpstream(t, status, body)
			router := NewRouter(testConfig(upstream.server.URL, testKey), nil)

			rec := serve(router, http.MethodGet, "/proxy/ips/nearby/8.8.8.8")
			if rec.Code != status {
				t.Errorf("Expected status %d to be relayed, got %d", status, rec.Code)
			}
			if rec.Body.String() != body {
				t.Errorf("Expected body relayed verbatim, got %s", rec.Body.String())
			}
			assertCORS(t, rec)
		})
	}
}

func TestProxyEmptyRemainderIsPing(t *testing.T) {
	upstream := newMockUpstream(t, http.StatusOK, `{"success":true}`)
	router := NewRouter(testConfig(upstream.server.URL, testKey), nil)

	rec := serve(router, http.MethodGet, "/proxy")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := upstream.lastPath.Load(); got != "/ping" {
		t.Errorf("Expected forward to /ping, got %v", got)
	}
}

func TestProxyRejectsPathsOutsideAllowList(t *testing.T) {
	paths := []string{
		"/proxy/admin/secrets",
		"/proxy/",
		"/proxy/domain/example.com/history",
		"/proxy/domain/../admin",
		"/proxy/domain/..",
		"/proxy/domain/example.com/dns/a/extra",
		"/proxy/ips/nearby/not-an-ip",
		"/proxy/account",
		"/proxyadmin",
		"/domain/example.com",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			upstream := newMockUpstream(t, http.StatusOK, `{}`)
			router := NewRouter(testConfig(upstream.server.URL, testKey), nil)

			rec := serve(router, http.MethodGet, p)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("Expected 403 for %s, got %d", p, rec.Code)
			}
			if upstream.calls.Load() != 0 {
				t.Errorf("Expected upstream not to be contacted for %s", p)
			}
			body := decodeBody(t, rec)
			if body["error"] != "endpoint not permitted" {
				t.Errorf("Unexpected error body: %v", body)
			}
			if _, ok := body["path"]; !ok {
				t.Error("Expected rejected path in body")
			}
			assertCORS(t, rec)
		})
	}
}

func TestProxyWithoutCredential(t *testing.T) {
	upstream := newMockUpstream(t, http.StatusOK, `{}`)
	router := NewRouter(testConfig(upstream.server.URL, ""), nil)

	rec := serve(router, http.MethodGet, "/proxy/domain/example.com")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	if upstream.calls.Load() != 0 {
		t.Error("Expected upstream not to be contacted without a credential")
	}

	body := decodeBody(t, rec)
	if body["error"] == nil || body["error"] == "" {
		t.Error("Expected error message")
	}
	if body["hint"] == nil || body["hint"] == "" {
		t.Error("Expected configuration hint")
	}
	assertCORS(t, rec)
}

func TestProxyMethodHandling(t *testing.T) {
	upstream := newMockUpstream(t, http.StatusOK, `{}`)
	router := NewRouter(testConfig(upstream.server.URL, testKey), nil)

	t.Run("options", func(t *testing.T) {
		rec := serve(router, http.MethodOptions, "/proxy/domain/example.com")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("Expected empty body, got %q", rec.Body.String())
		}
		assertCORS(t, rec)
	})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rec := serve(router, method, "/proxy/domain/example.com")
			if rec.Code != http.StatusMethodNotAllowed {
				t.Fatalf("Expected 405, got %d", rec.Code)
			}
			body := decodeBody(t, rec)
			if body["error"] != "method not allowed" {
				t.Errorf("Unexpected body: %v", body)
			}
			assertCORS(t, rec)
		})
	}

	if upstream.calls.Load() != 0 {
		t.Errorf("Expected no upstream calls, got %d", upstream.calls.Load())
	}
}

func TestProxyTransportFailure(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	router := NewRouter(testConfig(deadURL, testKey), nil)

	rec := serve(router, http.MethodGet, "/proxy/domain/example.com")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["error"] != "upstream fetch failed" {
		t.Errorf("Unexpected error: %v", body["error"])
	}
	if detail, _ := body["detail"].(string); detail == "" {
		t.Error("Expected transport detail")
	}
	if strings.Contains(rec.Body.String(), testKey) {
		t.Error("Credential leaked into 502 body")
	}
	assertCORS(t, rec)
}

func TestProxyUpstreamTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(3 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	cfg := testConfig(slow.URL, testKey)
	cfg.UpstreamTimeout = 1
	router := NewRouter(cfg, nil)

	rec := serve(router, http.MethodGet, "/proxy/ping")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502 on timeout, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["detail"] != "upstream request timed out" {
		t.Errorf("Unexpected detail: %v", body["detail"])
	}
}

func TestHealthz(t *testing.T) {
	router := NewRouter(testConfig("https://api.example.invalid", testKey), nil)

	rec := serve(router, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["credential_configured"] != true {
		t.Errorf("Expected credential_configured true, got %v", body["credential_configured"])
	}
	if strings.Contains(rec.Body.String(), testKey) {
		t.Error("Credential leaked into health response")
	}
}
