package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/allsafeASM/intel/internal/config"
	"github.com/allsafeASM/intel/internal/gateway"
	"github.com/allsafeASM/intel/internal/models"
	"github.com/allsafeASM/intel/internal/scan"
	"github.com/gin-gonic/gin"
)

const testCredential = "st-test-credential"

// mockUpstream answers like the intelligence API and requires the gateway's key
type mockUpstream struct {
	calls atomic.Int32
}

func (m *mockUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")

	if r.Header.Get("APIKEY") != testCredential {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid authentication credentials"}`))
		return
	}

	switch r.URL.Path {
	case "/ping":
		w.Write([]byte(`{"success":true}`))
	case "/domain/example.com":
		w.Write([]byte(`{"hostname":"example.com","current_dns":{"a":{"values":[{"ip":"93.184.216.34"}]}}}`))
	case "/domain/example.com/subdomains":
		w.Write([]byte(`{"subdomains":["www","mail"],"subdomain_count":2}`))
	case "/domain/example.com/dns/a":
		w.Write([]byte(`{"records":[]}`))
	case "/ips/nearby/8.8.8.8":
		w.Write([]byte(`{"blocks":[{"ip":"8.8.8.8"}]}`))
	case "/ips/8.8.8.8/domains":
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	}
}

// newTestGateway starts an upstream mock behind a real gateway and returns
// the gateway URL a client should use.
func newTestGateway(t *testing.T, credential string) (string, *mockUpstream) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := &mockUpstream{}
	upstreamServer := httptest.NewServer(upstream)
	t.Cleanup(upstreamServer.Close)

	cfg := config.GatewayConfig{
		ListenAddr:      ":0",
		RoutePrefix:     "/proxy",
		UpstreamBaseURL: upstreamServer.URL,
		Credential:      credential,
		UpstreamTimeout: 5,
		ShutdownTimeout: 5,
	}
	gatewayServer := httptest.NewServer(gateway.NewRouter(cfg, gateway.DefaultAllowList()))
	t.Cleanup(gatewayServer.Close)

	return gatewayServer.URL + "/proxy", upstream
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Client: config.DefaultClientConfig(),
		Azure:  config.DefaultAzureConfig(),
		App:    config.DefaultAppConfig(),
	}
	cfg.App.LogLevel = "silent"
	cfg.Client.StoreBackend = config.StoreBackendMemory
	cfg.Client.SubqueryDelayMs = 0
	cfg.Client.DemoDelayMs = 0
	return cfg
}

func newTestSession(t *testing.T, cfg *config.Config, opts Options) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestRunScanThroughGateway(t *testing.T) {
	gatewayURL, _ := newTestGateway(t, testCredential)
	s := newTestSession(t, testConfig(), Options{GatewayURL: gatewayURL})

	if s.Mode() != "gateway" {
		t.Fatalf("Expected gateway mode, got %s", s.Mode())
	}

	report, err := s.RunScan(context.Background(), "Example.COM", models.KindDomain)
	if err != nil {
		t.Fatalf("Expected scan to succeed, got: %v", err)
	}
	if report.Target.Value != "example.com" {
		t.Errorf("Expected normalized target, got %s", report.Target.Value)
	}
	for _, key := range []string{models.KeyDomainInfo, models.KeySubdomains, models.KeyDNSInfo} {
		if !report.Result.Has(key) {
			t.Errorf("Expected %s in result", key)
		}
	}
	if report.Result.Demo {
		t.Error("Expected live result, got demo")
	}

	stats := s.Stats()
	if stats.Total != 1 || stats.Success != 1 || stats.Failed != 0 || stats.DomainsScanned != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	history := s.History()
	if len(history) != 1 || history[0].Target != "example.com" || history[0].Kind != models.KindDomain {
		t.Errorf("Unexpected history %+v", history)
	}
}

func TestRunScanIPPartialData(t *testing.T) {
	gatewayURL, _ := newTestGateway(t, testCredential)
	s := newTestSession(t, testConfig(), Options{GatewayURL: gatewayURL})

	report, err := s.RunScan(context.Background(), "8.8.8.8", models.KindIP)
	if err != nil {
		t.Fatalf("Expected scan to succeed with one usable query, got: %v", err)
	}
	if !report.Result.Has(models.KeyIPInfo) || report.Result.Has(models.KeyIPAssociated) {
		t.Errorf("Unexpected result keys %+v", report.Result)
	}

	stats := s.Stats()
	if stats.Success != 1 || stats.DomainsScanned != 0 {
		t.Errorf("IP scans must not count as domains: %+v", stats)
	}
}

func TestRunScanNotFoundCountsFailure(t *testing.T) {
	gatewayURL, _ := newTestGateway(t, testCredential)
	s := newTestSession(t, testConfig(), Options{GatewayURL: gatewayURL})

	_, err := s.RunScan(context.Background(), "missing.com", models.KindDomain)
	var failure *ScanFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected ScanFailure, got %v", err)
	}
	if !strings.Contains(failure.Message, "404") {
		t.Errorf("Expected user-facing 404 message, got %q", failure.Message)
	}

	stats := s.Stats()
	if stats.Total != 1 || stats.Failed != 1 || stats.Success != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if len(s.History()) != 0 {
		t.Error("Failed scans must not be added to history")
	}
}

func TestRunScanValidationFailure(t *testing.T) {
	gatewayURL, upstream := newTestGateway(t, testCredential)
	s := newTestSession(t, testConfig(), Options{GatewayURL: gatewayURL})

	_, err := s.RunScan(context.Background(), "not a domain", models.KindDomain)
	var failure *ScanFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected ScanFailure, got %v", err)
	}
	if upstream.calls.Load() != 0 {
		t.Errorf("Expected no upstream calls, got %d", upstream.calls.Load())
	}
	if stats := s.Stats(); stats.Total != 1 || stats.Failed != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if len(s.History()) != 0 {
		t.Error("Expected empty history")
	}
}

func TestRunScanGatewayWithoutCredential(t *testing.T) {
	gatewayURL, upstream := newTestGateway(t, "")
	s := newTestSession(t, testConfig(), Options{GatewayURL: gatewayURL})

	_, err := s.RunScan(context.Background(), "example.com", models.KindDomain)
	var failure *ScanFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected ScanFailure, got %v", err)
	}
	if !strings.Contains(failure.Message, "503") {
		t.Errorf("Expected 503 message, got %q", failure.Message)
	}
	if upstream.calls.Load() != 0 {
		t.Error("Gateway without credential must not call upstream")
	}
	if strings.Contains(failure.Message, testCredential) {
		t.Error("Credential leaked into user message")
	}
}

func TestDemoModeWithoutGateway(t *testing.T) {
	s := newTestSession(t, testConfig(), Options{})

	if s.Mode() != ModeDemo {
		t.Fatalf("Expected demo mode, got %s", s.Mode())
	}

	report, err := s.RunScan(context.Background(), "example.org", models.KindDomain)
	if err != nil {
		t.Fatalf("Expected demo scan to succeed, got: %v", err)
	}
	if !report.Result.Demo {
		t.Error("Expected demo result")
	}
	if stats := s.Stats(); stats.Success != 1 || stats.DomainsScanned != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	if _, err := s.Ping(context.Background()); err == nil {
		t.Error("Expected ping to fail without a gateway")
	}
}

func TestSavedGatewayIsUsed(t *testing.T) {
	gatewayURL, _ := newTestGateway(t, testCredential)
	cfg := testConfig()

	s := newTestSession(t, cfg, Options{})
	if err := s.SaveGatewayURL(context.Background(), gatewayURL); err != nil {
		t.Fatalf("SaveGatewayURL failed: %v", err)
	}
	if err := s.SaveGatewayURL(context.Background(), "not-a-url"); err == nil {
		t.Error("Expected invalid gateway URL to be rejected")
	}

	// The memory store lives only as long as the session
	if err := s.initializeFetcher(context.Background()); err != nil {
		t.Fatalf("initializeFetcher failed: %v", err)
	}
	if s.Mode() != "gateway" {
		t.Errorf("Expected saved gateway to be used, got %s", s.Mode())
	}
}

func TestPingThroughGateway(t *testing.T) {
	gatewayURL, _ := newTestGateway(t, testCredential)
	s := newTestSession(t, testConfig(), Options{GatewayURL: gatewayURL})

	msg, err := s.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if msg != "pong" {
		t.Errorf("Expected pong, got %q", msg)
	}
}

func TestRunScanBusyIsNotCounted(t *testing.T) {
	cfg := testConfig()
	cfg.Client.DemoDelayMs = 300
	s := newTestSession(t, cfg, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunScan(context.Background(), "example.com", models.KindDomain)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !s.orchestrator.Busy() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	_, err := s.RunScan(context.Background(), "example.net", models.KindDomain)
	if !errors.Is(err, scan.ErrScanInProgress) {
		t.Errorf("Expected ErrScanInProgress, got %v", err)
	}
	<-done

	if stats := s.Stats(); stats.Total != 1 || stats.Success != 1 {
		t.Errorf("Rejected scan must not be counted: %+v", stats)
	}
}

func TestExportFile(t *testing.T) {
	s := newTestSession(t, testConfig(), Options{})

	report, err := s.RunScan(context.Background(), "example.com", models.KindDomain)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	path, err := s.ExportFile(report, t.TempDir())
	if err != nil {
		t.Fatalf("ExportFile failed: %v", err)
	}
	if !strings.Contains(path, "recon_example.com_") {
		t.Errorf("Unexpected export path %s", path)
	}

	if _, err := s.ExportBlob(context.Background(), report); err == nil {
		t.Error("Expected blob export to fail without Blob Storage")
	}
}
