package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/allsafeASM/intel/internal/common"
)

func TestGatewayClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APIKEY") != "" {
			t.Error("Gateway client must not send an API key")
		}
		if r.URL.Path != "/proxy/domain/example.com" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"hostname":"example.com"}`))
	}))
	defer server.Close()

	client := NewGatewayClient(server.URL+"/proxy/", 5*time.Second)
	body, err := client.Fetch(context.Background(), "/domain/example.com")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(body) != `{"hostname":"example.com"}` {
		t.Errorf("Unexpected body %s", body)
	}
	if client.Mode() != ModeGateway {
		t.Errorf("Expected gateway mode, got %s", client.Mode())
	}
}

func TestDirectClientSendsKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APIKEY") != "direct-key" {
			t.Errorf("Expected APIKEY header, got %q", r.Header.Get("APIKEY"))
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewDirectClient(server.URL, "direct-key", 5*time.Second)
	if _, err := client.Fetch(context.Background(), "/ping"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestFetchUpstreamError(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		message string
	}{
		{http.StatusUnauthorized, `{"message":"Invalid authentication credentials"}`, "Invalid authentication credentials"},
		{http.StatusServiceUnavailable, `{"error":"not configured","hint":"set key"}`, "not configured"},
		{http.StatusTooManyRequests, ``, "Too Many Requests"},
		{http.StatusInternalServerError, `<html>oops</html>`, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewGatewayClient(server.URL, 5*time.Second).Fetch(context.Background(), "/ping")

			var appErr *common.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("Expected *common.AppError, got %v", err)
			}
			if appErr.Type != common.ErrorTypeUpstream {
				t.Errorf("Expected upstream error, got %s", appErr.Type)
			}
			if appErr.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, appErr.Status)
			}
			if appErr.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, appErr.Message)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	_, err := NewGatewayClient(server.URL, 100*time.Millisecond).Fetch(context.Background(), "/ping")

	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected *common.AppError, got %v", err)
	}
	if appErr.Type != common.ErrorTypeTimeout {
		t.Errorf("Expected timeout error, got %s", appErr.Type)
	}
}

func TestFetchNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewGatewayClient(url, time.Second).Fetch(context.Background(), "/ping")

	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected *common.AppError, got %v", err)
	}
	if !appErr.IsTransport() {
		t.Errorf("Expected transport error, got %s", appErr.Type)
	}
}

func TestFetchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"truncated":`))
	}))
	defer server.Close()

	_, err := NewGatewayClient(server.URL, time.Second).Fetch(context.Background(), "/ping")
	if err == nil {
		t.Fatal("Expected error for malformed JSON")
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("Expected /ping, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	msg, err := Ping(context.Background(), NewGatewayClient(server.URL, time.Second))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if msg != "pong" {
		t.Errorf("Expected pong, got %q", msg)
	}
}
