package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/allsafeASM/intel/internal/common"
	"github.com/projectdiscovery/gologger"
	"github.com/tidwall/gjson"
)

const maxResponseBytes = 16 << 20

// Mode describes how a client reaches the intelligence API
type Mode string

const (
	ModeGateway Mode = "gateway"
	ModeDirect  Mode = "direct"
)

// Fetcher issues one GET against the intelligence API and returns the JSON body
type Fetcher interface {
	Fetch(ctx context.Context, path string) (json.RawMessage, error)
	Mode() Mode
}

// Client is a single-attempt HTTP client for the gateway or the upstream API
type Client struct {
	baseURL    string
	apiKey     string
	mode       Mode
	timeout    time.Duration
	httpClient *http.Client
}

// NewGatewayClient creates a client that talks to the gateway. The gateway
// holds the credential, so no key is sent.
func NewGatewayClient(gatewayURL string, timeout time.Duration) *Client {
	return newClient(gatewayURL, "", ModeGateway, timeout)
}

// NewDirectClient creates a client that calls the upstream API with the key
// stored on this machine.
func NewDirectClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return newClient(baseURL, apiKey, ModeDirect, timeout)
}

func newClient(baseURL, apiKey string, mode Mode, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		mode:    mode,
		timeout: timeout,
		// Per-call deadlines come from the context
		httpClient: &http.Client{},
	}
}

// Mode returns how the client reaches the API
func (c *Client) Mode() Mode {
	return c.mode
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch performs exactly one GET for path (which may carry a query string).
// Non-2xx answers become upstream errors carrying the status; transport
// failures become timeout or network errors.
func (c *Client) Fetch(ctx context.Context, path string) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, common.NewInternalError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("APIKEY", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	gologger.Debug().Msgf("GET %s (%s) -> %d in %v", path, c.mode, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.NewUpstreamError(resp.StatusCode, errorMessage(resp.StatusCode, body))
	}

	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil, common.NewUpstreamError(resp.StatusCode, "malformed response body")
	}

	return json.RawMessage(body), nil
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return common.NewTimeoutError("request timed out", err)
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return common.NewTimeoutError("request timed out", err)
	}

	return common.NewNetworkError("network request failed", err)
}

// errorMessage extracts the API's own message from an error body
func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, key := range []string{"message", "error"} {
			if msg := gjson.GetBytes(body, key).String(); msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

// Ping checks that the API (through the gateway when configured) is reachable
// and the key is accepted.
func Ping(ctx context.Context, f Fetcher) (string, error) {
	body, err := f.Fetch(ctx, "/ping")
	if err != nil {
		return "", err
	}

	if msg := gjson.GetBytes(body, "message").String(); msg != "" {
		return msg, nil
	}
	if gjson.GetBytes(body, "success").Bool() {
		return "pong", nil
	}
	return "API reachable", nil
}
