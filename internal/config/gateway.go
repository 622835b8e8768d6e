package config

import (
	"fmt"
	"strings"
	"time"
)

const redacted = "[REDACTED]"

// GatewayConfig holds gateway configuration. It is read once at startup
// and never modified afterwards.
type GatewayConfig struct {
	ListenAddr      string
	RoutePrefix     string
	UpstreamBaseURL string
	// Credential is the upstream API key. It must never be logged or returned to clients.
	Credential      string `json:"-" yaml:"-"`
	UpstreamTimeout int    // seconds
	ShutdownTimeout int    // seconds
}

// LoadGatewayConfig loads gateway configuration from environment variables
func LoadGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ListenAddr:      getEnv("GATEWAY_LISTEN_ADDR", ":8787"),
		RoutePrefix:     strings.TrimRight(getEnv("GATEWAY_ROUTE_PREFIX", "/proxy"), "/"),
		UpstreamBaseURL: strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "https://api.securitytrails.com/v1"), "/"),
		Credential:      strings.TrimSpace(getEnv("SECURITYTRAILS_KEY", "")),
		UpstreamTimeout: getEnvAsInt("GATEWAY_UPSTREAM_TIMEOUT", 15),
		ShutdownTimeout: getEnvAsInt("GATEWAY_SHUTDOWN_TIMEOUT", 10),
	}
}

// Validate checks gateway configuration. A missing credential is not an
// error: the gateway starts and answers 503 until one is configured.
func (c *GatewayConfig) Validate() error {
	if c.ListenAddr == "" {
		return &ConfigError{Field: "GATEWAY_LISTEN_ADDR", Message: "Listen address is required"}
	}
	if c.RoutePrefix != "" && !strings.HasPrefix(c.RoutePrefix, "/") {
		return &ConfigError{Field: "GATEWAY_ROUTE_PREFIX", Message: "Route prefix must start with '/'"}
	}
	if err := ValidateHTTPURL("UPSTREAM_BASE_URL", c.UpstreamBaseURL); err != nil {
		return err
	}
	if err := validateRange("GATEWAY_UPSTREAM_TIMEOUT", c.UpstreamTimeout, 1, 120, "Upstream timeout", "seconds"); err != nil {
		return err
	}
	if err := validateRange("GATEWAY_SHUTDOWN_TIMEOUT", c.ShutdownTimeout, 1, 120, "Shutdown timeout", "seconds"); err != nil {
		return err
	}
	return nil
}

// HasCredential reports whether an upstream key is configured
func (c GatewayConfig) HasCredential() bool {
	return c.Credential != ""
}

// Timeout returns the upstream request timeout
func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.UpstreamTimeout) * time.Second
}

// String renders the configuration with the credential redacted
func (c GatewayConfig) String() string {
	cred := "<unset>"
	if c.HasCredential() {
		cred = redacted
	}
	return fmt.Sprintf("listen=%s prefix=%s upstream=%s credential=%s timeout=%ds",
		c.ListenAddr, c.RoutePrefix, c.UpstreamBaseURL, cred, c.UpstreamTimeout)
}
