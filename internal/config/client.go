package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Store backends
const (
	StoreBackendBuntDB = "buntdb"
	StoreBackendBlob   = "blob"
	StoreBackendMemory = "memory"
)

// ClientConfig holds scan client configuration
type ClientConfig struct {
	// GatewayURL is the base URL of the gateway including its route prefix,
	// e.g. http://localhost:8787/proxy. Empty means demo mode unless a direct
	// upstream is configured.
	GatewayURL string `yaml:"gateway_url"`
	// Direct upstream access. Discouraged: the API key lives on the client.
	DirectBaseURL string `yaml:"direct_base_url"`
	DirectAPIKey  string `yaml:"direct_api_key"`

	RequestTimeout    int  `yaml:"request_timeout"`     // seconds
	SubqueryDelayMs   int  `yaml:"subquery_delay_ms"`   // pause before secondary domain queries
	DemoDelayMs       int  `yaml:"demo_delay_ms"`       // artificial latency in demo mode
	IncludeDNSHistory bool `yaml:"include_dns_history"` // /domain/{t}/dns/a
	IncludeWhois      bool `yaml:"include_whois"`       // /domain/{t}/whois
	ParallelDomain    bool `yaml:"parallel_domain"`

	StoreBackend string `yaml:"store_backend"`
	StorePath    string `yaml:"store_path"`
	ExportDir    string `yaml:"export_dir"`
}

// DefaultClientConfig returns the built-in client defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DirectBaseURL:     "https://api.securitytrails.com/v1",
		RequestTimeout:    15,
		SubqueryDelayMs:   1000,
		DemoDelayMs:       800,
		IncludeDNSHistory: true,
		IncludeWhois:      false,
		ParallelDomain:    false,
		StoreBackend:      StoreBackendBuntDB,
		StorePath:         "recon.db",
		ExportDir:         ".",
	}
}

// LoadClientConfig applies environment overrides to base
func LoadClientConfig(base ClientConfig) ClientConfig {
	return ClientConfig{
		GatewayURL:        strings.TrimRight(getEnv("RECON_GATEWAY_URL", base.GatewayURL), "/"),
		DirectBaseURL:     strings.TrimRight(getEnv("RECON_DIRECT_BASE_URL", base.DirectBaseURL), "/"),
		DirectAPIKey:      getEnv("RECON_DIRECT_API_KEY", base.DirectAPIKey),
		RequestTimeout:    getEnvAsInt("RECON_REQUEST_TIMEOUT", base.RequestTimeout),
		SubqueryDelayMs:   getEnvAsInt("RECON_SUBQUERY_DELAY_MS", base.SubqueryDelayMs),
		DemoDelayMs:       getEnvAsInt("RECON_DEMO_DELAY_MS", base.DemoDelayMs),
		IncludeDNSHistory: getEnvAsBool("RECON_INCLUDE_DNS_HISTORY", base.IncludeDNSHistory),
		IncludeWhois:      getEnvAsBool("RECON_INCLUDE_WHOIS", base.IncludeWhois),
		ParallelDomain:    getEnvAsBool("RECON_PARALLEL_DOMAIN", base.ParallelDomain),
		StoreBackend:      strings.ToLower(getEnv("RECON_STORE_BACKEND", base.StoreBackend)),
		StorePath:         getEnv("RECON_STORE_PATH", base.StorePath),
		ExportDir:         getEnv("RECON_EXPORT_DIR", base.ExportDir),
	}
}

// ValidateClientConfig validates scan client configuration
func (c *ClientConfig) ValidateClientConfig() error {
	validations := []struct {
		field     string
		value     int
		min, max  int
		fieldName string
		unit      string
	}{
		{"RECON_REQUEST_TIMEOUT", c.RequestTimeout, 1, 120, "Request timeout", "seconds"},
		{"RECON_SUBQUERY_DELAY_MS", c.SubqueryDelayMs, 0, 60000, "Sub-query delay", "milliseconds"},
		{"RECON_DEMO_DELAY_MS", c.DemoDelayMs, 0, 10000, "Demo delay", "milliseconds"},
	}

	for _, v := range validations {
		if err := validateRange(v.field, v.value, v.min, v.max, v.fieldName, v.unit); err != nil {
			return err
		}
	}

	if c.GatewayURL != "" {
		if err := ValidateHTTPURL("RECON_GATEWAY_URL", c.GatewayURL); err != nil {
			return err
		}
	}
	if c.DirectAPIKey != "" {
		if err := ValidateHTTPURL("RECON_DIRECT_BASE_URL", c.DirectBaseURL); err != nil {
			return err
		}
	}

	switch c.StoreBackend {
	case StoreBackendBuntDB:
		if c.StorePath == "" {
			return &ConfigError{Field: "RECON_STORE_PATH", Message: "Store path is required for the buntdb backend"}
		}
	case StoreBackendBlob, StoreBackendMemory:
	default:
		return &ConfigError{
			Field:   "RECON_STORE_BACKEND",
			Message: fmt.Sprintf("Invalid store backend '%s'. Valid backends are: buntdb, blob, memory", c.StoreBackend),
		}
	}

	return nil
}

// Timeout returns the per-call upstream timeout
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// SubqueryDelay returns the pause before secondary domain queries
func (c *ClientConfig) SubqueryDelay() time.Duration {
	return time.Duration(c.SubqueryDelayMs) * time.Millisecond
}

// DemoDelay returns the artificial latency used in demo mode
func (c *ClientConfig) DemoDelay() time.Duration {
	return time.Duration(c.DemoDelayMs) * time.Millisecond
}

// ValidateHTTPURL checks that raw is an absolute http(s) URL
func ValidateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: field, Message: fmt.Sprintf("%s must be an absolute http(s) URL", field)}
	}
	return nil
}
