package gateway

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/allsafeASM/intel/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/projectdiscovery/gologger"
)

const (
	defaultPath     = "/ping"
	credentialHint  = "Set the SECURITYTRAILS_KEY environment variable on the gateway and restart it."
	redactedMessage = "[REDACTED]"
	maxBodyBytes    = 16 << 20
)

// ProxyHandler forwards allow-listed GET requests to the upstream API,
// injecting the credential. It keeps no per-request state.
type ProxyHandler struct {
	cfg        config.GatewayConfig
	allowList  *AllowList
	httpClient *http.Client
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(cfg config.GatewayConfig, allowList *AllowList) *ProxyHandler {
	if allowList == nil {
		allowList = DefaultAllowList()
	}

	return &ProxyHandler{
		cfg:       cfg,
		allowList: allowList,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
			// Redirects are relayed to the caller so the credential is never
			// replayed to another host.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Handle is the single entry point for every request outside the health route
func (h *ProxyHandler) Handle(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodOptions:
		c.AbortWithStatus(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		return
	}

	upstreamPath, ok := h.stripPrefix(c.Request.URL.Path)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "endpoint not permitted", "path": c.Request.URL.Path})
		return
	}

	rule, ok := h.allowList.Match(upstreamPath)
	if !ok {
		gologger.Debug().Msgf("Rejected path outside allow-list: %s", upstreamPath)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "endpoint not permitted", "path": upstreamPath})
		return
	}

	if !h.cfg.HasCredential() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "upstream API key not configured on this gateway",
			"hint":  credentialHint,
		})
		return
	}

	h.forward(c, rule, upstreamPath)
}

// stripPrefix removes the route prefix. An empty remainder becomes /ping.
// Paths outside the prefix are reported as not forwardable.
func (h *ProxyHandler) stripPrefix(p string) (string, bool) {
	prefix := h.cfg.RoutePrefix
	rest := p

	if prefix != "" {
		switch {
		case p == prefix:
			rest = ""
		case strings.HasPrefix(p, prefix+"/"):
			rest = p[len(prefix):]
		default:
			return "", false
		}
	}

	if rest == "" {
		rest = defaultPath
	}
	return rest, true
}

// forward performs exactly one upstream request and relays status and body verbatim
func (h *ProxyHandler) forward(c *gin.Context, rule Rule, upstreamPath string) {
	target := h.cfg.UpstreamBaseURL + upstreamPath
	if rawQuery := c.Request.URL.RawQuery; rawQuery != "" {
		target += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream fetch failed", "detail": h.sanitize(err)})
		return
	}
	req.Header.Set("APIKEY", h.cfg.Credential)
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		detail := h.sanitize(err)
		gologger.Warning().Msgf("Upstream fetch failed for %s (%s): %s", upstreamPath, rule.Name, detail)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream fetch failed", "detail": detail})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		detail := h.sanitize(err)
		gologger.Warning().Msgf("Reading upstream body failed for %s (%s): %s", upstreamPath, rule.Name, detail)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream fetch failed", "detail": detail})
		return
	}

	gologger.Debug().Msgf("Upstream %s (%s) answered %d with %d bytes", upstreamPath, rule.Name, resp.StatusCode, len(body))

	c.Header("Cache-Control", "no-store")
	c.Data(resp.StatusCode, "application/json", body)
	c.Writer.WriteHeaderNow()
}

// sanitize renders a transport error for the client with the credential removed
func (h *ProxyHandler) sanitize(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		msg = "upstream request timed out"
	}

	if h.cfg.Credential != "" {
		msg = strings.ReplaceAll(msg, h.cfg.Credential, redactedMessage)
	}
	return msg
}
