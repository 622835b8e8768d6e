package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/allsafeASM/intel/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/projectdiscovery/gologger"
)

// NewRouter builds the gateway HTTP surface. Every path except the health
// route is handled by the proxy handler, which applies its own method and
// allow-list rules.
func NewRouter(cfg config.GatewayConfig, allowList *AllowList) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false

	router.Use(CORS(), RequestContext(), Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{
			"status":                "ok",
			"credential_configured": cfg.HasCredential(),
		})
	})

	proxy := NewProxyHandler(cfg, allowList)
	router.NoRoute(proxy.Handle)

	return router
}

// Server wraps the HTTP server running the gateway router
type Server struct {
	cfg        config.GatewayConfig
	httpServer *http.Server
}

// NewServer creates a new gateway server
func NewServer(cfg config.GatewayConfig) *Server {
	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           NewRouter(cfg, DefaultAllowList()),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Timeout() + 5*time.Second,
		},
	}
}

// Start listens until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	gologger.Info().Msgf("Gateway listening on %s (%s)", s.cfg.ListenAddr, s.cfg.String())
	if !s.cfg.HasCredential() {
		gologger.Warning().Msg("SECURITYTRAILS_KEY is not set; forwardable requests will receive 503")
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
