package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allsafeASM/intel/internal/config"
	"github.com/allsafeASM/intel/internal/gateway"
	"github.com/allsafeASM/intel/internal/logging"
	"github.com/projectdiscovery/gologger"
)

// GatewayApplication runs the credential-holding gateway until a signal arrives
type GatewayApplication struct {
	config config.GatewayConfig
	server *gateway.Server
}

// NewGatewayApplication loads gateway configuration from the environment
func NewGatewayApplication() (*GatewayApplication, error) {
	cfg := config.LoadGatewayConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appCfg := config.LoadAppConfig(config.DefaultAppConfig())
	logging.Setup(appCfg.LogLevel)

	return &GatewayApplication{
		config: cfg,
		server: gateway.NewServer(cfg),
	}, nil
}

// Start serves requests and blocks until SIGINT/SIGTERM or a server error
func (a *GatewayApplication) Start() error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start()
	}()

	return a.waitForShutdown(serveErr)
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func (a *GatewayApplication) waitForShutdown(serveErr <-chan error) error {
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalChannel)

	select {
	case <-signalChannel:
		return a.handleGracefulShutdown()
	case err := <-serveErr:
		return err
	}
}

// handleGracefulShutdown lets in-flight requests finish within the shutdown timeout
func (a *GatewayApplication) handleGracefulShutdown() error {
	gologger.Info().Msg("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(a.config.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return err
	}

	gologger.Info().Msg("Shutdown complete")
	return nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signalChannel)
		select {
		case <-signalChannel:
			gologger.Info().Msg("Interrupted, cancelling scan...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
