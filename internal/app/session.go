package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/allsafeASM/intel/internal/azure"
	"github.com/allsafeASM/intel/internal/common"
	"github.com/allsafeASM/intel/internal/config"
	"github.com/allsafeASM/intel/internal/export"
	"github.com/allsafeASM/intel/internal/logging"
	"github.com/allsafeASM/intel/internal/models"
	"github.com/allsafeASM/intel/internal/notification"
	"github.com/allsafeASM/intel/internal/scan"
	"github.com/allsafeASM/intel/internal/store"
	"github.com/allsafeASM/intel/internal/upstream"
	"github.com/projectdiscovery/gologger"
)

const (
	// ModeDemo is reported when scans are served from the canned dataset
	ModeDemo = "demo"

	blobStatePrefix = "state"
	eventTimeout    = 10 * time.Second
)

// Options override configuration for one invocation
type Options struct {
	// GatewayURL takes precedence over the configured and saved gateway URLs
	GatewayURL string
	// Timeout overrides the per-call upstream timeout when positive
	Timeout time.Duration
}

// ScanFailure is returned by RunScan when a scan fails. Message is safe to show the user.
type ScanFailure struct {
	Report  *scan.Report
	Message string
	Err     error
}

func (e *ScanFailure) Error() string {
	return e.Message
}

func (e *ScanFailure) Unwrap() error {
	return e.Err
}

// Session wires the scan client together: store, upstream access,
// orchestrator and the optional notification sinks.
type Session struct {
	config           *config.Config
	opts             Options
	store            *store.Store
	blobClient       *azure.BlobStorageClient
	serviceBusClient *azure.ServiceBusClient
	discordNotifier  *notification.DiscordNotifier
	fetcher          upstream.Fetcher
	orchestrator     *scan.Orchestrator
}

// NewSession validates cfg and initializes every component
func NewSession(ctx context.Context, cfg *config.Config, opts Options) (*Session, error) {
	s := &Session{config: cfg, opts: opts}

	if err := s.initialize(ctx); err != nil {
		s.Close(ctx)
		return nil, err
	}

	return s, nil
}

// initialize sets up all session components
func (s *Session) initialize(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	logging.Setup(s.config.App.LogLevel)

	if err := s.initializeAzureClients(); err != nil {
		return err
	}

	if err := s.initializeStore(ctx); err != nil {
		return err
	}

	if err := s.initializeFetcher(ctx); err != nil {
		return err
	}

	s.initializeNotifier()

	s.orchestrator = scan.NewOrchestrator(s.fetcher, scan.Options{
		SubqueryDelay:     s.config.Client.SubqueryDelay(),
		DemoDelay:         s.config.Client.DemoDelay(),
		IncludeDNSHistory: s.config.Client.IncludeDNSHistory,
		IncludeWhois:      s.config.Client.IncludeWhois,
		ParallelDomain:    s.config.Client.ParallelDomain,
	})

	return nil
}

// initializeAzureClients creates the Blob Storage and Service Bus clients that are configured
func (s *Session) initializeAzureClients() error {
	var err error

	if s.config.Azure.BlobConfigured() {
		s.blobClient, err = azure.NewBlobStorageClient(
			s.config.Azure.BlobStorageConnectionString,
			s.config.Azure.BlobContainerName,
		)
		if err != nil {
			return fmt.Errorf("failed to initialize Blob Storage client: %w", err)
		}
	}

	s.serviceBusClient, err = azure.NewConfiguredServiceBusClient(
		s.config.App.EnableScanEvents,
		s.config.Azure.ServiceBusConnectionString,
		s.config.Azure.QueueName,
	)
	if err != nil {
		gologger.Warning().Msgf("Failed to initialize Service Bus client: %v. Scan events will be disabled.", err)
	}

	return nil
}

func (s *Session) initializeStore(ctx context.Context) error {
	var (
		kv  store.KV
		err error
	)

	switch s.config.Client.StoreBackend {
	case config.StoreBackendBlob:
		kv = store.NewBlobKV(s.blobClient, blobStatePrefix)
	case config.StoreBackendMemory:
		kv = store.NewMemoryKV()
	default:
		kv, err = store.NewBuntKV(s.config.Client.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open store %s: %w", s.config.Client.StorePath, err)
		}
	}

	s.store, err = store.New(ctx, kv)
	if err != nil {
		kv.Close()
		return fmt.Errorf("failed to load store: %w", err)
	}

	return nil
}

// initializeFetcher picks how scans reach the API: a gateway (flag, config,
// then saved URL), else direct access with a local key, else demo mode.
func (s *Session) initializeFetcher(ctx context.Context) error {
	timeout := s.config.Client.Timeout()
	if s.opts.Timeout > 0 {
		timeout = s.opts.Timeout
	}

	gatewayURL := s.opts.GatewayURL
	if gatewayURL == "" {
		gatewayURL = s.config.Client.GatewayURL
	}
	if gatewayURL == "" {
		saved, err := s.store.GatewayURL(ctx)
		if err != nil {
			return fmt.Errorf("failed to read saved gateway URL: %w", err)
		}
		gatewayURL = saved
	}
	if gatewayURL != "" {
		if err := config.ValidateHTTPURL("gateway", gatewayURL); err != nil {
			return err
		}
		s.fetcher = upstream.NewGatewayClient(gatewayURL, timeout)
		gologger.Debug().Msgf("Using gateway %s", gatewayURL)
		return nil
	}

	apiKey := s.config.Client.DirectAPIKey
	if apiKey == "" {
		saved, err := s.store.APIKey(ctx)
		if err != nil {
			return fmt.Errorf("failed to read saved API key: %w", err)
		}
		apiKey = saved
	}
	if apiKey != "" {
		gologger.Warning().Msgf("Calling %s directly with a local API key %s", s.config.Client.DirectBaseURL, logging.Redact(apiKey))
		s.fetcher = upstream.NewDirectClient(s.config.Client.DirectBaseURL, apiKey, timeout)
		return nil
	}

	gologger.Info().Msg("No gateway configured, scans will return demo data")
	return nil
}

func (s *Session) initializeNotifier() {
	notifier, err := notification.NewConfiguredDiscordNotifier(
		s.config.App.EnableDiscordNotifications,
		s.config.App.DiscordWebhookURL,
		time.Duration(s.config.App.DiscordWebhookTimeout)*time.Second,
	)
	if err != nil {
		gologger.Warning().Msgf("Failed to initialize Discord notification service: %v. Discord notifications will be disabled.", err)
		return
	}
	s.discordNotifier = notifier
}

// Mode returns gateway, direct or demo
func (s *Session) Mode() string {
	if s.fetcher == nil {
		return ModeDemo
	}
	return string(s.fetcher.Mode())
}

// RunScan scans one target and records the outcome. Successful scans update
// history and the success counters. Every other attempt counts once as
// failed and comes back as a *ScanFailure, except a rejection because
// another scan is running, which returns scan.ErrScanInProgress and is not
// counted.
func (s *Session) RunScan(ctx context.Context, raw string, kind models.Kind) (*scan.Report, error) {
	report, err := s.orchestrator.Scan(ctx, models.ScanRequest{Input: raw, Kind: kind})
	if errors.Is(err, scan.ErrScanInProgress) {
		return nil, err
	}

	if err != nil {
		message := common.UserMessage(err)
		if recErr := s.store.RecordOutcome(ctx, kind, models.OutcomeFailed); recErr != nil {
			gologger.Error().Msgf("Failed to record scan outcome: %v", recErr)
		}
		gologger.Error().Msgf("[%s] scan of %q failed: %v", report.ScanID, raw, err)
		s.publish(ctx, s.newEvent(report, raw, kind, models.OutcomeFailed, message))
		return report, &ScanFailure{Report: report, Message: message, Err: err}
	}

	if recErr := s.store.RecordOutcome(ctx, report.Target.Kind, models.OutcomeSuccess); recErr != nil {
		gologger.Error().Msgf("Failed to record scan outcome: %v", recErr)
	}
	if histErr := s.store.AppendHistory(ctx, report.Target); histErr != nil {
		gologger.Error().Msgf("Failed to update history: %v", histErr)
	}
	gologger.Info().Msgf("[%s] scan of %s completed in %v", report.ScanID, report.Target, report.Duration.Round(time.Millisecond))

	s.publish(ctx, s.newEvent(report, report.Target.Value, report.Target.Kind, models.OutcomeSuccess, ""))
	return report, nil
}

func (s *Session) newEvent(report *scan.Report, target string, kind models.Kind, status models.Outcome, message string) models.ScanEvent {
	event := models.ScanEvent{
		ScanID:    report.ScanID,
		Target:    target,
		Kind:      kind,
		Status:    status,
		Demo:      s.orchestrator.DemoMode(),
		Error:     message,
		Timestamp: report.StartedAt.Add(report.Duration).UTC(),
	}
	if report.Result != nil {
		event.Warnings = len(report.Result.Warnings)
	}
	return event
}

// publish sends the event to the optional sinks. Failures are logged only.
func (s *Session) publish(ctx context.Context, event models.ScanEvent) {
	if s.discordNotifier == nil && s.serviceBusClient == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()

	if err := s.discordNotifier.NotifyScan(ctx, event); err != nil {
		gologger.Warning().Msgf("Failed to send Discord notification: %v", err)
	}
	if s.serviceBusClient != nil {
		if err := s.serviceBusClient.PublishScanEvent(ctx, event); err != nil {
			gologger.Warning().Msgf("Failed to publish scan event: %v", err)
		}
	}
}

// Ping checks connectivity and returns the upstream message
func (s *Session) Ping(ctx context.Context) (string, error) {
	if s.fetcher == nil {
		return "", common.NewConfigurationError("gateway", "No gateway configured", "Save one with -save-gateway or set RECON_GATEWAY_URL")
	}
	return upstream.Ping(ctx, s.fetcher)
}

// History returns the scan history, newest first
func (s *Session) History() []models.HistoryEntry {
	return s.store.History()
}

// ClearHistory removes all history entries
func (s *Session) ClearHistory(ctx context.Context) error {
	return s.store.ClearHistory(ctx)
}

// Stats returns the scan counters
func (s *Session) Stats() models.Stats {
	return s.store.Stats()
}

// SaveGatewayURL stores the gateway used by later invocations. An empty URL clears it.
func (s *Session) SaveGatewayURL(ctx context.Context, gatewayURL string) error {
	if gatewayURL != "" {
		if err := config.ValidateHTTPURL("gateway", gatewayURL); err != nil {
			return err
		}
	}
	return s.store.SetGatewayURL(ctx, gatewayURL)
}

// SaveAPIKey stores a key for direct upstream access. An empty key clears it.
func (s *Session) SaveAPIKey(ctx context.Context, apiKey string) error {
	return s.store.SetAPIKey(ctx, apiKey)
}

// ExportFile writes the report into dir, or the configured export directory
func (s *Session) ExportFile(report *scan.Report, dir string) (string, error) {
	doc, err := export.NewDocument(report)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = s.config.Client.ExportDir
	}
	return export.WriteFile(dir, doc)
}

// ExportTo writes the report as JSON to w
func (s *Session) ExportTo(w io.Writer, report *scan.Report) error {
	doc, err := export.NewDocument(report)
	if err != nil {
		return err
	}
	return export.Write(w, doc)
}

// ExportBlob uploads the report to Blob Storage
func (s *Session) ExportBlob(ctx context.Context, report *scan.Report) (string, error) {
	if s.blobClient == nil {
		return "", common.NewConfigurationError("BLOB_STORAGE_CONNECTION_STRING", "Blob Storage is not configured", "Set BLOB_STORAGE_CONNECTION_STRING and BLOB_CONTAINER_NAME")
	}
	doc, err := export.NewDocument(report)
	if err != nil {
		return "", err
	}
	blobName, err := export.Upload(ctx, s.blobClient, doc)
	if err != nil {
		return "", err
	}
	return s.blobClient.ContainerName() + "/" + blobName, nil
}

// ListExports returns the names of uploaded exports
func (s *Session) ListExports(ctx context.Context) ([]string, error) {
	if s.blobClient == nil {
		return nil, common.NewConfigurationError("BLOB_STORAGE_CONNECTION_STRING", "Blob Storage is not configured", "Set BLOB_STORAGE_CONNECTION_STRING and BLOB_CONTAINER_NAME")
	}
	return s.blobClient.List(ctx, export.BlobPrefix+"/")
}

// Close releases the store and Azure clients
func (s *Session) Close(ctx context.Context) {
	if s.serviceBusClient != nil {
		if err := s.serviceBusClient.Close(ctx); err != nil {
			gologger.Debug().Msgf("Failed to close Service Bus client: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			gologger.Warning().Msgf("Failed to close store: %v", err)
		}
	}
}
