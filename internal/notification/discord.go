package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/allsafeASM/intel/internal/models"
	"github.com/projectdiscovery/gologger"
)

// DiscordNotifier posts scan outcomes to a Discord webhook
type DiscordNotifier struct {
	webhookURL string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// DiscordEmbed represents a Discord embed object
type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
}

// DiscordEmbedField represents a field in a Discord embed
type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordEmbedFooter represents the footer of a Discord embed
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// DiscordWebhookPayload represents the payload sent to Discord webhook
type DiscordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds,omitempty"`
}

// NotificationStep represents the scan stages that produce a notification
type NotificationStep string

const (
	StepScanCompleted NotificationStep = "scan_completed"
	StepScanFailed    NotificationStep = "scan_failed"
)

// Color constants for Discord embeds
const (
	ColorInfo    = 0x3498db // Blue
	ColorSuccess = 0x2ecc71 // Green
	ColorWarning = 0xf39c12 // Orange
	ColorError   = 0xe74c3c // Red
)

// NewDiscordNotifier creates a new Discord notification service
func NewDiscordNotifier(webhookURL string, timeout time.Duration) (*DiscordNotifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("DISCORD_WEBHOOK_URL is required for Discord notifications")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &DiscordNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
		baseDelay:  1 * time.Second,
	}, nil
}

// NewConfiguredDiscordNotifier returns nil when Discord notifications are disabled
func NewConfiguredDiscordNotifier(enabled bool, webhookURL string, timeout time.Duration) (*DiscordNotifier, error) {
	if !enabled {
		return nil, nil
	}
	return NewDiscordNotifier(webhookURL, timeout)
}

// NotifyScan sends the notification matching the event status. A nil
// notifier does nothing.
func (d *DiscordNotifier) NotifyScan(ctx context.Context, event models.ScanEvent) error {
	if d == nil {
		return nil
	}

	step := StepScanCompleted
	if event.Status == models.OutcomeFailed {
		step = StepScanFailed
	}

	return d.SendWebhookWithRetry(ctx, d.createPayload(step, event))
}

// createPayload builds the embed for a step. Events carry no result
// payloads and no credentials, so neither can reach the webhook.
func (d *DiscordNotifier) createPayload(step NotificationStep, event models.ScanEvent) DiscordWebhookPayload {
	embed := DiscordEmbed{
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Fields: []DiscordEmbedField{
			{Name: "Target", Value: event.Target, Inline: true},
			{Name: "Type", Value: string(event.Kind), Inline: true},
			{Name: "Scan ID", Value: event.ScanID, Inline: true},
		},
	}

	switch step {
	case StepScanCompleted:
		embed.Title = "✅ Scan Completed"
		embed.Description = "Reconnaissance scan completed"
		embed.Color = ColorSuccess
		if event.Warnings > 0 {
			embed.Color = ColorWarning
			embed.Fields = append(embed.Fields, DiscordEmbedField{
				Name: "Partial Data", Value: fmt.Sprintf("%d sub-queries returned no data", event.Warnings), Inline: false,
			})
		}

	case StepScanFailed:
		embed.Title = "❌ Scan Failed"
		embed.Description = "Reconnaissance scan failed"
		embed.Color = ColorError
		if event.Error != "" {
			embed.Fields = append(embed.Fields, DiscordEmbedField{
				Name: "Error", Value: event.Error, Inline: false,
			})
		}
	}

	if event.Demo {
		embed.Description += " (demo data)"
		embed.Color = ColorInfo
	}

	embed.Footer = &DiscordEmbedFooter{
		Text: "Recon Intel",
	}

	return DiscordWebhookPayload{
		Username: "Recon Intel Bot",
		Embeds:   []DiscordEmbed{embed},
	}
}

// sendWebhook sends the webhook payload to Discord
func (d *DiscordNotifier) sendWebhook(ctx context.Context, payload DiscordWebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Discord webhook failed with status %d", resp.StatusCode)
	}

	gologger.Debug().Msgf("Discord webhook sent successfully. Status: %d", resp.StatusCode)
	return nil
}

// SendWebhookWithRetry sends a webhook with exponential backoff
func (d *DiscordNotifier) SendWebhookWithRetry(ctx context.Context, payload DiscordWebhookPayload) error {
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := d.sendWebhook(ctx, payload)
		if err == nil {
			return nil
		}

		if attempt == d.maxRetries {
			return fmt.Errorf("failed to send Discord webhook after %d attempts: %w", d.maxRetries+1, err)
		}

		delay := d.baseDelay * time.Duration(1<<attempt)
		gologger.Warning().Msgf("Discord webhook failed (attempt %d/%d), retrying in %v: %v", attempt+1, d.maxRetries+1, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max retries exceeded for Discord webhook")
}
