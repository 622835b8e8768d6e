package azure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/allsafeASM/intel/internal/models"
	"github.com/projectdiscovery/gologger"
)

const contentTypeJSON = "application/json"

// ServiceBusClient publishes scan events to an Azure Service Bus queue
type ServiceBusClient struct {
	client    *azservicebus.Client
	queueName string
}

// NewServiceBusClient creates a new Service Bus client
func NewServiceBusClient(connectionString, queueName string) (*ServiceBusClient, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}

	return &ServiceBusClient{
		client:    client,
		queueName: queueName,
	}, nil
}

// NewConfiguredServiceBusClient returns nil when scan events are disabled
func NewConfiguredServiceBusClient(enabled bool, connectionString, queueName string) (*ServiceBusClient, error) {
	if !enabled {
		return nil, nil
	}
	return NewServiceBusClient(connectionString, queueName)
}

// QueueName returns the destination queue
func (s *ServiceBusClient) QueueName() string {
	return s.queueName
}

// Close closes the Service Bus client
func (s *ServiceBusClient) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// SendMessage sends a prepared message to the queue
func (s *ServiceBusClient) SendMessage(ctx context.Context, message *azservicebus.Message) error {
	sender, err := s.client.NewSender(s.queueName, nil)
	if err != nil {
		return fmt.Errorf("failed to create sender: %w", err)
	}
	defer sender.Close(ctx)

	return sender.SendMessage(ctx, message, nil)
}

// PublishScanEvent sends one scan outcome
func (s *ServiceBusClient) PublishScanEvent(ctx context.Context, event models.ScanEvent) error {
	msg, err := newScanEventMessage(event)
	if err != nil {
		return err
	}

	if err := s.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish scan event: %w", err)
	}

	gologger.Debug().Msgf("Published scan event %s (%s) to %s", event.ScanID, event.Status, s.queueName)
	return nil
}

// newScanEventMessage uses the scan id as message id so queue duplicate
// detection can drop repeats.
func newScanEventMessage(event models.ScanEvent) (*azservicebus.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan event: %w", err)
	}

	contentType := contentTypeJSON
	messageID := event.ScanID
	subject := string(event.Status)
	return &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		MessageID:   &messageID,
		Subject:     &subject,
		ApplicationProperties: map[string]interface{}{
			"target": event.Target,
			"type":   string(event.Kind),
			"demo":   event.Demo,
		},
	}, nil
}
