package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"example.com/fossiltrack/config"
)

// Alert kinds published to the operations queue
const (
	AlertIntegrityFailure = "integrity_failure"
	AlertSanityFailure    = "sanity_failure"
	AlertCounterPublished = "counter_published"
	AlertStageExhausted   = "stage_exhausted"
)

// Alert is the message body for operational notifications
type Alert struct {
	Kind    string            `json:"kind"`
	Subject string            `json:"subject"`
	Detail  string            `json:"detail"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier is an interface for operational alerting
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
	Close() error
}

// serviceBusNotifier implements Notifier on Azure Service Bus
type serviceBusNotifier struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
	source    string
}

// NewNotifier creates a new Azure Service Bus notifier
func NewNotifier(cfg config.AzureConfig, source string) (Notifier, error) {
	if cfg.QueueConnStr == "" {
		return nil, fmt.Errorf("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &serviceBusNotifier{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
		source:    source,
	}, nil
}

// Notify sends an alert to the operations queue
func (s *serviceBusNotifier) Notify(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert body: %w", err)
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": s.source,
			"kind":   alert.Kind,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return s.sender.SendMessage(ctx, msg, nil)
}

// NewNopNotifier returns a Notifier that discards alerts. Used when no
// Service Bus connection string is configured.
func NewNopNotifier() Notifier {
	return nopNotifier{}
}

type nopNotifier struct{}

func (nopNotifier) Notify(_ context.Context, _ Alert) error { return nil }
func (nopNotifier) Close() error                            { return nil }

// Close closes the Service Bus client
func (s *serviceBusNotifier) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if s.client != nil {
		return s.client.Close(context.Background())
	}

	return nil
}
