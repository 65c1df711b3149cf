package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

const contentTypeJSON = "application/json"

// amqpPublisher is the part of rabbitmq.Client used for events
type amqpPublisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// RabbitPublisher publishes events as JSON messages to the configured exchange,
// routed by event type (job.added, job.removed, job.updated)
type RabbitPublisher struct {
	client amqpPublisher
	logger *slog.Logger
}

// NewRabbitPublisher creates a publisher on top of a rabbitmq.Client
func NewRabbitPublisher(client amqpPublisher, logger *slog.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		client: client,
		logger: logger,
	}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	if err := p.client.PublishWithRetry(ctx, string(event.Type), body, contentTypeJSON); err != nil {
		return fmt.Errorf("failed to publish job event %s: %w", event.ID, err)
	}

	p.logger.Debug("Job event published",
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.Int64("job_id", event.JobID),
	)
	return nil
}
