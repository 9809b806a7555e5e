// Package events publishes terminal import-run events to a durable AMQP
// queue for downstream consumers. The worker runs fine without it.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"jobfeed/src/core/importer"
)

// Topic carries every terminal run event.
const Topic = "import.events"

// AMQPPublisher implements importer.Publisher over a durable AMQP queue.
type AMQPPublisher struct {
	publisher message.Publisher
}

func NewAMQPPublisher(amqpURL string, logger watermill.LoggerAdapter) (*AMQPPublisher, error) {
	publisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(amqpURL),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AMQP publisher: %w", err)
	}

	return &AMQPPublisher{publisher: publisher}, nil
}

func (p *AMQPPublisher) PublishRunEvent(ctx context.Context, event importer.RunEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(Topic, msg); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.publisher.Close()
}
