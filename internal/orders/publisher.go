package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/slime-shop/internal/domain"
	"github.com/segmentio/kafka-go"
)

// EventOrderPlaced is sent in the event_type header of every published order.
const EventOrderPlaced = "OrderPlaced"

// Publisher is a Sink that hands orders to Kafka; Consumer stores them.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(topic string, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w}
}

func (p *Publisher) SaveOrder(ctx context.Context, order domain.OrderRecord) error {
	if order.OrderID == "" {
		return fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish order: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
