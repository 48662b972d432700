package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/slime-shop/internal/domain"
	"github.com/segmentio/kafka-go"
)

const ConsumerGroup = "slime-shop-orders"

// Consumer stores published orders. Redelivered orders are skipped.
type Consumer struct {
	sink   Sink
	reader *kafka.Reader
	log    *slog.Logger
}

func NewConsumer(sink Sink, log *slog.Logger, topic string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  ConsumerGroup,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{sink: sink, reader: reader, log: log}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("error reading message", "error", err)
		return
	}

	if err := c.handle(ctx, m); err != nil {
		c.log.Error("failed to store order", "key", string(m.Key), "offset", m.Offset, "error", err)
	}
}

// handle decodes one message and saves it. Duplicates and foreign events are not errors.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	if t := eventType(m); t != "" && t != EventOrderPlaced {
		c.log.Debug("skipping event", "event_type", t)
		return nil
	}

	var order domain.OrderRecord
	if err := json.Unmarshal(m.Value, &order); err != nil {
		return fmt.Errorf("error parsing message: %w", err)
	}
	if order.OrderID == "" {
		return fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}

	if err := c.sink.SaveOrder(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicateOrder) {
			c.log.Info("order already exists, skipping", "order_id", order.OrderID)
			return nil
		}
		return err
	}

	c.log.Info("order stored", "order_id", order.OrderID, "total", order.Total)
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
