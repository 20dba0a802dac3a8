package projection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/publisher"
	"github.com/segmentio/kafka-go"
)

const GroupID = "order-history"

type Applier interface {
	Apply(ctx context.Context, ev domain.OrderEvent) error
}

type Consumer struct {
	store  Applier
	reader *kafka.Reader
}

func NewConsumer(store Applier, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{store: store, reader: reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			slog.ErrorContext(ctx, "error reading order event", "error", err)
			continue
		}
		c.handle(ctx, m)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		slog.Error("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var ev domain.OrderEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		slog.ErrorContext(ctx, "error parsing order event", "offset", m.Offset, "error", err)
		return
	}
	if ev.OrderID == "" {
		slog.WarnContext(ctx, "order event without order id, skipping", "offset", m.Offset)
		return
	}

	if err := c.store.Apply(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "failed to project order event", "order_id", ev.OrderID, "type", ev.Type, "error", err)
		return
	}
	slog.DebugContext(ctx, "order event projected", "order_id", ev.OrderID, "type", ev.Type)
}
