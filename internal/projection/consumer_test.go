package projection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/publisher"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

type MockApplier struct {
	applied []domain.OrderEvent
	err     error
}

func (m *MockApplier) Apply(_ context.Context, ev domain.OrderEvent) error {
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, ev)
	return nil
}

func placedEvent(t *testing.T) []byte {
	t.Helper()
	order := &domain.Order{
		ID:             uuid.New(),
		BuyerID:        42,
		Total:          decimal.RequireFromString("40.00"),
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		ShippingStatus: domain.ShippingStatusNotShipped,
		Items: []domain.OrderItem{{
			ItemName: "Shirt", OptionLabel: "M", SellerID: 500,
			UnitPrice: decimal.RequireFromString("20.00"), Quantity: 2,
		}},
		CreatedAt: time.Now().UTC(),
	}
	ev, err := domain.NewOrderEvent(domain.EventOrderPlaced, order)
	require.NoError(t, err)
	return ev.Payload
}

func TestHandle_AppliesEvent(t *testing.T) {
	store := &MockApplier{}
	c := &Consumer{store: store}

	c.handle(context.Background(), kafka.Message{Value: placedEvent(t)})

	require.Len(t, store.applied, 1)
	ev := store.applied[0]
	assert.Equal(t, domain.EventOrderPlaced, ev.Type)
	assert.Equal(t, int64(42), ev.BuyerID)
	assert.Equal(t, "40", ev.Total.String())
	require.Len(t, ev.Items, 1)
	assert.Equal(t, 2, ev.Items[0].Quantity)
}

func TestHandle_SkipsMalformed(t *testing.T) {
	store := &MockApplier{}
	c := &Consumer{store: store}

	c.handle(context.Background(), kafka.Message{Value: []byte(`{not json`)})
	c.handle(context.Background(), kafka.Message{Value: []byte(`{"type":"order.placed"}`)})

	assert.Empty(t, store.applied)
}

func TestHandle_StoreErrorDoesNotPanic(t *testing.T) {
	store := &MockApplier{err: errors.New("mongo down")}
	c := &Consumer{store: store}

	assert.NotPanics(t, func() {
		c.handle(context.Background(), kafka.Message{Value: placedEvent(t)})
	})
}

func TestOrderEvent_StatusesRoundTrip(t *testing.T) {
	var ev domain.OrderEvent
	require.NoError(t, json.Unmarshal(placedEvent(t), &ev))
	assert.Equal(t, domain.OrderStatusPending, ev.Status)
	assert.Equal(t, domain.ShippingStatusNotShipped, ev.ShippingStatus)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func TestConsumer_ProjectsPublishedEvents(t *testing.T) {
	store, cleanupMongo := setupTestDB(t)
	defer cleanupMongo()
	brokerAddr, cleanupKafka := setupKafka(t)
	defer cleanupKafka()

	payload := placedEvent(t)
	var ev domain.OrderEvent
	require.NoError(t, json.Unmarshal(payload, &ev))

	writer := publisher.NewWriter(brokerAddr)
	defer writer.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.Eventually(t, func() bool {
		return writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.OrderID), Value: payload}) == nil
	}, 15*time.Second, 500*time.Millisecond)

	consumer := NewConsumer(store, brokerAddr)
	defer consumer.Close()
	go consumer.Run(ctx)

	require.Eventually(t, func() bool {
		history, err := store.History(ctx, 42)
		return err == nil && len(history) == 1
	}, 20*time.Second, 200*time.Millisecond)

	doc, err := store.Get(ctx, ev.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", doc.Total)
}
