package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/pkg/circuitbreaker"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type MockOutbox struct {
	mu        sync.Mutex
	events    []*domain.OutboxEvent
	processed []int64
	getErr    error
}

func (m *MockOutbox) GetUnprocessedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*domain.OutboxEvent
	for _, ev := range m.events {
		done := false
		for _, id := range m.processed {
			if id == ev.ID {
				done = true
				break
			}
		}
		if !done && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockOutbox) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed = append(m.processed, id)
	return nil
}

func (m *MockOutbox) Processed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.processed...)
}

type MockWriter struct {
	mu       sync.Mutex
	err      error
	calls    int
	messages []kafkaGo.Message
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error { return nil }

func outboxEvents(n int) []*domain.OutboxEvent {
	events := make([]*domain.OutboxEvent, 0, n)
	for i := 1; i <= n; i++ {
		events = append(events, &domain.OutboxEvent{
			ID:          int64(i),
			AggregateID: fmt.Sprintf("order-%d", i),
			EventType:   domain.EventOrderPlaced,
			Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":"order-%d"}`, i)),
			CreatedAt:   time.Now(),
		})
	}
	return events
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &MockOutbox{events: outboxEvents(2)}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil)

	poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{1, 2}, repo.Processed())
	require.Len(t, writer.messages, 2)
	assert.Equal(t, "order-1", string(writer.messages[0].Key))
	require.Len(t, writer.messages[0].Headers, 1)
	assert.Equal(t, "event_type", writer.messages[0].Headers[0].Key)
	assert.Equal(t, domain.EventOrderPlaced, string(writer.messages[0].Headers[0].Value))

	// second pass finds nothing left
	poller.processUnpublishedEvents(context.Background())
	assert.Len(t, writer.messages, 2)
}

func TestProcessUnpublishedEvents_FailedWriteStaysUnprocessed(t *testing.T) {
	repo := &MockOutbox{events: outboxEvents(1)}
	writer := &MockWriter{err: errors.New("leader not available")}
	poller := NewOutboxPoller(repo, writer, nil)

	poller.processUnpublishedEvents(context.Background())
	assert.Empty(t, repo.Processed())

	writer.err = nil
	poller.processUnpublishedEvents(context.Background())
	assert.Equal(t, []int64{1}, repo.Processed())
}

func TestProcessUnpublishedEvents_BreakerSkipsBatch(t *testing.T) {
	threshold := circuitbreaker.DefaultConfig("test").FailureThreshold
	repo := &MockOutbox{events: outboxEvents(int(threshold) + 3)}
	writer := &MockWriter{err: errors.New("broker unreachable")}
	poller := NewOutboxPoller(repo, writer, nil)

	poller.processUnpublishedEvents(context.Background())

	// the writer is not called once the breaker opens
	assert.Equal(t, int(threshold), writer.calls)
	assert.Empty(t, repo.Processed())
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockOutbox{getErr: errors.New("connection refused")}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil)

	poller.processUnpublishedEvents(context.Background())
	assert.Zero(t, writer.calls)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, Topic)
	time.Sleep(5 * time.Second)

	repo := &MockOutbox{events: []*domain.OutboxEvent{{
		ID:          7,
		AggregateID: "0b7f6d1e-1d1a-4a38-9a55-3f0c2a9d7e10",
		EventType:   domain.EventOrderPlaced,
		Payload:     json.RawMessage(`{"order_id":"0b7f6d1e-1d1a-4a38-9a55-3f0c2a9d7e10","buyer_id":42}`),
		CreatedAt:   time.Now(),
	}}}

	writer := NewWriter(brokerAddr)
	poller := NewOutboxPoller(repo, writer, nil)
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    Topic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0b7f6d1e-1d1a-4a38-9a55-3f0c2a9d7e10", string(msg.Key))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, float64(42), payload["buyer_id"])

	assert.Eventually(t, func() bool {
		return len(repo.Processed()) == 1
	}, 5*time.Second, 100*time.Millisecond)
}
