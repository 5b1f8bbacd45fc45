package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository/mocks"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type mockBroker struct{ mock.Mock }

func (m *mockBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(channel, message).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	args := m.Called(channel)
	ch, _ := args.Get(0).(<-chan []byte)
	return ch, args.Error(1)
}

func (m *mockBroker) Ping(ctx context.Context) error { return nil }
func (m *mockBroker) Close() error                   { return nil }

func newTestProcessor(repo *mocks.OutboxRepository, broker messaging.Broker) *OutboxProcessor {
	p := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  10 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		Retention:     24 * time.Hour,
	}, logger.Nop(), metrics.New("test"))
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func testEvent(retries int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:         uuid.New(),
		EventType:  model.EventBriefingCreated,
		Payload:    json.RawMessage(`{"briefing_id":"B-1"}`),
		Status:     model.OutboxStatusPending,
		RetryCount: retries,
	}
}

func TestProcessOncePublishesAndMarksProcessed(t *testing.T) {
	repo, batch, broker := &mocks.OutboxRepository{}, &mocks.OutboxBatch{}, &mockBroker{}
	ev := testEvent(0)

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{ev}, batch, nil)
	repo.On("CountPending", mock.Anything).Return(0, nil)
	broker.On("Publish", model.EventBriefingCreated, mock.AnythingOfType("model.EventEnvelope")).Return(nil)
	broker.On("Publish", messaging.AllEventsChannel, mock.AnythingOfType("model.EventEnvelope")).Return(nil)
	batch.On("MarkProcessed", ev.ID).Return(nil)
	batch.On("Commit").Return(nil)

	require.NoError(t, newTestProcessor(repo, broker).ProcessOnce(context.Background()))

	batch.AssertExpectations(t)
	broker.AssertExpectations(t)
	batch.AssertNotCalled(t, "Rollback")
}

func TestProcessOnceSchedulesRetryWithBackoff(t *testing.T) {
	repo, batch, broker := &mocks.OutboxRepository{}, &mocks.OutboxBatch{}, &mockBroker{}
	ev := testEvent(1)
	p := newTestProcessor(repo, broker)

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{ev}, batch, nil)
	repo.On("CountPending", mock.Anything).Return(1, nil)
	broker.On("Publish", model.EventBriefingCreated, mock.Anything).Return(errors.New("redis down"))
	batch.On("MarkRetry", ev.ID, "redis down", p.now().Add(2*time.Second)).Return(nil)
	batch.On("Commit").Return(nil)

	require.NoError(t, p.ProcessOnce(context.Background()))
	batch.AssertExpectations(t)
}

func TestProcessOnceFanInFailureDoesNotRetry(t *testing.T) {
	repo, batch, broker := &mocks.OutboxRepository{}, &mocks.OutboxBatch{}, &mockBroker{}
	ev := testEvent(0)
	p := newTestProcessor(repo, broker)

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{ev}, batch, nil)
	repo.On("CountPending", mock.Anything).Return(0, nil)
	broker.On("Publish", model.EventBriefingCreated, mock.Anything).Return(nil).Once()
	broker.On("Publish", messaging.AllEventsChannel, mock.Anything).Return(errors.New("redis down")).Once()
	batch.On("MarkProcessed", ev.ID).Return(nil)
	batch.On("Commit").Return(nil)

	require.NoError(t, p.ProcessOnce(context.Background()))

	broker.AssertNumberOfCalls(t, "Publish", 2)
	batch.AssertExpectations(t)
	batch.AssertNotCalled(t, "MarkRetry", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.OutboxFanInFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.OutboxEventsProcessed))
}

func TestProcessOnceMarksFailedAfterLastAttempt(t *testing.T) {
	repo, batch, broker := &mocks.OutboxRepository{}, &mocks.OutboxBatch{}, &mockBroker{}
	ev := testEvent(2)

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{ev}, batch, nil)
	repo.On("CountPending", mock.Anything).Return(0, nil)
	broker.On("Publish", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	batch.On("MarkFailed", ev.ID, "redis down").Return(nil)
	batch.On("Commit").Return(nil)

	require.NoError(t, newTestProcessor(repo, broker).ProcessOnce(context.Background()))
	batch.AssertExpectations(t)
}

func TestProcessOnceRollsBackWhenMarkFails(t *testing.T) {
	repo, batch, broker := &mocks.OutboxRepository{}, &mocks.OutboxBatch{}, &mockBroker{}
	ev := testEvent(0)

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{ev}, batch, nil)
	broker.On("Publish", mock.Anything, mock.Anything).Return(nil)
	batch.On("MarkProcessed", ev.ID).Return(errors.New("conn reset"))
	batch.On("Rollback").Return(nil)

	err := newTestProcessor(repo, broker).ProcessOnce(context.Background())
	assert.Error(t, err)
	batch.AssertCalled(t, "Rollback")
	batch.AssertNotCalled(t, "Commit")
}

func TestCleanupUsesRetention(t *testing.T) {
	repo := &mocks.OutboxRepository{}
	p := newTestProcessor(repo, &mockBroker{})
	repo.On("DeleteProcessedBefore", mock.Anything, p.now().Add(-24*time.Hour)).Return(int64(3), nil)

	require.NoError(t, p.Cleanup(context.Background()))
	repo.AssertExpectations(t)
}

func TestStartStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo, batch := &mocks.OutboxRepository{}, &mocks.OutboxBatch{}
	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{}, batch, nil)
	repo.On("CountPending", mock.Anything).Return(0, nil)
	batch.On("Commit").Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestProcessor(repo, &mockBroker{}).Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestBackoffIsCapped(t *testing.T) {
	p := newTestProcessor(&mocks.OutboxRepository{}, &mockBroker{})
	assert.Equal(t, time.Second, p.backoff(0))
	assert.Equal(t, 4*time.Second, p.backoff(2))
	assert.Equal(t, time.Hour, p.backoff(40))
}
