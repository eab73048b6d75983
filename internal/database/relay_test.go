package database

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/cartsmith/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func (m *MockOutboxRepository) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) PendingCount(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) DeadLetterCount(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func streamValues(args *redis.XAddArgs) map[string]any {
	v, _ := args.Values.(map[string]any)
	return v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCartOutboxEvent(eventType events.EventType, aggregateID string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		UserID:        "u1",
		AggregateType: events.AggregateProduct,
		AggregateID:   aggregateID,
		EventType:     string(eventType),
		Payload:       json.RawMessage(`{"product_id":` + aggregateID + `,"user_id":"u1"}`),
		TargetStream:  events.StreamCartEvents,
		CreatedAt:     time.Now(),
	}
}

func TestRelay_ProcessEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks every event", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{redis: mockRedis, outbox: mockOutbox, logger: discardLogger(), batchSize: 10}

		pending := []*OutboxEvent{
			newCartOutboxEvent(events.EventTypeProductAdded, "1"),
			newCartOutboxEvent(events.EventTypeProductRemoved, "2"),
		}
		mockOutbox.On("GetPending", ctx, 10).Return(pending, nil)

		for _, event := range pending {
			mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				return args.Stream == events.StreamCartEvents &&
					streamValues(args)["event_type"] == event.EventType &&
					streamValues(args)["aggregate_id"] == event.AggregateID
			})).Return(nil)
			mockOutbox.On("MarkProcessed", ctx, event.ID).Return(nil)
		}

		require.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("redis failure marks event failed", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{redis: mockRedis, outbox: mockOutbox, logger: discardLogger(), batchSize: 10}

		event := newCartOutboxEvent(events.EventTypeProductAdded, "1")
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis connection failed"))
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.MatchedBy(func(err error) bool {
			return err.Error() == "failed to publish to redis: redis connection failed"
		})).Return(nil)

		assert.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
		mockOutbox.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	})

	t.Run("empty batch skips redis", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{redis: mockRedis, outbox: mockOutbox, logger: discardLogger(), batchSize: 10}

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		require.NoError(t, relay.processEvents(ctx))
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("outbox read failure is returned", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{outbox: mockOutbox, logger: discardLogger(), batchSize: 10}

		mockOutbox.On("GetPending", ctx, 10).Return(nil, errors.New("db down"))

		err := relay.processEvents(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("continues after one failure", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{redis: mockRedis, outbox: mockOutbox, logger: discardLogger(), batchSize: 10}

		first := newCartOutboxEvent(events.EventTypeProductAdded, "1")
		second := newCartOutboxEvent(events.EventTypeProductAdded, "2")
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{first, second}, nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return streamValues(args)["aggregate_id"] == "1"
		})).Return(errors.New("redis error"))
		mockOutbox.On("MarkFailed", ctx, first.ID, mock.Anything).Return(nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return streamValues(args)["aggregate_id"] == "2"
		})).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, second.ID).Return(nil)

		require.NoError(t, relay.processEvents(ctx))

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})
}

func TestRelay_PublishToRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("entry carries routing fields and the raw payload", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		relay := &Relay{redis: mockRedis, logger: discardLogger(), streamMaxLen: 5000}

		event := newCartOutboxEvent(events.EventTypeRuleCreated, "7")
		event.AggregateType = events.AggregateRule
		event.Payload = json.RawMessage(`{"event_id":"e-1","event_type":"RULE_CREATED","user_id":"u1",` +
			`"source":"cartsmith","rule_id":7,"trigger":"price_drop","product_ids":[3,4]}`)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			v := streamValues(args)
			return args.Stream == events.StreamCartEvents &&
				args.MaxLen == 5000 && args.Approx &&
				v["event_type"] == "RULE_CREATED" &&
				v["aggregate_type"] == "rule" &&
				v["aggregate_id"] == "7" &&
				v["user_id"] == "u1" &&
				v["rule_id"] == "7" &&
				v["trigger"] == "price_drop" &&
				v["source"] == "cartsmith" &&
				v["outbox_id"] == event.ID.String() &&
				v["data"] == string(event.Payload)
		})).Return(nil)

		require.NoError(t, relay.publishToRedis(ctx, event))
		mockRedis.AssertExpectations(t)
	})

	t.Run("product event omits rule fields", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		relay := &Relay{redis: mockRedis, logger: discardLogger()}

		event := newCartOutboxEvent(events.EventTypeProductAdded, "12")

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			v := streamValues(args)
			_, hasRule := v["rule_id"]
			return args.MaxLen == 0 && v["product_id"] == "12" && v["user_id"] == "u1" && !hasRule
		})).Return(nil)

		require.NoError(t, relay.publishToRedis(ctx, event))
		mockRedis.AssertExpectations(t)
	})

	t.Run("payload without user id is rejected", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		relay := &Relay{redis: mockRedis, logger: discardLogger()}

		event := newCartOutboxEvent(events.EventTypeProductAdded, "1")
		event.Payload = json.RawMessage(`{"event_id":"e-2","product_id":1}`)

		err := relay.publishToRedis(ctx, event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no user id")
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("payload owned by another user is rejected", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		relay := &Relay{redis: mockRedis, logger: discardLogger()}

		event := newCartOutboxEvent(events.EventTypeProductAdded, "1")
		event.UserID = "u2"

		err := relay.publishToRedis(ctx, event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `belongs to "u1"`)
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("invalid payload is rejected before publishing", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		relay := &Relay{redis: mockRedis, logger: discardLogger()}

		event := newCartOutboxEvent(events.EventTypeProductAdded, "1")
		event.Payload = json.RawMessage(`not json`)

		err := relay.publishToRedis(ctx, event)
		require.Error(t, err)
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})
}

func TestRelay_Counts(t *testing.T) {
	ctx := context.Background()
	mockOutbox := new(MockOutboxRepository)
	relay := &Relay{outbox: mockOutbox, counts: mockOutbox, logger: discardLogger()}

	mockOutbox.On("PendingCount", ctx).Return(int64(3), nil)
	mockOutbox.On("DeadLetterCount", ctx).Return(int64(1), nil)

	pending, err := relay.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)

	dead, err := relay.DeadLetterCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestRelay_Start(t *testing.T) {
	t.Run("stop on context cancellation", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)

		relay := &Relay{
			redis:     new(MockRedisClient),
			outbox:    mockOutbox,
			logger:    discardLogger(),
			interval:  50 * time.Millisecond,
			batchSize: 10,
		}

		mockOutbox.On("GetPending", mock.Anything, 10).Return([]*OutboxEvent{}, nil).Maybe()

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error)
		go func() {
			done <- relay.Start(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("relay did not stop on context cancellation")
		}
	})
}

func TestRelay_Purge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deletes rows older than the retention", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{outbox: mockOutbox, logger: discardLogger(), retention: 24 * time.Hour}

		mockOutbox.On("PurgeProcessed", ctx, now.Add(-24*time.Hour)).Return(int64(4), nil)

		relay.purge(ctx, now)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{outbox: mockOutbox, logger: discardLogger()}

		relay.purge(ctx, now)
		mockOutbox.AssertNotCalled(t, "PurgeProcessed", mock.Anything, mock.Anything)
	})

	t.Run("purge errors are logged, not returned", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := &Relay{outbox: mockOutbox, logger: discardLogger(), retention: time.Hour}

		mockOutbox.On("PurgeProcessed", ctx, mock.Anything).Return(int64(0), errors.New("db down"))

		relay.purge(ctx, now)
		mockOutbox.AssertExpectations(t)
	})
}
