package database

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/cartsmith/internal/events"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the redis client the relay needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type OutboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}

type OutboxCounter interface {
	PendingCount(ctx context.Context) (int64, error)
	DeadLetterCount(ctx context.Context) (int64, error)
}

// Relay moves cart events from the outbox table onto their Redis streams.
type Relay struct {
	redis     RedisClient
	outbox    OutboxRepo
	counts    OutboxCounter
	logger    *slog.Logger
	interval  time.Duration
	batchSize int

	streamMaxLen int64
	retention    time.Duration
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// StreamMaxLen caps each stream at roughly this many entries; 0 keeps all.
	StreamMaxLen int64
	// Retention is how long relayed rows stay in the outbox; 0 keeps them.
	Retention time.Duration
}

func NewRelay(db *DB, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	repo := NewOutboxRepository(db)
	return &Relay{
		redis:     redisClient,
		outbox:    repo,
		counts:    repo,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,

		streamMaxLen: config.StreamMaxLen,
		retention:    config.Retention,
	}
}

// Start polls until ctx is cancelled. Errors on one batch do not stop it.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.interval,
		"batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.processEvents(ctx); err != nil {
		r.logger.Error("failed to process events on startup", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case now := <-ticker.C:
			if err := r.processEvents(ctx); err != nil {
				r.logger.Error("failed to process events", "error", err)
			}
			r.purge(ctx, now)
		}
	}
}

func (r *Relay) purge(ctx context.Context, now time.Time) {
	if r.retention <= 0 {
		return
	}
	purged, err := r.outbox.PurgeProcessed(ctx, now.Add(-r.retention))
	if err != nil {
		r.logger.Error("failed to purge relayed events", "error", err)
		return
	}
	if purged > 0 {
		r.logger.Debug("purged relayed events", "count", purged)
	}
}

func (r *Relay) processEvents(ctx context.Context) error {
	pending, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	r.logger.Debug("processing events", "count", len(pending))

	failed := 0
	for _, event := range pending {
		if err := r.processEvent(ctx, event); err != nil {
			failed++
			r.logger.Error("failed to process event",
				"event_id", event.ID,
				"user_id", event.UserID,
				"event_type", event.EventType,
				"aggregate_id", event.AggregateID,
				"error", err)
		}
	}

	r.logger.Debug("batch relayed", "published", len(pending)-failed, "failed", failed)
	return nil
}

func (r *Relay) processEvent(ctx context.Context, event *OutboxEvent) error {
	if err := r.publishToRedis(ctx, event); err != nil {
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to mark event as failed",
				"event_id", event.ID,
				"error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		r.logger.Error("failed to mark event as processed",
			"event_id", event.ID,
			"error", err)
		return err
	}

	r.logger.Info("event relayed",
		"event_id", event.ID,
		"user_id", event.UserID,
		"event_type", event.EventType,
		"aggregate_id", event.AggregateID,
		"target_stream", event.TargetStream)

	return nil
}

// publishToRedis appends one cart event to its stream. The entry carries the
// payload verbatim under "data" plus the routing fields from the payload, so
// consumers can select a user's events without decoding every entry.
func (r *Relay) publishToRedis(ctx context.Context, event *OutboxEvent) error {
	payload, err := events.Decode(event.Payload)
	if err != nil {
		return err
	}
	if event.UserID != "" && payload.UserID != event.UserID {
		return fmt.Errorf("event %s payload belongs to %q, row to %q", event.ID, payload.UserID, event.UserID)
	}

	values := payload.StreamFields()
	values["data"] = string(event.Payload)
	values["outbox_id"] = event.ID.String()
	values["aggregate_type"] = event.AggregateType
	values["aggregate_id"] = event.AggregateID
	values["timestamp"] = strconv.FormatInt(event.CreatedAt.UnixNano(), 10)
	if event.RetryCount > 0 {
		values["retry_count"] = strconv.Itoa(event.RetryCount)
	}
	// The outbox row is authoritative for the type.
	values["event_type"] = event.EventType

	args := &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: values,
	}
	if r.streamMaxLen > 0 {
		args.MaxLen = r.streamMaxLen
		args.Approx = true
	}

	if _, err := r.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	return nil
}

func (r *Relay) PendingCount(ctx context.Context) (int64, error) {
	return r.counts.PendingCount(ctx)
}

func (r *Relay) DeadLetterCount(ctx context.Context) (int64, error) {
	return r.counts.DeadLetterCount(ctx)
}
