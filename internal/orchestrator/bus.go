package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	runStreamPrefix = "academy:run:"
	defaultRunTTL   = 24 * time.Hour
)

// ProgressBus records workflow snapshots of background runs in Redis
// Streams so that any server instance can replay them.
type ProgressBus struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewProgressBus wraps an existing client.
func NewProgressBus(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ProgressBus {
	if ttl <= 0 {
		ttl = defaultRunTTL
	}
	return &ProgressBus{rdb: rdb, ttl: ttl, logger: logger}
}

// DialProgressBus connects to redisURL and verifies it answers.
func DialProgressBus(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) (*ProgressBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewProgressBus(rdb, ttl, logger), nil
}

func streamKey(runID string) string { return runStreamPrefix + runID }

// Publish appends one snapshot to the run's stream.
func (b *ProgressBus) Publish(ctx context.Context, runID string, p WorkflowProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	key := streamKey(runID)
	pipe := b.rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: map[string]interface{}{"data": string(data)},
	})
	pipe.Expire(ctx, key, b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", key, err)
	}
	b.logger.Debug("published progress",
		zap.String("run", runID),
		zap.String("status", string(p.Status)),
		zap.Int("step", p.CurrentStep))
	return nil
}

// Listener returns a ProgressListener that publishes to runID. Publish
// failures are logged and do not stop the workflow.
func (b *ProgressBus) Listener(ctx context.Context, runID string) ProgressListener {
	return ListenerFunc(func(p WorkflowProgress) {
		if err := b.Publish(ctx, runID, p); err != nil {
			b.logger.Warn("progress publish failed", zap.String("run", runID), zap.Error(err))
		}
	})
}

// Subscribe replays a run's snapshots from the beginning and follows new
// ones. The channel closes after a terminal snapshot or when ctx ends.
func (b *ProgressBus) Subscribe(ctx context.Context, runID string) <-chan WorkflowProgress {
	ch := make(chan WorkflowProgress, 16)
	key := streamKey(runID)

	go func() {
		defer close(ch)
		lastID := "0"

		for {
			if ctx.Err() != nil {
				return
			}
			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   16,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				if !errors.Is(err, redis.Nil) {
					b.logger.Warn("progress read failed", zap.String("run", runID), zap.Error(err))
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var p WorkflowProgress
					if json.Unmarshal([]byte(data), &p) != nil {
						continue
					}
					select {
					case ch <- p:
					case <-ctx.Done():
						return
					}
					if p.Status.Terminal() {
						return
					}
				}
			}
		}
	}()

	return ch
}

// Ping checks the Redis connection.
func (b *ProgressBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close shuts down the Redis connection.
func (b *ProgressBus) Close() error {
	return b.rdb.Close()
}
