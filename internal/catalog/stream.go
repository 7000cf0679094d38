package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the Redis stream carrying catalog changes.
const DefaultStream = "makers:catalog:changes"

// StreamWatcher reads catalog changes from a Redis stream. It lets
// catalog writers that are not on Postgres announce changes.
type StreamWatcher struct {
	rdb    *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamWatcher connects to Redis and returns a watcher on stream.
func NewStreamWatcher(ctx context.Context, redisURL, stream string, logger *zap.Logger) (*StreamWatcher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamWatcher{rdb: rdb, stream: stream, logger: logger}, nil
}

// Publish appends a change to the stream.
func (w *StreamWatcher) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = w.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: w.stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", w.stream, err)
	}
	return nil
}

// Watch emits changes appended after the call. Cancel ctx to stop.
func (w *StreamWatcher) Watch(ctx context.Context) <-chan Change {
	ch := make(chan Change, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			if ctx.Err() != nil {
				return
			}

			results, err := w.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{w.stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					w.logger.Warn("catalog stream read failed", zap.Error(err))
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
					change := parseChange(data)
					change.Source = "redis"
					select {
					case ch <- change:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (w *StreamWatcher) Close() error {
	return w.rdb.Close()
}
