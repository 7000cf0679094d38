package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultChannel is the NOTIFY channel fed by the products trigger.
const DefaultChannel = "products_changes"

// PGListener turns Postgres NOTIFY events into Changes.
type PGListener struct {
	pool    *pgxpool.Pool
	channel string
	retry   time.Duration
	logger  *zap.Logger
}

// NewPGListener creates a listener on channel (DefaultChannel when empty).
func NewPGListener(pool *pgxpool.Pool, channel string, logger *zap.Logger) *PGListener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PGListener{pool: pool, channel: channel, retry: 2 * time.Second, logger: logger}
}

// Watch listens until ctx is cancelled, reconnecting on connection loss.
func (l *PGListener) Watch(ctx context.Context) <-chan Change {
	ch := make(chan Change, 16)
	go func() {
		defer close(ch)
		for {
			err := l.listen(ctx, ch)
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("catalog listener disconnected, retrying",
				zap.String("channel", l.channel), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.retry):
			}
		}
	}()
	return ch
}

func (l *PGListener) listen(ctx context.Context, ch chan<- Change) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+l.channel); err != nil {
		return err
	}
	l.logger.Info("listening for catalog changes", zap.String("channel", l.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		change := parseChange(n.Payload)
		change.Source = "postgres"
		select {
		case ch <- change:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parseChange decodes a trigger payload; unknown payloads still signal a change.
func parseChange(payload string) Change {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil || c.Op == "" {
		return Change{Op: "UNKNOWN"}
	}
	return c
}
