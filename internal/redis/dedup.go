package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/metrics"
)

// DefaultSendTTL covers the widest gap between two runs that could both
// pick up the same queue entry.
const DefaultSendTTL = 24 * time.Hour

const sentMarker = "sent"

// SendDeduper guards external sends so a queue entry that is retried,
// or processed by two overlapping runs, reaches each recipient once.
type SendDeduper struct {
	client *Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewSendDeduper creates a deduper. A zero ttl uses DefaultSendTTL.
func NewSendDeduper(client *Client, logger *zap.Logger, ttl time.Duration) *SendDeduper {
	if ttl <= 0 {
		ttl = DefaultSendTTL
	}
	return &SendDeduper{client: client, logger: logger, ttl: ttl}
}

func sendKey(entryID, channel, recipient string) string {
	return fmt.Sprintf("remindr:send:%s:%s:%s", entryID, channel, recipient)
}

// Reserve claims the send with SET NX. It returns false when another
// attempt already holds or completed the same send.
func (d *SendDeduper) Reserve(ctx context.Context, entryID, channel, recipient string) (bool, error) {
	set, err := d.client.rdb.SetNX(ctx, sendKey(entryID, channel, recipient), sentMarker, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !set {
		metrics.RecordDedupHit()
		d.logger.Debug("send already reserved",
			zap.String("entry_id", entryID),
			zap.String("channel", channel),
		)
	}
	return set, nil
}

// Release drops a reservation after a failed send so a later run can retry.
func (d *SendDeduper) Release(ctx context.Context, entryID, channel, recipient string) error {
	if err := d.client.rdb.Del(ctx, sendKey(entryID, channel, recipient)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
