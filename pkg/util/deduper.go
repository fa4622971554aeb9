package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper suppresses duplicate event processing with a redis SetNX lock.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// AcquireOnce returns true if this is the first time the (handler, emailID)
// pair is processed within the TTL. If redis is unavailable processing is
// allowed through; the handlers are idempotent anyway.
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, emailID int) bool {
	key := fmt.Sprintf("dedup:%s:%d", handler, emailID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("handler", handler),
				zap.Int("email_id", emailID),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.Int("email_id", emailID),
		)
	}
	return ok
}

// Release drops the dedup lock so a failed attempt can be redelivered.
func (d *Deduper) Release(ctx context.Context, handler string, emailID int) {
	key := fmt.Sprintf("dedup:%s:%d", handler, emailID)
	if err := d.rdb.Del(ctx, key).Err(); err != nil && d.logger != nil {
		d.logger.Warn("Failed to release dedup lock",
			zap.String("handler", handler),
			zap.Int("email_id", emailID),
			zap.Error(err),
		)
	}
}
