// internal/dedup/dedup.go

// Package dedup short-circuits reprocessing of identical extracted text
// by fingerprinting it in Redis per user.
package dedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"resume-ingest/internal/common/database"
	"resume-ingest/internal/common/logger"
)

type Deduper struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewDeduper(redis *database.RedisClient, ttl time.Duration, log logger.Logger) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{redis: redis, ttl: ttl, logger: log}
}

// CheckAndRecord fingerprints the text and records it atomically.
// It returns true when the same text was already seen for this user
// within the TTL. Redis failures are reported but should be treated as
// "not seen" by callers; dedup is an optimization, not a gate.
func (d *Deduper) CheckAndRecord(ctx context.Context, userID, text string) (bool, error) {
	sum := md5.Sum([]byte(text))
	key := fmt.Sprintf("resume:text:md5:%s:%s", userID, hex.EncodeToString(sum[:]))

	created, err := d.redis.Client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if !created {
		d.logger.Info("duplicate extracted text detected", map[string]interface{}{
			"userId": userID,
		})
	}
	return !created, nil
}
