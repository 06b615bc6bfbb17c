// Package cache keeps short-lived copies of queue status responses so that
// patients polling every few seconds do not each hit the database.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// QueueCache stores per-appointment queue status grouped by clinic session.
type QueueCache interface {
	// Get decodes a cached entry into dst and reports whether one existed.
	Get(ctx context.Context, scheduleID, appointmentID string, dst interface{}) bool
	Set(ctx context.Context, scheduleID, appointmentID string, v interface{})
	// Invalidate drops every entry of a clinic session.
	Invalidate(ctx context.Context, scheduleID string)
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string, string, interface{}) bool { return false }
func (Nop) Set(context.Context, string, string, interface{})      {}
func (Nop) Invalidate(context.Context, string)                    {}

// RedisQueueCache keeps one hash per session, queue:<schedule_id>, with a
// field per appointment. The whole hash expires after ttl.
type RedisQueueCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisQueueCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisQueueCache {
	return &RedisQueueCache{client: client, ttl: ttl, log: log}
}

func queueKey(scheduleID string) string {
	return "queue:" + scheduleID
}

func (c *RedisQueueCache) Get(ctx context.Context, scheduleID, appointmentID string, dst interface{}) bool {
	raw, err := c.client.HGet(ctx, queueKey(scheduleID), appointmentID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("queue cache read failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("queue cache entry corrupt", zap.String("schedule_id", scheduleID), zap.Error(err))
		return false
	}
	return true
}

func (c *RedisQueueCache) Set(ctx context.Context, scheduleID, appointmentID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	key := queueKey(scheduleID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, appointmentID, data)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("queue cache write failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}

func (c *RedisQueueCache) Invalidate(ctx context.Context, scheduleID string) {
	if err := c.client.Del(ctx, queueKey(scheduleID)).Err(); err != nil {
		c.log.Warn("queue cache invalidate failed", zap.String("schedule_id", scheduleID), zap.Error(err))
	}
}
