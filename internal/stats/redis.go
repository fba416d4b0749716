package stats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/EznRB/utmify-hooks/internal/logging"
)

var _ Collector = (*RedisCollector)(nil)

// RedisCollector keeps the counters in Redis hashes:
// webhooks:stats:<tenant> and webhooks:stats:<tenant>:<endpoint>.
// Every increment is a single atomic HINCRBY.
type RedisCollector struct {
	client *redis.Client
	logger *logging.Logger
}

func NewRedisCollector(client *redis.Client, logger *logging.Logger) *RedisCollector {
	return &RedisCollector{client: client, logger: logger}
}

func tenantKey(tenantID string) string {
	return "webhooks:stats:" + tenantID
}

func endpointKey(tenantID, endpointID string) string {
	return tenantKey(tenantID) + ":" + endpointID
}

func (c *RedisCollector) RecordDispatched(ctx context.Context, tenantID, endpointID string) {
	c.incr(ctx, tenantID, endpointID, fieldTotal)
}

func (c *RedisCollector) RecordOutcome(ctx context.Context, tenantID, endpointID, outcome string) {
	field := fieldFailed
	if outcome == OutcomeSuccess {
		field = fieldSuccessful
	}
	c.incr(ctx, tenantID, endpointID, field)
}

func (c *RedisCollector) RecordDiscarded(ctx context.Context, tenantID, endpointID string) {
	c.incr(ctx, tenantID, endpointID, fieldDiscarded)
}

// incr bumps the tenant hash and, when an endpoint is known, the endpoint
// hash. Errors are logged and dropped so delivery never waits on Redis.
func (c *RedisCollector) incr(ctx context.Context, tenantID, endpointID, field string) {
	if err := c.client.HIncrBy(ctx, tenantKey(tenantID), field, 1).Err(); err != nil {
		c.logger.WithContext(ctx).WithTenant(tenantID).WithError(err).Error("stats increment failed")
	}
	if endpointID == "" {
		return
	}
	if err := c.client.HIncrBy(ctx, endpointKey(tenantID, endpointID), field, 1).Err(); err != nil {
		c.logger.WithContext(ctx).WithTenant(tenantID).WithEndpoint(endpointID).WithError(err).Error("stats increment failed")
	}
}

func (c *RedisCollector) Stats(ctx context.Context, tenantID, endpointID string) (Stats, error) {
	key := tenantKey(tenantID)
	if endpointID != "" {
		key = endpointKey(tenantID, endpointID)
	}

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("stats read: %w", err)
	}

	s := Stats{
		Total:      parseCount(fields[fieldTotal]),
		Successful: parseCount(fields[fieldSuccessful]),
		Failed:     parseCount(fields[fieldFailed]),
		Discarded:  parseCount(fields[fieldDiscarded]),
	}
	s.Finalize()
	return s, nil
}

func (c *RedisCollector) Reset(ctx context.Context, tenantID string) error {
	keys := []string{tenantKey(tenantID)}

	// Endpoint hashes hang off the tenant key as a prefix.
	iter := c.client.Scan(ctx, 0, tenantKey(tenantID)+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("stats scan: %w", err)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("stats reset: %w", err)
	}
	return nil
}

func parseCount(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
