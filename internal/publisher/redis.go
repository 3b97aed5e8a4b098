// Package publisher mirrors scan results and trade events to Redis for
// downstream consumers. It is optional; the scanner runs without it.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"contango-scanner/internal/contango"
	"contango-scanner/internal/metrics"
	"contango-scanner/internal/tradelog"
)

const (
	opportunitiesChannel = "contango:opportunities"
	opportunitiesKey     = "contango:opportunities:latest"
	tradeEventsChannel   = "contango:trades"

	summaryTTL = 30 * time.Second
)

// RedisPublisher publishes opportunity summaries and trade events.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis at addr and verifies the connection.
func NewRedisPublisher(addr string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// PublishOpportunities publishes the ranked rows to Pub/Sub and stores the
// latest summary under a TTL key.
func (p *RedisPublisher) PublishOpportunities(ctx context.Context, rows []contango.Row) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}

	timer := metrics.NewTimer()
	if err := p.client.Publish(ctx, opportunitiesChannel, data).Err(); err != nil {
		metrics.RedisPublishErrors.WithLabelValues(opportunitiesChannel).Inc()
		return err
	}
	if err := p.client.Set(ctx, opportunitiesKey, data, summaryTTL).Err(); err != nil {
		metrics.RedisPublishErrors.WithLabelValues(opportunitiesChannel).Inc()
		return err
	}
	timer.ObserveDuration(metrics.RedisPublishDuration, opportunitiesChannel)
	return nil
}

// PublishTradeEvent publishes one trade cycle event to Pub/Sub.
func (p *RedisPublisher) PublishTradeEvent(ctx context.Context, event tradelog.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	timer := metrics.NewTimer()
	if err := p.client.Publish(ctx, tradeEventsChannel, data).Err(); err != nil {
		metrics.RedisPublishErrors.WithLabelValues(tradeEventsChannel).Inc()
		return err
	}
	timer.ObserveDuration(metrics.RedisPublishDuration, tradeEventsChannel)
	return nil
}
