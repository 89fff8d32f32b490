package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/civichq/resultwatch/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventChannel carries scraper lifecycle events to the query service.
const EventChannel = "resultwatch:events"

// Client wraps the redis connection used for cross-process event relay.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClient connects using REDIS_HOST/REDIS_PORT/REDIS_PASSWORD/REDIS_DB.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	dbNum := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbNum,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", addr), zap.Int("db", dbNum))
	return &Client{client: rdb, logger: logger}, nil
}

// Close closes the redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// PublishEvent relays one event payload to the event channel. Best-effort:
// failures are logged, never returned, so a dead redis cannot fail a cycle.
func (c *Client) PublishEvent(ctx context.Context, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("Failed to encode event", zap.Error(err))
		return
	}
	if err := c.client.Publish(ctx, EventChannel, data).Err(); err != nil {
		c.logger.Warn("Failed to publish event", zap.String("channel", EventChannel), zap.Error(err))
	}
}

// SubscribeEvents subscribes to the event channel. The caller owns the
// returned PubSub and must close it.
func (c *Client) SubscribeEvents(ctx context.Context) *redis.PubSub {
	return c.client.Subscribe(ctx, EventChannel)
}
