package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is a thin Redis wrapper for the best-effort concerns: the
// payment-status cache and the cross-replica sweep lock. Postgres stays
// authoritative for everything.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetPaymentStatus caches an order's reconciled payment status for cheap
// "did my payment land" polling.
func (c *Client) SetPaymentStatus(ctx context.Context, orderID int64, status string) error {
	return c.rdb.Set(ctx, paymentStatusKey(orderID), status, time.Hour).Err()
}

// GetPaymentStatus returns the cached payment status, or "" on a miss.
func (c *Client) GetPaymentStatus(ctx context.Context, orderID int64) (string, error) {
	status, err := c.rdb.Get(ctx, paymentStatusKey(orderID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// AcquireLock acquires a distributed lock (sweep single-flight across
// replicas).
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "lock:"+lockKey, "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, "lock:"+lockKey).Err()
}

func paymentStatusKey(orderID int64) string {
	return fmt.Sprintf("order:%d:payment_status", orderID)
}
