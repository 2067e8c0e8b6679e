// Package redis adapts the teacher service's Redis helpers into a
// generic telemetry-publish and command-bus bridge for cmd/gsbp-host:
// received application data gets published to a channel, and inbound
// application commands are read off a list and relayed to the
// device. GSBP itself has no native message bus; this package exists
// purely as an optional integration point for a reference CLI, not
// as part of the protocol.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client with the small set of operations the
// gsbp-host telemetry/command bridge needs.
type Client struct {
	client *redis.Client
	ctx    context.Context
}

func New(addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: connect to %s: %w", addr, err)
	}
	return &Client{client: client, ctx: ctx}, nil
}

// PublishSample publishes one application data sample value under
// field on channel, matching the teacher's WriteAndPublishInt shape
// (an HSet for the latest value plus a Publish notification) but
// without any scooter-specific key vocabulary.
func (c *Client) PublishSample(channel, field string, value int) error {
	pipe := c.client.Pipeline()
	pipe.HSet(c.ctx, channel, field, value)
	pipe.Publish(c.ctx, channel, fmt.Sprintf("%s:%d", field, value))
	_, err := pipe.Exec(c.ctx)
	return err
}

// BRPop performs a blocking right pop with the given timeout. A
// redis.Nil (timeout with nothing popped) is reported as (nil, nil)
// rather than an error, matching the teacher's treatment of blocking
// timeouts as a normal, expected outcome rather than a failure.
func (c *Client) BRPop(timeout time.Duration, key string) ([]string, error) {
	result, err := c.client.BRPop(c.ctx, timeout, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) Close() error { return c.client.Close() }

// WatchCommands blocks, repeatedly BRPop-ing key and invoking handle
// for each popped value, until ctx is done. It's the generalization
// of the teacher's SubscribeToRedisChannels/BRPop command watcher:
// there it relayed scooter BLE characteristic writes, here it relays
// GSBP application commands (see cmd/gsbp-host).
func (c *Client) WatchCommands(ctx context.Context, key string, handle func(value string)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		result, err := c.BRPop(time.Second, key)
		if err != nil {
			log.Printf("redis: BRPOP %s: %v", key, err)
			time.Sleep(time.Second)
			continue
		}
		if result == nil {
			continue
		}
		handle(result[1])
	}
}
