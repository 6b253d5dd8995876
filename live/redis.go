// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/voteverse/server/models"
)

const (
	channelPrefix  = "election:"
	channelSuffix  = ":tally"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Channel returns the Redis channel carrying an election's tally updates
func Channel(electionID string) string {
	return channelPrefix + electionID + channelSuffix
}

// RedisRelay shares tally updates between server instances. Publish sends an
// update to Redis; Run receives updates from every instance, this one
// included, and hands them to the local hub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
}

// NewRedisRelay connects to the Redis server at url (redis://...)
func NewRedisRelay(ctx context.Context, url string, hub *Hub) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &RedisRelay{client: c, hub: hub}, nil
}

func (r *RedisRelay) Publish(ctx context.Context, update models.TallyUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal tally update: %w", err)
	}

	if err := r.client.Publish(ctx, Channel(update.ElectionID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Run forwards updates from Redis into the local hub until ctx is done
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, channelPattern)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting readiness
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channelPattern, err)
	}
	slog.Info("redis relay subscribed", "pattern", channelPattern)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			r.forward(ctx, msg)
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context, msg *redis.Message) {
	update, err := decodeUpdate(msg.Channel, msg.Payload)
	if err != nil {
		slog.Warn("discarding malformed relay message", "channel", msg.Channel, "error", err)
		return
	}
	r.hub.Publish(ctx, update)
}

// decodeUpdate parses a relayed payload and checks it belongs to the channel
// it arrived on
func decodeUpdate(channel, payload string) (models.TallyUpdate, error) {
	var update models.TallyUpdate
	if err := json.Unmarshal([]byte(payload), &update); err != nil {
		return update, fmt.Errorf("invalid payload: %w", err)
	}

	electionID := strings.TrimSuffix(strings.TrimPrefix(channel, channelPrefix), channelSuffix)
	if update.ElectionID == "" || update.ElectionID != electionID {
		return update, fmt.Errorf("payload election %q does not match channel %q", update.ElectionID, channel)
	}
	return update, nil
}

func (r *RedisRelay) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
