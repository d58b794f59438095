package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisMirror keeps the set of online users in Redis and publishes every
// transition on the "<key>:events" channel for other processes.
type RedisMirror struct {
	client *redis.Client
	key    string
}

// NewRedisMirror creates a mirror writing to key.
func NewRedisMirror(client *redis.Client, key string) *RedisMirror {
	return &RedisMirror{client: client, key: key}
}

// Channel returns the pub/sub channel transitions are published on.
func (m *RedisMirror) Channel() string {
	return m.key + ":events"
}

// Publish applies change to the online set and announces it.
func (m *RedisMirror) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal presence change: %w", err)
	}

	pipe := m.client.TxPipeline()
	if change.Online {
		pipe.SAdd(ctx, m.key, change.UserID)
	} else {
		pipe.SRem(ctx, m.key, change.UserID)
	}
	pipe.Publish(ctx, m.Channel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror presence: %w", err)
	}
	return nil
}

// Online returns the mirrored set of online users.
func (m *RedisMirror) Online(ctx context.Context) ([]string, error) {
	users, err := m.client.SMembers(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read online users: %w", err)
	}
	return users, nil
}

// Reset clears the online set. Called at startup, when no connection is live.
func (m *RedisMirror) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("failed to reset online users: %w", err)
	}
	return nil
}

