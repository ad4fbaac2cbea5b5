package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fixdesk/internal/conversation/models"
	"fixdesk/internal/platform/redis"
	"fixdesk/pkg/platform/sentinel"
)

const keyPrefix = "conversation:"

// conversationTTL bounds how long an abandoned dialog lingers in Redis.
// Storage hygiene only: no code path observes expiry, and a week is far
// beyond any plausible dialog lifetime.
const conversationTTL = 7 * 24 * time.Hour

// Redis persists open conversations as JSON under conversation:<principal>,
// so dialogs survive a process restart. SET is atomic per key, which is all
// the serialization the engine requires given the transport's per-principal
// ordering.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func key(principalID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, principalID)
}

func (s *Redis) Save(ctx context.Context, conv models.Conversation) error {
	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if err := s.client.Set(ctx, key(conv.PrincipalID), payload, conversationTTL).Err(); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (s *Redis) Find(ctx context.Context, principalID int64) (*models.Conversation, error) {
	payload, err := s.client.Get(ctx, key(principalID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	var conv models.Conversation
	if err := json.Unmarshal(payload, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *Redis) Delete(ctx context.Context, principalID int64) error {
	if err := s.client.Del(ctx, key(principalID)).Err(); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}
