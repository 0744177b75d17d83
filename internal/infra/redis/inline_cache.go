package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-secret-relay/internal/domain"

	goredis "github.com/go-redis/redis/v8"
)

// InlineCache holds the payload of inline-created shares until the share
// row is claimed. Inline queries never touch the origin chat, so the text
// has to live somewhere between composition and delivery.
type InlineCache struct {
	client *Client
	ttl    time.Duration
}

func NewInlineCache(client *Client, ttl time.Duration) *InlineCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InlineCache{client: client, ttl: ttl}
}

func (c *InlineCache) key(shareID string) string {
	return fmt.Sprintf("inline_payload:%s", shareID)
}

func (c *InlineCache) Put(ctx context.Context, shareID, payload string) error {
	return c.client.Set(ctx, c.key(shareID), payload, c.ttl)
}

func (c *InlineCache) Get(ctx context.Context, shareID string) (string, error) {
	v, err := c.client.Get(ctx, c.key(shareID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (c *InlineCache) Delete(ctx context.Context, shareID string) error {
	return c.client.Del(ctx, c.key(shareID))
}
