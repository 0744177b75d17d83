package redis

import (
	"context"
	"fmt"
	"time"
)

// Per-user flood ceilings. Callback taps get a higher allowance than
// commands because browsing /mysecrets burns several taps per screen.
const (
	CommandLimit   = 20
	CommandWindow  = time.Minute
	CallbackLimit  = 30
	CallbackWindow = time.Minute
)

// RateLimiter throttles per-user bot traffic with fixed Redis windows.
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// AllowCommand reports whether the user may run another command this
// window. Each command name has its own counter.
func (r *RateLimiter) AllowCommand(ctx context.Context, tgID int64, command string) (bool, error) {
	return r.allow(ctx, commandKey(tgID, command), CommandLimit, CommandWindow)
}

// AllowCallback reports whether the user may tap another inline button
// this window. All callbacks share one counter.
func (r *RateLimiter) AllowCallback(ctx context.Context, tgID int64) (bool, error) {
	return r.allow(ctx, callbackKey(tgID), CallbackLimit, CallbackWindow)
}

func (r *RateLimiter) allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}

	return count <= int64(limit), nil
}

func commandKey(tgID int64, command string) string {
	return fmt.Sprintf("rate_limit:%d:cmd:%s", tgID, command)
}

func callbackKey(tgID int64) string {
	return fmt.Sprintf("rate_limit:%d:cb", tgID)
}
