package translator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"horse.fit/polyglot/internal/globaltime"
)

const rateLimitKeyPrefix = "polyglot:rl:user:"

// RateLimiter enforces a fixed-window per-user limit on translation
// requests. Windows are aligned to wall-clock minutes, so the counter key
// is shared by every process serving the same user.
type RateLimiter struct {
	client redis.UniversalClient
}

func NewRateLimiter(client redis.UniversalClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow increments the viewer's counter for the current minute and
// reports whether the request fits under limit. A limit of zero or less
// disables the check.
func (l *RateLimiter) Allow(ctx context.Context, userID int64, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	key := rateLimitKey(userID, globaltime.Now())
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing rate limit counter: %w", err)
	}
	if count == 1 {
		// Expiry covers the window plus slack so a clock-edge increment
		// never leaves an immortal key.
		if err := l.client.Expire(ctx, key, 2*time.Minute).Err(); err != nil {
			return false, fmt.Errorf("setting rate limit expiry: %w", err)
		}
	}
	return count <= int64(limit), nil
}

func rateLimitKey(userID int64, now time.Time) string {
	return fmt.Sprintf("%s%d:%d", rateLimitKeyPrefix, userID, now.Unix()/60)
}
