package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// TicketCounterCache caches the open-ticket count badges in Redis so the
// moderator dashboards do not hammer the tickets table. Entries are short
// lived and invalidated on every lifecycle transition.
type TicketCounterCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTicketCounterCache builds the cache. A nil client disables caching.
func NewTicketCounterCache(client *redis.Client, ttl time.Duration) *TicketCounterCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TicketCounterCache{client: client, ttl: ttl}
}

func counterKey(kind domain.TicketKind) string {
	return "tickets:open:" + string(kind)
}

// Get returns the cached count and whether it was present.
func (c *TicketCounterCache) Get(ctx context.Context, kind domain.TicketKind) (int, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, counterKey(kind)).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set stores the count with the configured TTL.
func (c *TicketCounterCache) Set(ctx context.Context, kind domain.TicketKind, count int) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, counterKey(kind), strconv.Itoa(count), c.ttl).Err()
}

// Invalidate drops the cached count for the kind.
func (c *TicketCounterCache) Invalidate(ctx context.Context, kind domain.TicketKind) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, counterKey(kind)).Err()
}
