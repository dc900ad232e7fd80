package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	Client *redis.Client
}

func New(addr, pass string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Cache{Client: rdb}
}

// GetEventSnapshot returns the cached capacity/status view of an event.
// A negative capacity marks the event closed.
func (c *Cache) GetEventSnapshot(ctx context.Context, eventID uuid.UUID) (domain.EventSnapshot, error) {
	val, err := c.Client.Get(ctx, "event:snap:"+eventID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.EventSnapshot{}, domain.ErrCacheMiss
		}
		return domain.EventSnapshot{}, err
	}

	capStr, status, ok := strings.Cut(val, "|")
	if !ok {
		return domain.EventSnapshot{}, domain.ErrCacheMiss
	}
	n, err := strconv.Atoi(capStr)
	if err != nil {
		return domain.EventSnapshot{}, domain.ErrCacheMiss
	}
	return domain.EventSnapshot{Capacity: n, Status: domain.EventStatus(status)}, nil
}

func (c *Cache) SetEventSnapshot(ctx context.Context, eventID uuid.UUID, snap domain.EventSnapshot) error {
	val := strconv.Itoa(snap.Capacity) + "|" + string(snap.Status)
	return c.Client.Set(ctx, "event:snap:"+eventID.String(), val, 24*time.Hour).Err()
}

// AllowRequest: simple fixed window rate limit
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
