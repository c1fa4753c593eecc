package redisquota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"VideoScanner/internal/domain"
	"VideoScanner/internal/ports"
	"VideoScanner/internal/quota"
)

const keyTTL = 48 * time.Hour

// reserveScript adds ARGV[1] to the day counter only when the result stays
// within ARGV[2]. Returns -1 on denial.
var reserveScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local cost = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if used + cost > limit then
  return -1
end
used = redis.call('INCRBY', KEYS[1], cost)
redis.call('EXPIRE', KEYS[1], ARGV[3])
return used
`)

// Tracker shares one daily budget between processes through a per-day key.
type Tracker struct {
	client *redis.Client
	prefix string
	limit  int
	loc    *time.Location
	now    func() time.Time
}

var _ ports.QuotaTracker = (*Tracker)(nil)

// NewTracker wires a redis client; keys look like "<prefix>:2026-03-03".
func NewTracker(client *redis.Client, prefix string, limit int, loc *time.Location) *Tracker {
	if prefix == "" {
		prefix = "videoscanner:quota"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{client: client, prefix: prefix, limit: limit, loc: loc, now: time.Now}
}

func (t *Tracker) key() string {
	return t.prefix + ":" + quota.DayKey(t.now(), t.loc)
}

// TryReserve atomically compares and reserves cost units.
func (t *Tracker) TryReserve(ctx context.Context, cost int) (bool, error) {
	if cost < 0 {
		return false, nil
	}
	if cost == 0 {
		return true, nil
	}

	res, err := reserveScript.Run(ctx, t.client, []string{t.key()}, cost, t.limit, int(keyTTL.Seconds())).Int64()
	if err != nil {
		return false, fmt.Errorf("reserve quota: %w", err)
	}
	return res >= 0, nil
}

// Exhaust marks today's budget as fully spent.
func (t *Tracker) Exhaust(ctx context.Context) error {
	if err := t.client.Set(ctx, t.key(), t.limit, keyTTL).Err(); err != nil {
		return fmt.Errorf("exhaust quota: %w", err)
	}
	return nil
}

// Reset drops today's counter.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.client.Del(ctx, t.key()).Err(); err != nil {
		return fmt.Errorf("reset quota: %w", err)
	}
	return nil
}

// Status reads today's counter.
func (t *Tracker) Status(ctx context.Context) (domain.QuotaStatus, error) {
	used, err := t.client.Get(ctx, t.key()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.QuotaStatus{}, fmt.Errorf("read quota: %w", err)
	}
	remaining := t.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaStatus{
		Used:      used,
		Remaining: remaining,
		Limit:     t.limit,
		ResetAt:   quota.NextReset(t.now(), t.loc),
	}, nil
}
