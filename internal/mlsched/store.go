package mlsched

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const scheduleKeyPrefix = "mlsched:schedule:"

// DefaultScheduleTTL keeps generated schedules for a quarter.
const DefaultScheduleTTL = 90 * 24 * time.Hour

// ScheduleStore persists one schedule per date.
type ScheduleStore interface {
	Save(ctx context.Context, s Schedule) error
	Load(ctx context.Context, date string) (Schedule, error)
}

// RedisStore keeps schedules as JSON documents keyed by date.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultScheduleTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save replaces the schedule stored for s.Date.
func (r *RedisStore) Save(ctx context.Context, s Schedule) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("mlsched: encode schedule: %w", err)
	}
	if err := r.client.Set(ctx, scheduleKeyPrefix+s.Date, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("mlsched: save schedule: %w", err)
	}
	return nil
}

// Load returns the schedule of date or ErrNoSchedule.
func (r *RedisStore) Load(ctx context.Context, date string) (Schedule, error) {
	raw, err := r.client.Get(ctx, scheduleKeyPrefix+date).Bytes()
	if errors.Is(err, redis.Nil) {
		return Schedule{}, ErrNoSchedule
	}
	if err != nil {
		return Schedule{}, fmt.Errorf("mlsched: load schedule: %w", err)
	}
	var s Schedule
	if err := json.Unmarshal(raw, &s); err != nil {
		return Schedule{}, fmt.Errorf("mlsched: decode schedule: %w", err)
	}
	return s, nil
}
