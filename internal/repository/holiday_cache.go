package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

const holidayCacheKey = "holidays:dates"

// CachedHolidayRepository fronts HolidayRepository with a redis-cached date
// set. Holiday lookups happen on every generation and end-date calculation;
// the underlying table changes a few times a year.
type CachedHolidayRepository struct {
	inner  *HolidayRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedHolidayRepository wraps repo with a redis cache. A nil client
// degrades to passthrough.
func NewCachedHolidayRepository(inner *HolidayRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedHolidayRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedHolidayRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

// ListDates returns holiday dates, serving from redis when warm. Cache
// failures fall back to the database; they are logged, never surfaced.
func (r *CachedHolidayRepository) ListDates(ctx context.Context) ([]time.Time, error) {
	if r.client != nil {
		raw, err := r.client.Get(ctx, holidayCacheKey).Bytes()
		if err == nil {
			var cached []string
			if unmarshalErr := json.Unmarshal(raw, &cached); unmarshalErr == nil {
				dates := make([]time.Time, 0, len(cached))
				ok := true
				for _, value := range cached {
					d, parseErr := time.Parse("2006-01-02", value)
					if parseErr != nil {
						ok = false
						break
					}
					dates = append(dates, d)
				}
				if ok {
					return dates, nil
				}
			}
		} else if err != redis.Nil {
			r.logger.Warn("holiday cache read failed", zap.Error(err))
		}
	}

	dates, err := r.inner.ListDates(ctx)
	if err != nil {
		return nil, err
	}

	if r.client != nil {
		encoded := make([]string, 0, len(dates))
		for _, d := range dates {
			encoded = append(encoded, d.Format("2006-01-02"))
		}
		if raw, marshalErr := json.Marshal(encoded); marshalErr == nil {
			if setErr := r.client.Set(ctx, holidayCacheKey, raw, r.ttl).Err(); setErr != nil {
				r.logger.Warn("holiday cache write failed", zap.Error(setErr))
			}
		}
	}
	return dates, nil
}

// List passes through to the database.
func (r *CachedHolidayRepository) List(ctx context.Context) ([]models.Holiday, error) {
	return r.inner.List(ctx)
}

// Create inserts a holiday and invalidates the cached date set.
func (r *CachedHolidayRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	if err := r.inner.Create(ctx, holiday); err != nil {
		return err
	}
	if r.client != nil {
		if err := r.client.Del(ctx, holidayCacheKey).Err(); err != nil {
			r.logger.Warn("holiday cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}
