package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vitalhub/vitals/internal/api"
)

const redisRecordsKey = "vitals:records"

// RedisStore keeps records in a Redis hash keyed by date. HSETNX gives
// atomic first-write-wins per date even under concurrent ingesters.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Append(ctx context.Context, rec api.UnifiedRecord) error {
	if err := validateRecord(&rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	wasSet, err := r.client.HSetNX(ctx, redisRecordsKey, rec.Date, data).Result()
	if err != nil {
		return fmt.Errorf("redis HSETNX failed: %w", err)
	}
	if !wasSet {
		return ErrDuplicateDate
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context) ([]api.UnifiedRecord, error) {
	fields, err := r.client.HGetAll(ctx, redisRecordsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL failed: %w", err)
	}

	recs := make([]api.UnifiedRecord, 0, len(fields))
	for date, raw := range fields {
		var rec api.UnifiedRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", date, err)
		}
		recs = append(recs, rec)
	}
	sortByDate(recs)
	return recs, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
