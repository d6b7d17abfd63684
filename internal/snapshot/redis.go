package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfenderov/duyuru-watch/pkg/models"
	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL          string // redis:// or rediss://, wins over Addr
	Addr         string
	Username     string
	Password     string
	DB           int
	SnapshotKey  string
	TimestampKey string
}

// Redis stores the announcement list and the check time under two keys,
// written together in one MULTI/EXEC transaction.
type Redis struct {
	client       *redis.Client
	snapshotKey  string
	timestampKey string
}

// NewRedis creates a Redis store. It does not connect until first use.
func NewRedis(config RedisConfig) (*Redis, error) {
	if config.SnapshotKey == "" || config.TimestampKey == "" {
		return nil, fmt.Errorf("snapshot and timestamp keys are required")
	}

	var opts *redis.Options
	if config.URL != "" {
		parsed, err := redis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts = parsed
	} else {
		if config.Addr == "" {
			return nil, fmt.Errorf("redis url or addr is required")
		}
		opts = &redis.Options{
			Addr:     config.Addr,
			Username: config.Username,
			Password: config.Password,
			DB:       config.DB,
		}
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second

	return &Redis{
		client:       redis.NewClient(opts),
		snapshotKey:  config.SnapshotKey,
		timestampKey: config.TimestampKey,
	}, nil
}

// Ping checks that Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Load(ctx context.Context) (models.Snapshot, error) {
	vals, err := r.client.MGet(ctx, r.snapshotKey, r.timestampKey).Result()
	if err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendRedis, Err: err}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return models.Snapshot{}, nil
	}
	items, err := DecodeItems([]byte(raw))
	if err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendRedis, Err: err}
	}

	var checkedAt time.Time
	if ts, ok := vals[1].(string); ok {
		checkedAt = DecodeTime(ts)
	}
	return models.Snapshot{Items: items, CheckedAt: checkedAt}, nil
}

func (r *Redis) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := EncodeItems(snap.Items)
	if err != nil {
		return &StoreError{Op: "save", Backend: backendRedis, Err: err}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.snapshotKey, data, 0)
		pipe.Set(ctx, r.timestampKey, EncodeTime(snap.CheckedAt), 0)
		return nil
	})
	if err != nil {
		return &StoreError{Op: "save", Backend: backendRedis, Err: err}
	}
	return nil
}

func (r *Redis) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.snapshotKey, r.timestampKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return &StoreError{Op: "reset", Backend: backendRedis, Err: err}
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
