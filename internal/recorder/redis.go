package recorder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
)

const defaultRedisKeyPrefix = "feedstate:bba:"

// RedisConfig controls the latest BBA cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

type latestStore interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisSink keeps only the newest record of every book under one key per book.
type RedisSink struct {
	client latestStore
	prefix string
	ttl    time.Duration
}

func NewRedisSink(cfg RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("invalid redis sink config: Addr is empty")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid redis sink config: TTL must be >= 0")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisSink(client, cfg.KeyPrefix, cfg.TTL), nil
}

func newRedisSink(client latestStore, prefix string, ttl time.Duration) *RedisSink {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSink) Name() string {
	return "redis"
}

func (r *RedisSink) Write(ctx context.Context, records []Record) error {
	for key, rec := range latestByKey(records) {
		value, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "marshal record")
		}
		if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
			return errors.Wrapf(err, "set %s", key)
		}
	}
	return nil
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}

func latestByKey(records []Record) map[string]Record {
	out := make(map[string]Record)
	for _, rec := range records {
		if prev, ok := out[rec.Key()]; ok && !rec.Timestamp.After(prev.Timestamp) {
			continue
		}
		out[rec.Key()] = rec
	}
	return out
}
