package cache

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type redisClient struct {
	prefix string
	c      *rdb.Client
}

// NewRedis crea un cliente de cache sobre Redis.
func NewRedis(addr string, db int, prefix string) Client {
	return &redisClient{
		prefix: prefix,
		c:      rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
	}
}

// Client expone el cliente Redis subyacente (lo reusa el rate limiter).
func (r *redisClient) Client() *rdb.Client { return r.c }

func (r *redisClient) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *redisClient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.c.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.c.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisClient) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, r.key(key)).Err()
}

func (r *redisClient) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *redisClient) Close() error { return r.c.Close() }
