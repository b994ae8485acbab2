package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultRedisNamespace = "dreamlog:"
	redisScanCount        = 256
)

// Redis is a Store keeping records as plain string keys under a namespace.
type Redis struct {
	rdb       *goredis.Client
	namespace string
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, namespace string) (*Redis, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, goerr.New("redis address is required")
	}
	if namespace == "" {
		namespace = defaultRedisNamespace
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, goerr.Wrap(err, "failed to ping redis", goerr.V("addr", addr))
	}

	return &Redis{rdb: rdb, namespace: namespace}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.namespace+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get record", goerr.V("key", key))
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, r.namespace+key, value, 0).Err(); err != nil {
		return goerr.Wrap(err, "failed to set record", goerr.V("key", key))
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.namespace+key).Err(); err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V("key", key))
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, r.namespace+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to scan records", goerr.V("namespace", r.namespace))
	}
	return keys, nil
}

// Close the redis client
func (r *Redis) Close() error {
	return r.rdb.Close()
}
