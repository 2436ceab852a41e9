package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/playok/adminsync/internal/model"
)

const defaultRedisKey = "adminsync:options"

// Redis keeps all options as fields of a single hash, so several server
// instances can share one option table.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects to addr and pings it once.
func NewRedis(addr, password string, db int, key string) (*Redis, error) {
	if key == "" {
		key = defaultRedisKey
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: client, key: key}, nil
}

func (r *Redis) Get(ctx context.Context, name string) (string, bool, error) {
	val, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) Create(ctx context.Context, name, value string) error {
	return r.client.HSetNX(ctx, r.key, name, value).Err()
}

func (r *Redis) Update(ctx context.Context, name, value string) error {
	return r.client.HSet(ctx, r.key, name, value).Err()
}

func (r *Redis) List(ctx context.Context) ([]model.Setting, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Setting, 0, len(all))
	for name, value := range all {
		out = append(out, model.Setting{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
