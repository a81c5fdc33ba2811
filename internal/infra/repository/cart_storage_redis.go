package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"github.com/redis/go-redis/v9"
)

// RedisCartStorage はカートをJSONで1キーに保存する。
// 期限はSET EXに任せる。
type RedisCartStorage struct {
	rdb *redis.Client
}

// DI
func NewRedisCartStorage(rdb *redis.Client) *RedisCartStorage {
	return &RedisCartStorage{rdb: rdb}
}

func (s *RedisCartStorage) Load(ctx context.Context, key string) (model.CartState, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.CartState{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartState{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	var st model.CartState
	if err := json.Unmarshal(b, &st); err != nil {
		return model.CartState{}, fmt.Errorf("decode cart %s: %w", key, err)
	}
	return st, nil
}

func (s *RedisCartStorage) Save(ctx context.Context, key string, state model.CartState, ttl time.Duration) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisCartStorage) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}
