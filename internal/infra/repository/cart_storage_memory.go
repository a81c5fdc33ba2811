package repository

import (
	"context"
	"sync"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"
)

// 同一プロセス内で共有するストレージ（ブラウザのlocalStorage相当）
type MemoryCartStorage struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	state     model.CartState
	expiresAt time.Time
}

// DI
func NewMemoryCartStorage(now func() time.Time) *MemoryCartStorage {
	if now == nil {
		now = time.Now
	}
	return &MemoryCartStorage{now: now, entries: map[string]memoryEntry{}}
}

// 期限切れは読んだときに消す
func (s *MemoryCartStorage) Load(ctx context.Context, key string) (model.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return model.CartState{}, repo.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return model.CartState{}, repo.ErrNotFound
	}
	return e.state.Clone(), nil
}

func (s *MemoryCartStorage) Save(ctx context.Context, key string, state model.CartState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{state: state.Clone()}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryCartStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return repo.ErrNotFound
	}
	delete(s.entries, key)
	return nil
}
