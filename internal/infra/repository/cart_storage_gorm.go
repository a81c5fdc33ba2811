package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormCartStorage struct {
	db  *gorm.DB
	now func() time.Time
}

// DI
func NewGormCartStorage(db *gorm.DB, now func() time.Time) *GormCartStorage {
	if now == nil {
		now = time.Now
	}
	return &GormCartStorage{db: db, now: now}
}

// 期限切れの行は無いものとして扱う
func (s *GormCartStorage) Load(ctx context.Context, key string) (model.CartState, error) {
	var row model.CartSnapshot

	err := s.db.WithContext(ctx).
		Where("storage_key = ?", key).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		First(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartState{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartState{}, err
	}

	var st model.CartState
	if err := json.Unmarshal([]byte(row.Payload), &st); err != nil {
		return model.CartState{}, fmt.Errorf("decode cart %s: %w", key, err)
	}
	return st, nil
}

// 同じキーは上書き
func (s *GormCartStorage) Save(ctx context.Context, key string, state model.CartState, ttl time.Duration) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", key, err)
	}

	now := s.now()
	row := model.CartSnapshot{
		StorageKey: key,
		Payload:    string(b),
		UpdatedAt:  now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		row.ExpiresAt = &exp
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "storage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *GormCartStorage) Delete(ctx context.Context, key string) error {
	res := s.db.WithContext(ctx).
		Where("storage_key = ?", key).
		Delete(&model.CartSnapshot{})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 期限切れの行をまとめて消す
func (s *GormCartStorage) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&model.CartSnapshot{})
	return res.RowsAffected, res.Error
}
