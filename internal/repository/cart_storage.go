package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
)

// カート保存先のキー接頭辞
const CartStorageKeyPrefix = "cart-storage"

// ユーザーごとの保存スロット
func CartStorageKey(userID int64) string {
	return fmt.Sprintf("%s:%d", CartStorageKeyPrefix, userID)
}

// カートの永続化だけを約束。
// 無い・期限切れの場合、LoadはErrNotFoundを返す。
type CartStorage interface {
	Load(ctx context.Context, key string) (model.CartState, error)
	Save(ctx context.Context, key string, state model.CartState, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
