package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
)

// タブ間同期のメッセージ（状態をまるごと運ぶ）。
// Versionは書き込みごとに増える。配送順が前後しても古い方を捨てられる。
type CartEvent struct {
	Key     string          `json:"key"`
	TabID   string          `json:"tab_id"`
	Version int64           `json:"version"`
	State   model.CartState `json:"state"`
	At      time.Time       `json:"at"`
}

// 全タブへのブロードキャスト
type CartBus interface {
	Publish(ctx context.Context, ev CartEvent) error
	Subscribe(ctx context.Context) (<-chan CartEvent, error)
	Close() error
}

func EncodeCartEvent(ev CartEvent) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode cart event: %w", err)
	}
	return b, nil
}

func DecodeCartEvent(b []byte) (CartEvent, error) {
	var ev CartEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return CartEvent{}, fmt.Errorf("decode cart event: %w", err)
	}
	if ev.Key == "" {
		return CartEvent{}, fmt.Errorf("decode cart event: empty key")
	}
	return ev, nil
}
