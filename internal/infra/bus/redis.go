package bus

import (
	"context"
	"fmt"

	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus はPUBLISH/SUBSCRIBEで複数プロセスに配る。
// クライアントの所有者は呼び出し側。
type RedisBus struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisBus(rdb *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{rdb: rdb, channel: CartSyncTopic, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, ev repo.CartEvent) error {
	payload, err := repo.EncodeCartEvent(ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan repo.CartEvent, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// 購読完了を待つ
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	msgs := sub.Channel()
	out := make(chan repo.CartEvent, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := repo.DecodeCartEvent([]byte(m.Payload))
				if err != nil {
					b.logger.Warn("drop cart event", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error {
	return nil
}
