package usecase

import (
	"context"
	"fmt"

	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"go.uber.org/zap"
)

// CartSync は他タブの変更を受けて、自タブの状態を丸ごと置き換える。
// マージはしない（版の新しい方が勝つ）。
type CartSync struct {
	store  *CartStore
	bus    repo.CartBus
	logger *zap.Logger
}

func NewCartSync(store *CartStore, bus repo.CartBus, logger *zap.Logger) *CartSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartSync{
		store:  store,
		bus:    bus,
		logger: logger.With(zap.String("cart_key", store.Key()), zap.String("tab_id", store.TabID())),
	}
}

// Run はctxが終わるか購読が閉じるまでブロックする。
func (s *CartSync) Run(ctx context.Context) error {
	events, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe cart bus: %w", err)
	}
	return s.consume(ctx, events)
}

// Start は購読までを同期で済ませ、受信はgoroutineで回す。
// 返すチャネルは受信ループが終わると閉じる。
func (s *CartSync) Start(ctx context.Context) (<-chan struct{}, error) {
	events, err := s.bus.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe cart bus: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.consume(ctx, events); err != nil && ctx.Err() == nil {
			s.logger.Error("cart sync stopped", zap.Error(err))
		}
	}()
	return done, nil
}

func (s *CartSync) consume(ctx context.Context, events <-chan repo.CartEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.apply(ev)
		}
	}
}

func (s *CartSync) apply(ev repo.CartEvent) {
	// 別スロット・自分の書き込み・追い越された古い版は無視
	if !s.store.ApplyRemote(ev) {
		if ev.Key == s.store.Key() && ev.TabID != s.store.TabID() {
			s.logger.Debug("stale cart event dropped",
				zap.String("from_tab", ev.TabID),
				zap.Int64("version", ev.Version),
			)
		}
		return
	}
	s.logger.Debug("cart state replaced from another tab",
		zap.String("from_tab", ev.TabID),
		zap.Int64("version", ev.Version),
		zap.Int("items", len(ev.State.Cart)),
	)
}
