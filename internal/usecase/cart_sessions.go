package usecase

import (
	"context"
	"net/http"
	"sync"
	"time"

	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"go.uber.org/zap"
)

type CartSessionsParams struct {
	Storage    repo.CartStorage
	Bus        repo.CartBus
	Notifier   Notifier
	Clock      Clock
	Scheduler  Scheduler
	Logger     *zap.Logger
	SessionTTL time.Duration
}

// ユーザーごとのCartStore（このプロセスが1タブに相当）
type CartSessions struct {
	p CartSessionsParams

	mu     sync.Mutex
	stores map[int64]*cartSession

	ctx    context.Context
	cancel context.CancelFunc
}

// readyが閉じるまでstore/errは読まない
type cartSession struct {
	ready chan struct{}
	store *CartStore
	err   error
	done  <-chan struct{}
}

func NewCartSessions(p CartSessionsParams) *CartSessions {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CartSessions{
		p:      p,
		stores: map[int64]*cartSession{},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Get はユーザーのカートを返す。無ければ保存先から復元して同期を始める。
// 復元はユーザーごとに1回だけ走り、他のユーザーは待たせない。
func (s *CartSessions) Get(ctx context.Context, userID int64) (*CartStore, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	s.mu.Lock()
	cs, ok := s.stores[userID]
	if !ok {
		cs = &cartSession{ready: make(chan struct{})}
		s.stores[userID] = cs
	}
	s.mu.Unlock()

	if ok {
		// 他のリクエストが復元中なら待つ
		select {
		case <-cs.ready:
		case <-ctx.Done():
			return nil, NewHTTPError(http.StatusServiceUnavailable, "cart not ready")
		}
	} else {
		s.open(ctx, userID, cs)
	}
	if cs.err != nil {
		return nil, cs.err
	}
	return cs.store, nil
}

func (s *CartSessions) open(ctx context.Context, userID int64, cs *cartSession) {
	defer close(cs.ready)

	store := NewCartStore(CartStoreParams{
		Key:        repo.CartStorageKey(userID),
		SessionTTL: s.p.SessionTTL,
		Storage:    s.p.Storage,
		Bus:        s.p.Bus,
		Notifier:   s.p.Notifier,
		Clock:      s.p.Clock,
		Scheduler:  s.p.Scheduler,
		Logger:     s.p.Logger,
	})
	if err := store.Restore(ctx); err != nil {
		s.p.Logger.Error("restore cart failed", zap.Int64("user_id", userID), zap.Error(err))
		s.fail(userID, cs, NewHTTPError(http.StatusInternalServerError, "storage error"))
		return
	}

	if s.p.Bus != nil {
		done, err := NewCartSync(store, s.p.Bus, s.p.Logger).Start(s.ctx)
		if err != nil {
			s.p.Logger.Error("start cart sync failed", zap.Int64("user_id", userID), zap.Error(err))
			s.fail(userID, cs, NewHTTPError(http.StatusInternalServerError, "sync error"))
			return
		}
		cs.done = done
	}
	cs.store = store
}

// 失敗した枠は消して、次のGetでやり直す
func (s *CartSessions) fail(userID int64, cs *cartSession, err error) {
	cs.err = err

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stores[userID] == cs {
		delete(s.stores, userID)
	}
}

// 全セッションの同期を止めてタイマーを解放する
func (s *CartSessions) Close() {
	s.cancel()

	s.mu.Lock()
	sessions := s.stores
	s.stores = map[int64]*cartSession{}
	s.mu.Unlock()

	for _, cs := range sessions {
		<-cs.ready
		if cs.store == nil {
			continue
		}
		if cs.done != nil {
			<-cs.done
		}
		cs.store.Close()
	}
}
