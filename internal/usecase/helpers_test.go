package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"
	"github.com/dokkazy/dtp-frontend-sub000/internal/usecase"

	"github.com/stretchr/testify/mock"
)

// =====================
// 時計・タイマー
// =====================

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

// 進められる時計
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *manualTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// AfterFuncを記録するだけ。fireLatestで発火させる。
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) usecase.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *manualScheduler) latest() *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// 止まっていない最新のタイマーを発火
func (s *manualScheduler) fireLatest() bool {
	t := s.latest()
	if t == nil || t.isStopped() {
		return false
	}
	t.f()
	return true
}

// =====================
// Mocks
// =====================

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, n usecase.Notice) {
	m.Called(ctx, n)
}

type TourRepoMock struct{ mock.Mock }

func (m *TourRepoMock) FindTourDetail(ctx context.Context, tourID string) (model.TourDetail, error) {
	args := m.Called(ctx, tourID)
	t, _ := args.Get(0).(model.TourDetail)
	return t, args.Error(1)
}

func (m *TourRepoMock) ListDailySchedules(ctx context.Context, tourID string) ([]model.DailyTicketSchedule, error) {
	args := m.Called(ctx, tourID)
	s, _ := args.Get(0).([]model.DailyTicketSchedule)
	return s, args.Error(1)
}

var _ repo.TourRepository = (*TourRepoMock)(nil)

// 保存内容をそのまま覚える
type recordingStorage struct {
	mu      sync.Mutex
	saved   map[string]model.CartState
	ttls    map[string]time.Duration
	deleted []string
	saveErr error
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{saved: map[string]model.CartState{}, ttls: map[string]time.Duration{}}
}

func (s *recordingStorage) Load(ctx context.Context, key string) (model.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.saved[key]
	if !ok {
		return model.CartState{}, repo.ErrNotFound
	}
	return st.Clone(), nil
}

func (s *recordingStorage) Save(ctx context.Context, key string, state model.CartState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[key] = state.Clone()
	s.ttls[key] = ttl
	return nil
}

func (s *recordingStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	if _, ok := s.saved[key]; !ok {
		return repo.ErrNotFound
	}
	delete(s.saved, key)
	return nil
}

func (s *recordingStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saved[key]
	return ok
}

// Publishを全部記録し、購読者にも流す
type recordingBus struct {
	mu        sync.Mutex
	published []repo.CartEvent
	subs      []chan repo.CartEvent
}

func (b *recordingBus) Publish(ctx context.Context, ev repo.CartEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, ev)
	for _, ch := range b.subs {
		ch <- ev
	}
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context) (<-chan repo.CartEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan repo.CartEvent, 64)
	b.subs = append(b.subs, ch)
	return ch, nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) events() []repo.CartEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]repo.CartEvent{}, b.published...)
}

// =====================
// fixtures
// =====================

func tourA() model.TourDetail {
	return model.TourDetail{ID: "tourA", Title: "Ha Long Bay Cruise", CompanyName: "Bay Co"}
}

func adultTicket(available int) model.TicketOption {
	return model.TicketOption{TicketTypeID: "t1", TicketKind: model.TicketKindAdult, NetCost: 100000, AvailableTicket: available}
}

func childTicket(available int) model.TicketOption {
	return model.TicketOption{TicketTypeID: "t2", TicketKind: model.TicketKindChild, NetCost: 50000, AvailableTicket: available}
}

type storeEnv struct {
	store     *usecase.CartStore
	storage   *recordingStorage
	bus       *recordingBus
	scheduler *manualScheduler
	notifier  *NotifierMock
}

func newStoreEnv() *storeEnv {
	env := &storeEnv{
		storage:   newRecordingStorage(),
		bus:       &recordingBus{},
		scheduler: &manualScheduler{},
		notifier:  &NotifierMock{},
	}
	env.store = usecase.NewCartStore(usecase.CartStoreParams{
		Key:        "cart-storage:1",
		TabID:      "tab-a",
		SessionTTL: 48 * time.Hour,
		Storage:    env.storage,
		Bus:        env.bus,
		Notifier:   env.notifier,
		Clock:      fixedClock{now: testNow},
		Scheduler:  env.scheduler,
	})
	return env
}

// 全明細のtotalPriceが明細から計算した値と一致するか
func totalsConsistent(st model.CartState) bool {
	for _, it := range st.Cart {
		var sum int64
		for _, t := range it.Tickets {
			sum += t.NetCost * int64(t.Quantity)
		}
		if sum != it.TotalPrice {
			return false
		}
	}
	return true
}
