package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	"github.com/dokkazy/dtp-frontend-sub000/internal/infra/bus"
	infraRepo "github.com/dokkazy/dtp-frontend-sub000/internal/infra/repository"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"
	"github.com/dokkazy/dtp-frontend-sub000/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBus struct{}

func (failingBus) Publish(ctx context.Context, ev repo.CartEvent) error { return errors.New("down") }
func (failingBus) Subscribe(ctx context.Context) (<-chan repo.CartEvent, error) {
	return nil, errors.New("down")
}
func (failingBus) Close() error { return nil }

// 決まったイベントを流して閉じる
type staticBus struct{ events []repo.CartEvent }

func (b staticBus) Publish(ctx context.Context, ev repo.CartEvent) error { return nil }
func (b staticBus) Subscribe(ctx context.Context) (<-chan repo.CartEvent, error) {
	ch := make(chan repo.CartEvent, len(b.events))
	for _, ev := range b.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}
func (b staticBus) Close() error { return nil }

func newTab(t *testing.T, tabID string, storage repo.CartStorage, b repo.CartBus) *usecase.CartStore {
	t.Helper()
	store := usecase.NewCartStore(usecase.CartStoreParams{
		Key:       "cart-storage:7",
		TabID:     tabID,
		Storage:   storage,
		Bus:       b,
		Clock:     fixedClock{now: testNow},
		Scheduler: &manualScheduler{},
	})
	t.Cleanup(store.Close)
	return store
}

// 2タブで保存先とバスを共有：Aの変更がBにそのまま反映される
func TestCartSync_TwoTabs_FullStateReplacement(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage := infraRepo.NewMemoryCartStorage(func() time.Time { return testNow })
	b := bus.NewGoChannelBus(nil)
	defer b.Close()

	tabA := newTab(t, "tab-a", storage, b)
	tabB := newTab(t, "tab-b", storage, b)

	_, err := usecase.NewCartSync(tabA, b, nil).Start(ctx)
	require.NoError(t, err)
	_, err = usecase.NewCartSync(tabB, b, nil).Start(ctx)
	require.NoError(t, err)

	tabA.AddToCart(ctx, tourA(), "sched1", "25-10-2026", []model.TicketOption{adultTicket(5)}, map[string]int{"t1": 2})

	assert.Eventually(t, func() bool {
		return tabB.GetCartCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, tabA.State().Cart, tabB.State().Cart)

	persisted, err := storage.Load(ctx, "cart-storage:7")
	require.NoError(t, err)
	assert.Equal(t, tabA.State().Cart, persisted.Cart)

	// Bの変更も戻ってくる（最後に書いた方が勝つ）
	tabB.ClearCart(ctx)
	assert.Eventually(t, func() bool {
		return tabA.GetCartCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// 自分の書き込み・別スロットは無視する
func TestCartSync_IgnoresOwnAndForeignEvents(t *testing.T) {
	store := newTab(t, "tab-a", nil, nil)

	item := func(id string) model.CartState {
		return model.CartState{Cart: []model.CartItem{{
			TourScheduleID: id,
			Day:            "25-10-2026",
			Tickets:        []model.TicketLine{{TicketTypeID: "t1", NetCost: 10, Quantity: 1, AvailableTicket: 1}},
		}}}
	}

	b := staticBus{events: []repo.CartEvent{
		{Key: "cart-storage:7", TabID: "tab-b", State: item("other-tab")},
		{Key: "cart-storage:7", TabID: "tab-a", State: item("own")},
		{Key: "cart-storage:8", TabID: "tab-x", State: item("foreign")},
	}}

	// 全部流し終わるとRunは戻る
	require.NoError(t, usecase.NewCartSync(store, b, nil).Run(context.Background()))

	require.Equal(t, 1, store.GetCartCount())
	it, ok := store.GetItemByID("other-tab")
	require.True(t, ok)
	// 合計は受信側で計算し直す
	assert.Equal(t, int64(10), it.TotalPrice)
}

// 連続した書き込みが前後して届いても、最後の状態に落ち着く
func TestCartSync_Burst_SettlesOnLastWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage := infraRepo.NewMemoryCartStorage(func() time.Time { return testNow })
	b := bus.NewGoChannelBus(nil)
	defer b.Close()

	tabA := newTab(t, "tab-a", storage, b)
	tabB := newTab(t, "tab-b", storage, b)

	_, err := usecase.NewCartSync(tabA, b, nil).Start(ctx)
	require.NoError(t, err)
	_, err = usecase.NewCartSync(tabB, b, nil).Start(ctx)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		tabA.AddToCart(ctx, tourA(), fmt.Sprintf("sched-%02d", i), "25-10-2026", []model.TicketOption{adultTicket(5)}, map[string]int{"t1": 1})
	}

	assert.Eventually(t, func() bool {
		return tabB.GetCartCount() == 20
	}, 2*time.Second, 10*time.Millisecond)

	// 遅れて届いた古い版で巻き戻らない
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 20, tabB.GetCartCount())
	assert.Equal(t, tabA.State().Cart, tabB.State().Cart)
}

// 版が古いイベントは捨てる。同じ版ならタブIDの大きい方
func TestCartSync_DropsOlderVersions(t *testing.T) {
	store := newTab(t, "tab-a", nil, nil)

	state := func(ids ...string) model.CartState {
		st := model.CartState{}
		for _, id := range ids {
			st.Cart = append(st.Cart, model.CartItem{
				TourScheduleID: id,
				Day:            "25-10-2026",
				Tickets:        []model.TicketLine{{TicketTypeID: "t1", NetCost: 10, Quantity: 1, AvailableTicket: 1}},
			})
		}
		return st
	}

	tests := []struct {
		name   string
		events []repo.CartEvent
		want   []string
	}{
		{
			name: "newer then older",
			events: []repo.CartEvent{
				{Key: "cart-storage:7", TabID: "tab-b", Version: 5, State: state("s1", "s2")},
				{Key: "cart-storage:7", TabID: "tab-b", Version: 3, State: state("s1")},
			},
			want: []string{"s1", "s2"},
		},
		{
			name: "same version tie broken by tab id",
			events: []repo.CartEvent{
				{Key: "cart-storage:7", TabID: "tab-c", Version: 9, State: state("c")},
				{Key: "cart-storage:7", TabID: "tab-b", Version: 9, State: state("b")},
			},
			want: []string{"c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, usecase.NewCartSync(store, staticBus{events: tt.events}, nil).Run(context.Background()))

			got := []string{}
			for _, it := range store.State().Cart {
				got = append(got, it.TourScheduleID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// ローカルの書き込みより古い版は取り込まない
func TestCartStore_ApplyRemote_KeepsNewerLocalWrite(t *testing.T) {
	store := newTab(t, "tab-a", nil, nil)
	ctx := context.Background()

	store.AddToCart(ctx, tourA(), "local", "25-10-2026", []model.TicketOption{adultTicket(5)}, map[string]int{"t1": 1})

	applied := store.ApplyRemote(repo.CartEvent{
		Key:     "cart-storage:7",
		TabID:   "tab-b",
		Version: 1,
		State:   model.EmptyCartState(),
	})
	assert.False(t, applied)
	assert.Equal(t, 1, store.GetCartCount())

	applied = store.ApplyRemote(repo.CartEvent{
		Key:     "cart-storage:7",
		TabID:   "tab-b",
		Version: testNow.UnixNano() + 1,
		State:   model.EmptyCartState(),
	})
	assert.True(t, applied)
	assert.Equal(t, 0, store.GetCartCount())
}

// Startの受信ループはctxで止まる
func TestCartSync_Start_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newTab(t, "tab-a", nil, nil)

	done, err := usecase.NewCartSync(store, &recordingBus{}, nil).Start(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sync loop did not stop")
	}
}

func TestCartSync_Start_SubscribeError(t *testing.T) {
	store := newTab(t, "tab-a", nil, nil)

	_, err := usecase.NewCartSync(store, failingBus{}, nil).Start(context.Background())
	assert.Error(t, err)
}

// 購読が閉じたらRunは戻る
func TestCartSync_Run_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newTab(t, "tab-a", nil, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- usecase.NewCartSync(store, &recordingBus{}, nil).Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
