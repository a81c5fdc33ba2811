package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"
)

const (
	// この間隔を過ぎたらツアーとチケット表を読み直す
	selectionReloadInterval = 10 * time.Minute
	// 触られないままの選択はこの時間で捨てる（ページを離れた扱い）
	selectionIdleTimeout = 30 * time.Minute
)

// BookingUsecase はツアー詳細ページの選択状態と、カートへの受け渡し。
type BookingUsecase struct {
	tours repo.TourRepository
	carts *CartSessions
	clock Clock

	mu         sync.Mutex
	selections map[selectionKey]*selectionSession
	lastSweep  time.Time
}

type selectionKey struct {
	userID int64
	tourID string
}

type selectionSession struct {
	sel *TicketSelection

	// 以下はBookingUsecase.muで守る
	tour     model.TourDetail
	loadedAt time.Time
	lastUsed time.Time
}

func NewBookingUsecase(tours repo.TourRepository, carts *CartSessions, clock Clock) *BookingUsecase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &BookingUsecase{
		tours:      tours,
		carts:      carts,
		clock:      clock,
		selections: map[selectionKey]*selectionSession{},
	}
}

// 枚数変更の入力
type QuantityChangeInput struct {
	TicketTypeID string
	NetCost      int64
	Increment    bool
}

func (u *BookingUsecase) GetSelection(ctx context.Context, userID int64, tourID string) (TicketSelectionView, error) {
	ss, err := u.session(ctx, userID, tourID)
	if err != nil {
		return TicketSelectionView{}, err
	}
	return ss.sel.View(), nil
}

// 日付選択（nilで解除）。選べない日は400。
func (u *BookingUsecase) SelectDate(ctx context.Context, userID int64, tourID string, date *time.Time) (TicketSelectionView, error) {
	ss, err := u.session(ctx, userID, tourID)
	if err != nil {
		return TicketSelectionView{}, err
	}
	if date != nil && !ss.sel.IsSelectable(*date) {
		return TicketSelectionView{}, NewHTTPError(http.StatusBadRequest, "date not available")
	}
	ss.sel.HandleDateSelect(date)
	return ss.sel.View(), nil
}

func (u *BookingUsecase) ConfirmDate(ctx context.Context, userID int64, tourID string) (TicketSelectionView, error) {
	ss, err := u.session(ctx, userID, tourID)
	if err != nil {
		return TicketSelectionView{}, err
	}
	ss.sel.HandleConfirmDateSelection()
	return ss.sel.View(), nil
}

func (u *BookingUsecase) ChangeQuantity(ctx context.Context, userID int64, tourID string, in QuantityChangeInput) (TicketSelectionView, error) {
	if strings.TrimSpace(in.TicketTypeID) == "" {
		return TicketSelectionView{}, NewHTTPError(http.StatusBadRequest, "invalid ticket_type_id")
	}
	if in.NetCost < 0 {
		return TicketSelectionView{}, NewHTTPError(http.StatusBadRequest, "invalid net_cost")
	}
	ss, err := u.session(ctx, userID, tourID)
	if err != nil {
		return TicketSelectionView{}, err
	}
	ss.sel.HandleQuantityChange(in.TicketTypeID, in.NetCost, in.Increment)
	return ss.sel.View(), nil
}

func (u *BookingUsecase) TogglePackage(ctx context.Context, userID int64, tourID string) (TicketSelectionView, error) {
	ss, err := u.session(ctx, userID, tourID)
	if err != nil {
		return TicketSelectionView{}, err
	}
	ss.sel.TogglePackage()
	return ss.sel.View(), nil
}

func (u *BookingUsecase) ClearSelection(ctx context.Context, userID int64, tourID string) (TicketSelectionView, error) {
	ss, err := u.session(ctx, userID, tourID)
	if err != nil {
		return TicketSelectionView{}, err
	}
	ss.sel.ClearAll()
	return ss.sel.View(), nil
}

// 選択内容をカートへ入れて、選択はクリアする。
func (u *BookingUsecase) AddSelectionToCart(ctx context.Context, userID int64, tourID string) (model.CartState, error) {
	ss, tour, store, out, err := u.prepareCheckout(ctx, userID, tourID)
	if err != nil {
		return model.CartState{}, err
	}
	if !store.AddToCart(ctx, tour, out.TourScheduleID, out.Day, out.Tickets, out.Quantities) {
		return model.CartState{}, NewHTTPError(http.StatusBadRequest, "no tickets selected")
	}
	ss.sel.ClearAll()
	return store.State(), nil
}

// 選択内容で「今すぐ購入」
func (u *BookingUsecase) CheckoutSelection(ctx context.Context, userID int64, tourID string) (model.CartState, error) {
	_, tour, store, out, err := u.prepareCheckout(ctx, userID, tourID)
	if err != nil {
		return model.CartState{}, err
	}
	if !store.SetDirectCheckoutItem(ctx, tour, out.TourScheduleID, out.Day, out.Tickets, out.Quantities) {
		return model.CartState{}, NewHTTPError(http.StatusBadRequest, "no tickets selected")
	}
	return store.State(), nil
}

func (u *BookingUsecase) prepareCheckout(ctx context.Context, userID int64, tourID string) (*selectionSession, model.TourDetail, *CartStore, TicketSelectionOutput, error) {
	ss, err := u.session(ctx, userID, tourID)
	if err != nil {
		return nil, model.TourDetail{}, nil, TicketSelectionOutput{}, err
	}
	out, ok := ss.sel.Output()
	if !ok {
		return nil, model.TourDetail{}, nil, TicketSelectionOutput{}, NewHTTPError(http.StatusBadRequest, "date not selected")
	}
	// 選んだ後に日が進んで選べなくなった日は入れない
	if !ss.sel.DateSelectable() {
		return nil, model.TourDetail{}, nil, TicketSelectionOutput{}, NewHTTPError(http.StatusBadRequest, "date not available")
	}
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return nil, model.TourDetail{}, nil, TicketSelectionOutput{}, err
	}

	u.mu.Lock()
	tour := ss.tour.Clone()
	u.mu.Unlock()

	return ss, tour, store, out, nil
}

// 初回アクセスでツアー詳細とチケット表を読む。
// 再利用時は時刻で選べる日を計算し直し、古くなっていれば読み直す。
func (u *BookingUsecase) session(ctx context.Context, userID int64, tourID string) (*selectionSession, error) {
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	tourID = strings.TrimSpace(tourID)
	if tourID == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid tour id")
	}

	key := selectionKey{userID: userID, tourID: tourID}
	now := u.clock.Now()

	u.mu.Lock()
	u.evictIdleLocked(now)
	ss, ok := u.selections[key]
	fresh := ok && now.Sub(ss.loadedAt) < selectionReloadInterval
	if ok {
		ss.lastUsed = now
	}
	u.mu.Unlock()

	if fresh {
		ss.sel.Refresh()
		return ss, nil
	}

	// DBはロックの外で読む
	tour, schedule, err := u.loadTour(ctx, tourID)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if cur, ok := u.selections[key]; ok {
		cur.tour = tour
		cur.loadedAt = now
		cur.lastUsed = now
		cur.sel.SetTicketSchedule(schedule)
		cur.sel.Refresh()
		return cur, nil
	}

	sel := NewTicketSelection(u.clock)
	sel.SetTicketSchedule(schedule)

	ss = &selectionSession{sel: sel, tour: tour, loadedAt: now, lastUsed: now}
	u.selections[key] = ss
	return ss, nil
}

func (u *BookingUsecase) loadTour(ctx context.Context, tourID string) (model.TourDetail, []model.DailyTicketSchedule, error) {
	tour, err := u.tours.FindTourDetail(ctx, tourID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.TourDetail{}, nil, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.TourDetail{}, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	schedule, err := u.tours.ListDailySchedules(ctx, tourID)
	if err != nil {
		return model.TourDetail{}, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return tour, schedule, nil
}

// 放置された選択を捨てる（1分に1回まで）
func (u *BookingUsecase) evictIdleLocked(now time.Time) {
	if now.Sub(u.lastSweep) < time.Minute {
		return
	}
	u.lastSweep = now
	for k, ss := range u.selections {
		if now.Sub(ss.lastUsed) >= selectionIdleTimeout {
			delete(u.selections, k)
		}
	}
}

// 保持している選択の数
func (u *BookingUsecase) SessionCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.selections)
}
