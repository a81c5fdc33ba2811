package usecase

import (
	"context"
	"net/http"
	"strings"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
)

// CartUsecase は /cart の業務ロジック。
// 状態はユーザーごとのCartStoreが持つ。
type CartUsecase struct {
	carts *CartSessions
}

func NewCartUsecase(carts *CartSessions) *CartUsecase {
	return &CartUsecase{carts: carts}
}

// CartResponse はカート状態＋集計。
type CartResponse struct {
	model.CartState
	Total int64 `json:"total"`
	Count int   `json:"count"`

	// UpdateQuantityで確認が必要な時だけ入る
	Confirmation *QuantityResult `json:"confirmation,omitempty"`
	Exceeded     bool            `json:"exceeded,omitempty"`
	// SetQuantityDirectlyなどのお知らせ
	Notices []Notice `json:"notices,omitempty"`
}

type RemovePaymentInput struct {
	Cancel        bool
	PaymentStatus model.PaymentStatus
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	return buildCartResponse(store), nil
}

// 別タブの状態で置き換える（保存はしない）
func (u *CartUsecase) ReplaceState(ctx context.Context, userID int64, st model.CartState) (CartResponse, error) {
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	store.SetCartState(st)
	return buildCartResponse(store), nil
}

func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartResponse, error) {
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	store.ClearCart(ctx)
	return buildCartResponse(store), nil
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, tourScheduleID string) (CartResponse, error) {
	store, err := u.storeFor(ctx, userID, tourScheduleID)
	if err != nil {
		return CartResponse{}, err
	}
	store.RemoveFromCart(ctx, tourScheduleID)
	return buildCartResponse(store), nil
}

func (u *CartUsecase) UpdateQuantity(ctx context.Context, userID int64, tourScheduleID, ticketTypeID string, action QuantityAction) (CartResponse, error) {
	if action != QuantityIncrease && action != QuantityDecrease {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid action")
	}
	store, err := u.ticketStoreFor(ctx, userID, tourScheduleID, ticketTypeID)
	if err != nil {
		return CartResponse{}, err
	}

	res := store.UpdateQuantity(ctx, tourScheduleID, ticketTypeID, action)

	out := buildCartResponse(store)
	if res.NeedConfirmation {
		out.Confirmation = &res
	}
	out.Exceeded = res.IsExceeded
	return out, nil
}

func (u *CartUsecase) RemoveTicket(ctx context.Context, userID int64, tourScheduleID, ticketTypeID string) (CartResponse, error) {
	store, err := u.ticketStoreFor(ctx, userID, tourScheduleID, ticketTypeID)
	if err != nil {
		return CartResponse{}, err
	}
	store.RemoveTicket(ctx, tourScheduleID, ticketTypeID)
	return buildCartResponse(store), nil
}

// 範囲外は丸めて、お知らせをレスポンスに載せる
func (u *CartUsecase) SetQuantity(ctx context.Context, userID int64, tourScheduleID, ticketTypeID string, quantity int) (CartResponse, error) {
	store, err := u.ticketStoreFor(ctx, userID, tourScheduleID, ticketTypeID)
	if err != nil {
		return CartResponse{}, err
	}

	ctx, notices := ContextWithNotices(ctx)
	store.SetQuantityDirectly(ctx, tourScheduleID, ticketTypeID, quantity)

	out := buildCartResponse(store)
	out.Notices = notices.Notices()
	return out, nil
}

func (u *CartUsecase) SelectItem(ctx context.Context, userID int64, tourScheduleID string, checked bool) (CartResponse, error) {
	store, err := u.storeFor(ctx, userID, tourScheduleID)
	if err != nil {
		return CartResponse{}, err
	}
	store.SelectItem(ctx, tourScheduleID, checked)
	return buildCartResponse(store), nil
}

func (u *CartUsecase) SelectAll(ctx context.Context, userID int64, checked bool) (CartResponse, error) {
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	store.ToggleSelectAll(ctx, checked)
	return buildCartResponse(store), nil
}

func (u *CartUsecase) RemoveSelected(ctx context.Context, userID int64) (CartResponse, error) {
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	store.RemoveSelectedItems(ctx)
	return buildCartResponse(store), nil
}

// 開催日が過ぎた明細は決済に回せない
func (u *CartUsecase) SelectForPayment(ctx context.Context, userID int64, tourScheduleID string) (CartResponse, error) {
	store, err := u.storeFor(ctx, userID, tourScheduleID)
	if err != nil {
		return CartResponse{}, err
	}
	if !store.SelectForPayment(ctx, tourScheduleID) {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "tour date has passed")
	}
	return buildCartResponse(store), nil
}

func (u *CartUsecase) RemovePaymentItem(ctx context.Context, userID int64, in RemovePaymentInput) (CartResponse, error) {
	switch in.PaymentStatus {
	case "", model.PaymentStatusPending, model.PaymentStatusProcessing, model.PaymentStatusPaid, model.PaymentStatusCancelled:
	default:
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid payment_status")
	}
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	store.RemovePaymentItem(ctx, in.Cancel, in.PaymentStatus)
	return buildCartResponse(store), nil
}

func (u *CartUsecase) ClearDirectCheckout(ctx context.Context, userID int64) (CartResponse, error) {
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return CartResponse{}, err
	}
	store.ClearDirectCheckoutItem(ctx)
	return buildCartResponse(store), nil
}

// 明細が無ければ404
func (u *CartUsecase) storeFor(ctx context.Context, userID int64, tourScheduleID string) (*CartStore, error) {
	if strings.TrimSpace(tourScheduleID) == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid tour_schedule_id")
	}
	store, err := u.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := store.GetItemByID(tourScheduleID); !ok {
		return nil, NewHTTPError(http.StatusNotFound, "not found")
	}
	return store, nil
}

func (u *CartUsecase) ticketStoreFor(ctx context.Context, userID int64, tourScheduleID, ticketTypeID string) (*CartStore, error) {
	if strings.TrimSpace(ticketTypeID) == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid ticket_type_id")
	}
	store, err := u.storeFor(ctx, userID, tourScheduleID)
	if err != nil {
		return nil, err
	}
	item, _ := store.GetItemByID(tourScheduleID)
	if item.TicketIndex(ticketTypeID) < 0 {
		return nil, NewHTTPError(http.StatusNotFound, "not found")
	}
	return store, nil
}

func buildCartResponse(store *CartStore) CartResponse {
	st := store.State()
	var total int64
	for _, it := range st.Cart {
		total += it.TotalPrice
	}
	return CartResponse{
		CartState: st,
		Total:     total,
		Count:     len(st.Cart),
	}
}
