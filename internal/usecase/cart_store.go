package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// セッション期限のデフォルト（7日）
const DefaultCartSessionTTL = 7 * 24 * time.Hour

type QuantityAction string

const (
	QuantityIncrease QuantityAction = "increase"
	QuantityDecrease QuantityAction = "decrease"
)

// UpdateQuantityの結果。
// ゼロ値なら「変更した」か「何もしなかった」。
type QuantityResult struct {
	NeedConfirmation bool             `json:"need_confirmation,omitempty"`
	IsLastTicket     bool             `json:"is_last_ticket,omitempty"`
	IsExceeded       bool             `json:"is_exceeded,omitempty"`
	TourTitle        string           `json:"tour_title,omitempty"`
	TicketKind       model.TicketKind `json:"ticket_kind,omitempty"`
	TourScheduleID   string           `json:"tour_schedule_id,omitempty"`
	TicketTypeID     string           `json:"ticket_type_id,omitempty"`
}

type CartStoreParams struct {
	Key        string
	TabID      string
	SessionTTL time.Duration

	Storage   repo.CartStorage
	Bus       repo.CartBus
	Notifier  Notifier
	Clock     Clock
	Scheduler Scheduler
	Logger    *zap.Logger
}

// CartStore は1タブ分のカート。
// 変更のたびに保存→ブロードキャストする。
type CartStore struct {
	mu sync.Mutex

	key   string
	tabID string
	ttl   time.Duration

	storage   repo.CartStorage
	bus       repo.CartBus
	notifier  Notifier
	clock     Clock
	scheduler Scheduler
	logger    *zap.Logger

	cart      []model.CartItem
	selected  []string
	selectAll bool
	paymentID string
	direct    *model.CartItem

	// 最後に反映した書き込みの版とタブ。(version, versionTab)の大きい方が勝つ。
	version    int64
	versionTab string

	expiry Timer
}

func NewCartStore(p CartStoreParams) *CartStore {
	if p.TabID == "" {
		p.TabID = uuid.NewString()
	}
	if p.SessionTTL <= 0 {
		p.SessionTTL = DefaultCartSessionTTL
	}
	if p.Notifier == nil {
		p.Notifier = NopNotifier{}
	}
	if p.Clock == nil {
		p.Clock = SystemClock{}
	}
	if p.Scheduler == nil {
		p.Scheduler = SystemScheduler{}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	return &CartStore{
		key:       p.Key,
		tabID:     p.TabID,
		ttl:       p.SessionTTL,
		storage:   p.Storage,
		bus:       p.Bus,
		notifier:  p.Notifier,
		clock:     p.Clock,
		scheduler: p.Scheduler,
		logger:    p.Logger.With(zap.String("cart_key", p.Key), zap.String("tab_id", p.TabID)),
		cart:      []model.CartItem{},
		selected:  []string{},
	}
}

func (s *CartStore) Key() string   { return s.key }
func (s *CartStore) TabID() string { return s.tabID }

// 保存済みの状態を読み込む（ページ読み込み時）
func (s *CartStore) Restore(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	st, err := s.storage.Load(ctx, s.key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore cart %s: %w", s.key, err)
	}
	s.SetCartState(st)
	return nil
}

// 期限タイマーを止める
func (s *CartStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

// AddToCart は数量>0のチケットだけで明細を作り、同じ日程があれば丸ごと置き換える。
// 1枚も選ばれていなければ何もしない。
func (s *CartStore) AddToCart(ctx context.Context, tour model.TourDetail, tourScheduleID string, day string, tickets []model.TicketOption, quantities map[string]int) bool {
	item, ok := buildCartItem(tour, tourScheduleID, day, tickets, quantities)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(tourScheduleID); i >= 0 {
		s.cart[i] = item
	} else {
		s.cart = append(s.cart, item)
	}
	s.recomputeSelectAllLocked()

	s.commitLocked(ctx)
	return true
}

// カートを空にする（選択・決済対象もリセット）
func (s *CartStore) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = []model.CartItem{}
	s.selected = []string{}
	s.selectAll = false
	s.paymentID = ""

	s.commitLocked(ctx)
}

func (s *CartStore) RemoveFromCart(ctx context.Context, tourScheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeItemsLocked(tourScheduleID) {
		return
	}
	s.commitLocked(ctx)
}

// UpdateQuantity はチケット数を±1する。
// 最後の1枚を減らす時は変更せず確認を求める。上限なら変更せずIsExceeded。
func (s *CartStore) UpdateQuantity(ctx context.Context, tourScheduleID, ticketTypeID string, action QuantityAction) QuantityResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(tourScheduleID)
	if i < 0 {
		return QuantityResult{}
	}
	item := &s.cart[i]
	j := item.TicketIndex(ticketTypeID)
	if j < 0 {
		return QuantityResult{}
	}
	t := &item.Tickets[j]

	switch action {
	case QuantityIncrease:
		if t.Quantity >= t.AvailableTicket {
			return QuantityResult{IsExceeded: true}
		}
		t.Quantity++
	case QuantityDecrease:
		if t.Quantity == 1 {
			return QuantityResult{
				NeedConfirmation: true,
				IsLastTicket:     len(item.Tickets) == 1,
				TourTitle:        item.Tour.Title,
				TicketKind:       t.TicketKind,
				TourScheduleID:   tourScheduleID,
				TicketTypeID:     ticketTypeID,
			}
		}
		if t.Quantity <= 0 {
			return QuantityResult{}
		}
		t.Quantity--
	default:
		return QuantityResult{}
	}

	item.Recalculate()
	s.commitLocked(ctx)
	return QuantityResult{}
}

// 明細から1チケット種別を外す。最後の1種別なら明細ごと消す。
func (s *CartStore) RemoveTicket(ctx context.Context, tourScheduleID, ticketTypeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(tourScheduleID)
	if i < 0 {
		return
	}
	item := &s.cart[i]
	j := item.TicketIndex(ticketTypeID)
	if j < 0 {
		return
	}

	if len(item.Tickets) == 1 {
		s.removeItemsLocked(tourScheduleID)
	} else {
		item.Tickets = append(item.Tickets[:j:j], item.Tickets[j+1:]...)
		item.Recalculate()
	}
	s.commitLocked(ctx)
}

// 入力欄からの直接指定。1〜在庫数に丸める（0では消さない）。
func (s *CartStore) SetQuantityDirectly(ctx context.Context, tourScheduleID, ticketTypeID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(tourScheduleID)
	if i < 0 {
		return
	}
	item := &s.cart[i]
	j := item.TicketIndex(ticketTypeID)
	if j < 0 {
		return
	}
	t := &item.Tickets[j]

	if quantity < 1 {
		quantity = 1
	}
	if quantity > t.AvailableTicket {
		quantity = t.AvailableTicket
		s.notifier.Notify(ctx, Notice{
			Level:   NoticeWarning,
			Message: fmt.Sprintf("Only %d tickets left for this ticket type", t.AvailableTicket),
		})
	}
	t.Quantity = quantity

	item.Recalculate()
	s.commitLocked(ctx)
}

func (s *CartStore) SelectItem(ctx context.Context, tourScheduleID string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(tourScheduleID) < 0 {
		return
	}

	if checked {
		if !contains(s.selected, tourScheduleID) {
			s.selected = append(s.selected, tourScheduleID)
		}
	} else {
		s.selected = without(s.selected, tourScheduleID)
	}
	s.recomputeSelectAllLocked()

	s.commitLocked(ctx)
}

func (s *CartStore) ToggleSelectAll(ctx context.Context, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = []string{}
	if checked {
		for _, it := range s.cart {
			s.selected = append(s.selected, it.TourScheduleID)
		}
	}
	s.recomputeSelectAllLocked()

	s.commitLocked(ctx)
}

func (s *CartStore) RemoveSelectedItems(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeItemsLocked(append([]string{}, s.selected...)...)
	s.selected = []string{}
	s.selectAll = false

	s.commitLocked(ctx)
}

// 決済対象にする。開催日が過ぎていれば何もしない。
func (s *CartStore) SelectForPayment(ctx context.Context, tourScheduleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(tourScheduleID)
	if i < 0 {
		return false
	}
	if s.isExpiredLocked(s.cart[i].Day) {
		return false
	}

	s.paymentID = tourScheduleID
	s.direct = nil

	s.commitLocked(ctx)
	return true
}

// 決済後の後始末。
// cancel=true: 明細を削除 / PAID: 明細を削除 / それ以外: 決済対象を外すだけ
func (s *CartStore) RemovePaymentItem(ctx context.Context, cancel bool, status model.PaymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paymentID != "" && (cancel || status == model.PaymentStatusPaid) {
		s.removeItemsLocked(s.paymentID)
	}
	s.paymentID = ""

	s.commitLocked(ctx)
}

// カートを通さない「今すぐ購入」
func (s *CartStore) SetDirectCheckoutItem(ctx context.Context, tour model.TourDetail, tourScheduleID string, day string, tickets []model.TicketOption, quantities map[string]int) bool {
	item, ok := buildCartItem(tour, tourScheduleID, day, tickets, quantities)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.direct = &item
	s.paymentID = ""

	s.commitLocked(ctx)
	return true
}

func (s *CartStore) ClearDirectCheckoutItem(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.direct == nil {
		return
	}
	s.direct = nil

	s.commitLocked(ctx)
}

// SetCartState は他タブから来た状態で丸ごと置き換える。
// 保存・配信・タイマーリセットはしない。
func (s *CartStore) SetCartState(st model.CartState) {
	st = st.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(st)
}

// ApplyRemote は他タブのイベントを、既に反映した書き込みより新しい時だけ取り込む。
// 配送順が入れ替わっても最後に書いた状態に落ち着く。
func (s *CartStore) ApplyRemote(ev repo.CartEvent) bool {
	if ev.Key != s.key || ev.TabID == s.tabID {
		return false
	}
	st := ev.State.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !newerVersion(ev.Version, ev.TabID, s.version, s.versionTab) {
		return false
	}
	s.version = ev.Version
	s.versionTab = ev.TabID
	s.setStateLocked(st)
	return true
}

func (s *CartStore) setStateLocked(st model.CartState) {
	s.cart = make([]model.CartItem, 0, len(st.Cart))
	for _, it := range st.Cart {
		if s.indexLocked(it.TourScheduleID) >= 0 {
			continue
		}
		it.Recalculate()
		s.cart = append(s.cart, it)
	}

	s.selected = []string{}
	for _, id := range st.SelectedItems {
		if s.indexLocked(id) >= 0 && !contains(s.selected, id) {
			s.selected = append(s.selected, id)
		}
	}
	s.selectAll = st.SelectAll && len(s.selected) == len(s.cart) && len(s.cart) > 0

	s.paymentID = ""
	if st.PaymentItem != nil && s.indexLocked(st.PaymentItem.TourScheduleID) >= 0 {
		s.paymentID = st.PaymentItem.TourScheduleID
	}

	s.direct = st.DirectCheckoutItem
	if s.direct != nil {
		s.direct.Recalculate()
	}
}

func (s *CartStore) GetItemByID(tourScheduleID string) (model.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(tourScheduleID)
	if i < 0 {
		return model.CartItem{}, false
	}
	return s.cart[i].Clone(), true
}

func (s *CartStore) GetCartTotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, it := range s.cart {
		total += it.TotalPrice
	}
	return total
}

func (s *CartStore) GetCartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cart)
}

// 現在の状態のコピー
func (s *CartStore) State() model.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *CartStore) PaymentItem() *model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentItemLocked()
}

func (s *CartStore) DirectCheckoutItem() *model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.direct == nil {
		return nil
	}
	d := s.direct.Clone()
	return &d
}

func (s *CartStore) stateLocked() model.CartState {
	st := model.CartState{
		Cart:          make([]model.CartItem, 0, len(s.cart)),
		SelectedItems: append([]string{}, s.selected...),
		SelectAll:     s.selectAll,
		PaymentItem:   s.paymentItemLocked(),
	}
	for _, it := range s.cart {
		st.Cart = append(st.Cart, it.Clone())
	}
	if s.direct != nil {
		d := s.direct.Clone()
		st.DirectCheckoutItem = &d
	}
	return st
}

// paymentItemは常にカート内の明細を指す
func (s *CartStore) paymentItemLocked() *model.CartItem {
	if s.paymentID == "" {
		return nil
	}
	i := s.indexLocked(s.paymentID)
	if i < 0 {
		return nil
	}
	p := s.cart[i].Clone()
	return &p
}

func (s *CartStore) indexLocked(tourScheduleID string) int {
	for i := range s.cart {
		if s.cart[i].TourScheduleID == tourScheduleID {
			return i
		}
	}
	return -1
}

// 明細を消して、選択と決済対象からも外す
func (s *CartStore) removeItemsLocked(ids ...string) bool {
	if len(ids) == 0 {
		return false
	}
	kept := make([]model.CartItem, 0, len(s.cart))
	removed := false
	for _, it := range s.cart {
		if contains(ids, it.TourScheduleID) {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if !removed {
		return false
	}
	s.cart = kept

	for _, id := range ids {
		s.selected = without(s.selected, id)
	}
	if contains(ids, s.paymentID) {
		s.paymentID = ""
	}
	s.recomputeSelectAllLocked()
	return true
}

func (s *CartStore) recomputeSelectAllLocked() {
	s.selectAll = len(s.selected) > 0 && len(s.selected) == len(s.cart)
}

// 日単位で今日より前か
func (s *CartStore) isExpiredLocked(day string) bool {
	now := s.clock.Now()
	d, err := time.ParseInLocation(model.DayLayout, day, now.Location())
	if err != nil {
		s.logger.Warn("unparsable cart day", zap.String("day", day), zap.Error(err))
		return true
	}
	return d.Before(startOfDay(now))
}

// 保存→配信。どの変更でもセッション期限を延長する（保存先のTTLと揃える）。
func (s *CartStore) commitLocked(ctx context.Context) {
	s.resetExpiryLocked()

	now := s.clock.Now()
	s.version = nextVersion(s.version, now)
	s.versionTab = s.tabID

	st := s.stateLocked()

	if s.storage != nil {
		if err := s.storage.Save(ctx, s.key, st, s.ttl); err != nil {
			s.logger.Error("persist cart failed", zap.Error(err))
		}
	}

	if s.bus != nil {
		ev := repo.CartEvent{
			Key:     s.key,
			TabID:   s.tabID,
			Version: s.version,
			State:   st,
			At:      now,
		}
		if err := s.bus.Publish(ctx, ev); err != nil {
			s.logger.Error("broadcast cart failed", zap.Error(err))
		}
	}
}

func (s *CartStore) resetExpiryLocked() {
	if s.expiry != nil {
		s.expiry.Stop()
	}
	s.expiry = s.scheduler.AfterFunc(s.ttl, s.expire)
}

// 期限切れ：保存済みのカートだけ消す（メモリはそのまま）
func (s *CartStore) expire() {
	if s.storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.storage.Delete(ctx, s.key); err != nil && !errors.Is(err, repo.ErrNotFound) {
		s.logger.Error("expire cart failed", zap.Error(err))
		return
	}
	s.logger.Info("cart session expired")
}

func buildCartItem(tour model.TourDetail, tourScheduleID string, day string, tickets []model.TicketOption, quantities map[string]int) (model.CartItem, bool) {
	item := model.CartItem{
		Tour:           tour.Clone(),
		TourScheduleID: tourScheduleID,
		Day:            day,
		Tickets:        []model.TicketLine{},
	}
	for _, t := range tickets {
		q := quantities[t.TicketTypeID]
		if q <= 0 {
			continue
		}
		if item.TicketIndex(t.TicketTypeID) >= 0 {
			continue
		}
		if q > t.AvailableTicket {
			q = t.AvailableTicket
		}
		if q <= 0 {
			continue
		}
		item.Tickets = append(item.Tickets, model.TicketLine{
			TicketTypeID:    t.TicketTypeID,
			TicketKind:      t.TicketKind,
			NetCost:         t.NetCost,
			Quantity:        q,
			AvailableTicket: t.AvailableTicket,
		})
	}
	if len(item.Tickets) == 0 {
		return model.CartItem{}, false
	}
	item.Recalculate()
	return item, true
}

// 版は時刻(ns)と直前の版+1の大きい方。新しく開いたタブの書き込みも古い版に負けない。
func nextVersion(prev int64, now time.Time) int64 {
	if v := now.UnixNano(); v > prev {
		return v
	}
	return prev + 1
}

func newerVersion(v int64, tab string, curV int64, curTab string) bool {
	if v != curV {
		return v > curV
	}
	return tab > curTab
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
