package usecase

import (
	"sync"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
)

// ツアー詳細ページでの日付・枚数選択（保存しない）
type TicketSelection struct {
	mu    sync.Mutex
	clock Clock

	showPackage  bool
	calendarOpen bool
	date         *time.Time

	schedule   []model.DailyTicketSchedule
	selectable map[string]bool

	daySchedule *model.DailyTicketSchedule
	dayTickets  []model.TicketOption
	quantities  map[string]int
	totalPrice  int64
}

// 画面表示用のスナップショット
type TicketSelectionView struct {
	ShowPackage        bool                 `json:"show_package"`
	CalendarOpen       bool                 `json:"calendar_open"`
	Date               *time.Time           `json:"date"`
	TourScheduleID     string               `json:"tour_schedule_id,omitempty"`
	SelectedDayTickets []model.TicketOption `json:"selected_day_tickets"`
	TicketQuantities   map[string]int       `json:"ticket_quantities"`
	TotalPrice         int64                `json:"total_price"`
	SelectableDays     []string             `json:"selectable_days"`
}

// カートに渡す選択結果
type TicketSelectionOutput struct {
	TourScheduleID string
	Day            string
	Tickets        []model.TicketOption
	Quantities     map[string]int
}

func NewTicketSelection(clock Clock) *TicketSelection {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TicketSelection{
		clock:      clock,
		selectable: map[string]bool{},
		quantities: map[string]int{},
	}
}

// チケット表を差し替える。日付・選択はそのまま。
func (s *TicketSelection) SetTicketSchedule(schedule []model.DailyTicketSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedule = make([]model.DailyTicketSchedule, 0, len(schedule))
	for _, d := range schedule {
		d.Tickets = append([]model.TicketOption(nil), d.Tickets...)
		s.schedule = append(s.schedule, d)
	}

	s.computeSelectableLocked()
}

// Refresh は今の時刻で選べる日を計算し直す。
// 選択中の日が選べなくなっていれば日付選択を外し、
// まだ選べるならその日のチケット（在庫）を表の内容に合わせる。
func (s *TicketSelection) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.computeSelectableLocked()
	if s.date == nil {
		return
	}
	if !s.selectable[dayKey(s.date.In(s.clock.Now().Location()))] {
		s.date = nil
		s.showPackage = false
		s.clearDayLocked()
		return
	}
	s.syncDayLocked()
}

func (s *TicketSelection) IsSelectable(date time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectable[dayKey(date.In(s.clock.Now().Location()))]
}

// 選択中の日付が今も選べるか
func (s *TicketSelection) DateSelectable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.date == nil {
		return false
	}
	return s.selectable[dayKey(s.date.In(s.clock.Now().Location()))]
}

// HandleDateSelect は日付を設定し、その日のチケット枚数を0に戻す。
// nilや該当日なしなら選択をクリアする。
func (s *TicketSelection) HandleDateSelect(date *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectDateLocked(date)
}

// 確定：もう一度日付を当て直してパッケージを開く
func (s *TicketSelection) HandleConfirmDateSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectDateLocked(s.date)
	s.showPackage = true
	s.calendarOpen = false
}

// HandleQuantityChange は1枚ずつ増減し、合計も同じだけ動かす。
// 上限・0での操作は何も変えない。
func (s *TicketSelection) HandleQuantityChange(ticketTypeID string, netCost int64, increment bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var opt *model.TicketOption
	for i := range s.dayTickets {
		if s.dayTickets[i].TicketTypeID == ticketTypeID {
			opt = &s.dayTickets[i]
			break
		}
	}
	if opt == nil {
		return
	}

	q := s.quantities[ticketTypeID]
	if increment {
		if q >= opt.AvailableTicket {
			return
		}
		s.quantities[ticketTypeID] = q + 1
		s.totalPrice += netCost
		return
	}

	if q <= 0 {
		return
	}
	s.quantities[ticketTypeID] = q - 1
	s.totalPrice -= netCost
}

// チケット表以外を初期状態へ
func (s *TicketSelection) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.date = nil
	s.showPackage = false
	s.clearDayLocked()
}

func (s *TicketSelection) TogglePackage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showPackage = !s.showPackage
}

func (s *TicketSelection) SetCalendarOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendarOpen = open
}

func (s *TicketSelection) View() TicketSelectionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := TicketSelectionView{
		ShowPackage:        s.showPackage,
		CalendarOpen:       s.calendarOpen,
		SelectedDayTickets: append([]model.TicketOption{}, s.dayTickets...),
		TicketQuantities:   make(map[string]int, len(s.quantities)),
		TotalPrice:         s.totalPrice,
		SelectableDays:     []string{},
	}
	if s.date != nil {
		d := *s.date
		v.Date = &d
	}
	if s.daySchedule != nil {
		v.TourScheduleID = s.daySchedule.TourScheduleID
	}
	for k, q := range s.quantities {
		v.TicketQuantities[k] = q
	}
	for _, d := range s.schedule {
		if s.selectable[dayKey(d.Day.In(s.clock.Now().Location()))] {
			v.SelectableDays = append(v.SelectableDays, model.FormatDay(d.Day))
		}
	}
	return v
}

// Output はカート投入用の選択結果。日付が決まっていなければfalse。
func (s *TicketSelection) Output() (TicketSelectionOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.daySchedule == nil || s.date == nil {
		return TicketSelectionOutput{}, false
	}
	out := TicketSelectionOutput{
		TourScheduleID: s.daySchedule.TourScheduleID,
		Day:            model.FormatDay(s.daySchedule.Day.In(s.clock.Now().Location())),
		Tickets:        append([]model.TicketOption{}, s.dayTickets...),
		Quantities:     make(map[string]int, len(s.quantities)),
	}
	for k, q := range s.quantities {
		out.Quantities[k] = q
	}
	return out, true
}

func (s *TicketSelection) selectDateLocked(date *time.Time) {
	if date == nil {
		s.date = nil
		s.showPackage = false
		s.clearDayLocked()
		return
	}

	d := *date
	s.date = &d

	loc := s.clock.Now().Location()
	key := dayKey(d.In(loc))
	for i := range s.schedule {
		if dayKey(s.schedule[i].Day.In(loc)) != key {
			continue
		}
		day := s.schedule[i]
		s.daySchedule = &day
		s.dayTickets = append([]model.TicketOption{}, day.Tickets...)
		s.quantities = make(map[string]int, len(day.Tickets))
		for _, t := range day.Tickets {
			s.quantities[t.TicketTypeID] = 0
		}
		s.totalPrice = 0
		return
	}

	s.clearDayLocked()
}

// 明日より後の日だけ選べる（日単位で比較）
func (s *TicketSelection) computeSelectableLocked() {
	now := s.clock.Now()
	boundary := startOfDay(now.Add(24 * time.Hour))
	s.selectable = map[string]bool{}
	for _, d := range s.schedule {
		day := startOfDay(d.Day.In(now.Location()))
		if day.After(boundary) {
			s.selectable[dayKey(day)] = true
		}
	}
}

// 選択中の日のチケットを表から取り直す。枚数は新しい在庫で丸め、合計も計算し直す。
func (s *TicketSelection) syncDayLocked() {
	loc := s.clock.Now().Location()
	key := dayKey(s.date.In(loc))
	for i := range s.schedule {
		if dayKey(s.schedule[i].Day.In(loc)) != key {
			continue
		}
		day := s.schedule[i]
		s.daySchedule = &day
		s.dayTickets = append([]model.TicketOption{}, day.Tickets...)

		quantities := make(map[string]int, len(day.Tickets))
		var total int64
		for _, t := range day.Tickets {
			q := s.quantities[t.TicketTypeID]
			if q > t.AvailableTicket {
				q = t.AvailableTicket
			}
			if q < 0 {
				q = 0
			}
			quantities[t.TicketTypeID] = q
			total += t.NetCost * int64(q)
		}
		s.quantities = quantities
		s.totalPrice = total
		return
	}
	s.clearDayLocked()
}

func (s *TicketSelection) clearDayLocked() {
	s.daySchedule = nil
	s.dayTickets = []model.TicketOption{}
	s.quantities = map[string]int{}
	s.totalPrice = 0
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
