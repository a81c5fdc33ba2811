package model

// チケット種別
type TicketKind int

const (
	TicketKindAdult TicketKind = iota
	TicketKindChild
	TicketKindPerGroupOfThree
	TicketKindPerGroupOfFive
	TicketKindPerGroupOfSeven
	TicketKindPerGroupOfTen
)

func (k TicketKind) String() string {
	switch k {
	case TicketKindAdult:
		return "Adult"
	case TicketKindChild:
		return "Child"
	case TicketKindPerGroupOfThree:
		return "PerGroupOfThree"
	case TicketKindPerGroupOfFive:
		return "PerGroupOfFive"
	case TicketKindPerGroupOfSeven:
		return "PerGroupOfSeven"
	case TicketKindPerGroupOfTen:
		return "PerGroupOfTen"
	default:
		return "Unknown"
	}
}

// 日程ごとに売っているチケット（ツアー詳細から来る）
type TicketOption struct {
	TicketTypeID    string     `json:"ticket_type_id"`
	TicketKind      TicketKind `json:"ticket_kind"`
	NetCost         int64      `json:"net_cost"`
	AvailableTicket int        `json:"available_ticket"`
}

// カート明細の中の1チケット種別
// 0 <= Quantity <= AvailableTicket を常に守る。
type TicketLine struct {
	TicketTypeID    string     `json:"ticket_type_id"`
	TicketKind      TicketKind `json:"ticket_kind"`
	NetCost         int64      `json:"net_cost"`
	Quantity        int        `json:"quantity"`
	AvailableTicket int        `json:"available_ticket"`
}

// 小計
func (t TicketLine) Subtotal() int64 {
	return t.NetCost * int64(t.Quantity)
}
