package model

// カートの1行（ツアー×日程）
// TourScheduleIDがカート内の一意キー。
type CartItem struct {
	Tour           TourDetail   `json:"tour"`
	TourScheduleID string       `json:"tour_schedule_id"`
	Day            string       `json:"day"`
	Tickets        []TicketLine `json:"tickets"`
	TotalPrice     int64        `json:"total_price"`
}

// TotalPriceを明細から計算し直す
func (c *CartItem) Recalculate() {
	var total int64
	for _, t := range c.Tickets {
		total += t.Subtotal()
	}
	c.TotalPrice = total
}

// チケット種別の位置（無ければ-1）
func (c *CartItem) TicketIndex(ticketTypeID string) int {
	for i := range c.Tickets {
		if c.Tickets[i].TicketTypeID == ticketTypeID {
			return i
		}
	}
	return -1
}

func (c CartItem) Clone() CartItem {
	out := c
	out.Tour = c.Tour.Clone()
	out.Tickets = append([]TicketLine(nil), c.Tickets...)
	return out
}
