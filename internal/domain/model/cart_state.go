package model

// 永続化されるカート全体
type CartState struct {
	Cart               []CartItem `json:"cart"`
	SelectedItems      []string   `json:"selected_items"`
	SelectAll          bool       `json:"select_all"`
	PaymentItem        *CartItem  `json:"payment_item"`
	DirectCheckoutItem *CartItem  `json:"direct_checkout_item"`
}

func (s CartState) Clone() CartState {
	out := CartState{
		Cart:          make([]CartItem, 0, len(s.Cart)),
		SelectedItems: append([]string{}, s.SelectedItems...),
		SelectAll:     s.SelectAll,
	}
	for _, it := range s.Cart {
		out.Cart = append(out.Cart, it.Clone())
	}
	if s.PaymentItem != nil {
		p := s.PaymentItem.Clone()
		out.PaymentItem = &p
	}
	if s.DirectCheckoutItem != nil {
		d := s.DirectCheckoutItem.Clone()
		out.DirectCheckoutItem = &d
	}
	return out
}

// 空のカート
func EmptyCartState() CartState {
	return CartState{
		Cart:          []CartItem{},
		SelectedItems: []string{},
	}
}
