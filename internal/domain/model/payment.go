package model

// 決済ゲートウェイから戻ってくる状態
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusPaid       PaymentStatus = "PAID"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)
