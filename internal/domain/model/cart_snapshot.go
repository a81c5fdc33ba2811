package model

import "time"

// 保存スロット1つ分（JSONで丸ごと保存）
type CartSnapshot struct {
	StorageKey string     `gorm:"type:varchar(100);primaryKey" json:"storage_key"`
	Payload    string     `gorm:"type:text;not null" json:"payload"`
	ExpiresAt  *time.Time `gorm:"index" json:"expires_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}
