package model

import (
	"time"

	"gorm.io/gorm"
)

type Tour struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title        string         `gorm:"type:varchar(255);not null" json:"title"`
	CompanyName  string         `gorm:"type:varchar(255)" json:"company_name"`
	Description  string         `gorm:"type:text" json:"description"`
	Category     string         `gorm:"type:varchar(100)" json:"category"`
	ThumbnailURL string         `gorm:"type:text" json:"thumbnail_url"`
	IsActive     bool           `gorm:"not null;default:false" json:"is_active"`
	Schedules    []TourSchedule `gorm:"foreignKey:TourID" json:"-"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// 1ツアーの開催日
type TourSchedule struct {
	ID       string               `gorm:"type:varchar(36);primaryKey" json:"id"`
	TourID   string               `gorm:"type:varchar(36);not null;index" json:"tour_id"`
	OpenDate time.Time            `gorm:"not null;index" json:"open_date"`
	Tickets  []TourScheduleTicket `gorm:"foreignKey:TourScheduleID" json:"-"`
}

// 開催日ごとのチケット在庫
type TourScheduleTicket struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	TourScheduleID  string     `gorm:"type:varchar(36);not null;index" json:"tour_schedule_id"`
	TicketKind      TicketKind `gorm:"not null" json:"ticket_kind"`
	NetCost         int64      `gorm:"not null" json:"net_cost"`
	AvailableTicket int        `gorm:"not null" json:"available_ticket"`
}

// カートに入れるときのツアー情報（値コピー）
type TourDetail struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	CompanyName  string   `json:"company_name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Images       []string `json:"images,omitempty"`
}

func (t TourDetail) Clone() TourDetail {
	out := t
	if t.Images != nil {
		out.Images = append([]string{}, t.Images...)
	}
	return out
}

// 1日分のチケット表
type DailyTicketSchedule struct {
	Day            time.Time      `json:"day"`
	TourScheduleID string         `json:"tour_schedule_id"`
	Tickets        []TicketOption `json:"tickets"`
}

// カート表示用の日付フォーマット（DD-MM-YYYY）
const DayLayout = "02-01-2006"

func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}
