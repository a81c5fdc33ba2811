package repository

import (
	"context"
	"errors"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"

	"gorm.io/gorm"
)

type TourGormRepository struct {
	db *gorm.DB
}

// DI
func NewTourGormRepository(db *gorm.DB) *TourGormRepository {
	return &TourGormRepository{db: db}
}

// 公開中のツアーだけ
func (r *TourGormRepository) FindTourDetail(ctx context.Context, tourID string) (model.TourDetail, error) {
	var t model.Tour
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", tourID, true).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.TourDetail{}, repo.ErrNotFound
	}
	if err != nil {
		return model.TourDetail{}, err
	}

	return model.TourDetail{
		ID:           t.ID,
		Title:        t.Title,
		CompanyName:  t.CompanyName,
		Description:  t.Description,
		Category:     t.Category,
		ThumbnailURL: t.ThumbnailURL,
	}, nil
}

// 開催日順のチケット表
func (r *TourGormRepository) ListDailySchedules(ctx context.Context, tourID string) ([]model.DailyTicketSchedule, error) {
	var schedules []model.TourSchedule

	err := r.db.WithContext(ctx).
		Preload("Tickets", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("ticket_kind asc").Order("id asc")
		}).
		Where("tour_id = ?", tourID).
		Order("open_date asc").
		Find(&schedules).Error
	if err != nil {
		return []model.DailyTicketSchedule{}, err
	}

	out := make([]model.DailyTicketSchedule, 0, len(schedules))
	for _, s := range schedules {
		day := model.DailyTicketSchedule{
			Day:            s.OpenDate,
			TourScheduleID: s.ID,
			Tickets:        make([]model.TicketOption, 0, len(s.Tickets)),
		}
		for _, t := range s.Tickets {
			day.Tickets = append(day.Tickets, model.TicketOption{
				TicketTypeID:    t.ID,
				TicketKind:      t.TicketKind,
				NetCost:         t.NetCost,
				AvailableTicket: t.AvailableTicket,
			})
		}
		out = append(out, day)
	}
	return out, nil
}

// ツアーと日程・チケットをまとめて登録（シード用）
func (r *TourGormRepository) Create(ctx context.Context, t model.Tour) (model.Tour, error) {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return model.Tour{}, err
	}
	return t, nil
}
