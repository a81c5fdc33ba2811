package repository

import (
	"context"

	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
)

// ツアー詳細とチケット表の読み出しを約束。
type TourRepository interface {
	FindTourDetail(ctx context.Context, tourID string) (model.TourDetail, error)
	ListDailySchedules(ctx context.Context, tourID string) ([]model.DailyTicketSchedule, error)
}
