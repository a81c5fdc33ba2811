package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/config"
	"github.com/dokkazy/dtp-frontend-sub000/internal/domain/model"
	"github.com/dokkazy/dtp-frontend-sub000/internal/handler"
	infraRepo "github.com/dokkazy/dtp-frontend-sub000/internal/infra/repository"
	repo "github.com/dokkazy/dtp-frontend-sub000/internal/repository"
	"github.com/dokkazy/dtp-frontend-sub000/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// fakes
// =====================

var now = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

type fakeTours struct{}

func (fakeTours) FindTourDetail(ctx context.Context, tourID string) (model.TourDetail, error) {
	if tourID != "tourA" {
		return model.TourDetail{}, repo.ErrNotFound
	}
	return model.TourDetail{ID: "tourA", Title: "Ha Long Bay Cruise"}, nil
}

func (fakeTours) ListDailySchedules(ctx context.Context, tourID string) ([]model.DailyTicketSchedule, error) {
	return []model.DailyTicketSchedule{
		{
			Day:            time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
			TourScheduleID: "s-20",
			Tickets: []model.TicketOption{
				{TicketTypeID: "t1", TicketKind: model.TicketKindAdult, NetCost: 100000, AvailableTicket: 3},
			},
		},
	}, nil
}

const secret = "test-secret"

func newServer(t *testing.T) *echo.Echo {
	t.Helper()

	carts := usecase.NewCartSessions(usecase.CartSessionsParams{
		Storage: infraRepo.NewMemoryCartStorage(func() time.Time { return now }),
		Clock:   fixedClock{},
	})
	t.Cleanup(carts.Close)

	cfg := config.Config{JWTSecret: secret}
	e := echo.New()
	handler.NewCartHandler(usecase.NewCartUsecase(carts)).RegisterRoutes(e, cfg)
	handler.NewBookingHandler(usecase.NewBookingUsecase(fakeTours{}, carts, fixedClock{})).RegisterRoutes(e, cfg)
	return e
}

func bearer(t *testing.T, userID int64) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": 9999999999,
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("Authorization", bearer(t, 1))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

// =====================
// tests
// =====================

func TestCart_Unauthorized(t *testing.T) {
	e := newServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[handler.ErrorResponse](t, rec).Error)
}

// 日付選択→枚数→カート→数量変更→決済まで
func TestBookingToCheckoutFlow(t *testing.T) {
	e := newServer(t)

	rec := do(t, e, http.MethodGet, "/tours/tourA/selection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode[usecase.TicketSelectionView](t, rec)
	assert.Equal(t, []string{"20-10-2026"}, sel.SelectableDays)

	rec = do(t, e, http.MethodPost, "/tours/tourA/selection/date", `{"date":"2026-10-18T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/tours/tourA/selection/date", `{"date":"2026-10-20T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodPost, "/tours/tourA/selection/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[usecase.TicketSelectionView](t, rec).ShowPackage)

	for i := 0; i < 2; i++ {
		rec = do(t, e, http.MethodPost, "/tours/tourA/selection/quantity", `{"ticket_type_id":"t1","net_cost":100000,"increment":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, int64(200000), decode[usecase.TicketSelectionView](t, rec).TotalPrice)

	rec = do(t, e, http.MethodPost, "/tours/tourA/selection/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[usecase.CartResponse](t, rec)
	assert.Equal(t, 1, cart.Count)
	assert.Equal(t, int64(200000), cart.Total)
	require.Len(t, cart.Cart, 1)
	assert.Equal(t, "20-10-2026", cart.Cart[0].Day)

	// 在庫超えは丸めてお知らせ
	rec = do(t, e, http.MethodPut, "/cart/items/s-20/tickets/t1", `{"quantity":9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[usecase.CartResponse](t, rec)
	assert.Equal(t, int64(300000), cart.Total)
	require.Len(t, cart.Notices, 1)
	assert.Equal(t, usecase.NoticeWarning, cart.Notices[0].Level)

	rec = do(t, e, http.MethodPatch, "/cart/items/s-20/tickets/t1", `{"action":"increase"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[usecase.CartResponse](t, rec).Exceeded)

	rec = do(t, e, http.MethodPatch, "/cart/items/s-20/tickets/t1", `{"action":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/cart/payment", `{"tour_schedule_id":"s-20"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[usecase.CartResponse](t, rec)
	require.NotNil(t, cart.PaymentItem)
	assert.Equal(t, "s-20", cart.PaymentItem.TourScheduleID)

	rec = do(t, e, http.MethodDelete, "/cart/payment", `{"payment_status":"PAID"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[usecase.CartResponse](t, rec)
	assert.Nil(t, cart.PaymentItem)
	assert.Equal(t, 0, cart.Count)
}

func TestCart_NotFoundItem(t *testing.T) {
	e := newServer(t)

	rec := do(t, e, http.MethodDelete, "/cart/items/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[handler.ErrorResponse](t, rec).Error)
}

func TestCart_SetQuantity_MissingBody(t *testing.T) {
	e := newServer(t)

	rec := do(t, e, http.MethodPut, "/cart/items/s-20/tickets/t1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBooking_UnknownTour(t *testing.T) {
	e := newServer(t)

	rec := do(t, e, http.MethodGet, "/tours/nope/selection", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// 今すぐ購入→解除
func TestBooking_DirectCheckout(t *testing.T) {
	e := newServer(t)

	do(t, e, http.MethodPost, "/tours/tourA/selection/date", `{"date":"2026-10-20T00:00:00Z"}`)
	do(t, e, http.MethodPost, "/tours/tourA/selection/quantity", `{"ticket_type_id":"t1","net_cost":100000,"increment":true}`)

	rec := do(t, e, http.MethodPost, "/tours/tourA/selection/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[model.CartState](t, rec)
	require.NotNil(t, st.DirectCheckoutItem)
	assert.Empty(t, st.Cart)

	rec = do(t, e, http.MethodDelete, "/cart/direct", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[usecase.CartResponse](t, rec).DirectCheckoutItem)
}
