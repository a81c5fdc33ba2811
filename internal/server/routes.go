package server

import (
	"net/http"

	"github.com/dokkazy/dtp-frontend-sub000/internal/config"
	"github.com/dokkazy/dtp-frontend-sub000/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Cart    *handler.CartHandler
	Booking *handler.BookingHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Cart.RegisterRoutes(e, cfg)
	h.Booking.RegisterRoutes(e, cfg)
}
