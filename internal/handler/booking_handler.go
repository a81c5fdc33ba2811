package handler

import (
	"net/http"
	"time"

	"github.com/dokkazy/dtp-frontend-sub000/internal/config"
	"github.com/dokkazy/dtp-frontend-sub000/internal/middleware"
	"github.com/dokkazy/dtp-frontend-sub000/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ツアー詳細ページのチケット選択
type BookingHandler struct {
	uc *usecase.BookingUsecase
}

func NewBookingHandler(uc *usecase.BookingUsecase) *BookingHandler {
	return &BookingHandler{uc: uc}
}

// dateはRFC3339。nullで選択解除。
type SelectDateRequest struct {
	Date *time.Time `json:"date"`
}

type ChangeQuantityRequest struct {
	TicketTypeID string `json:"ticket_type_id"`
	NetCost      int64  `json:"net_cost"`
	Increment    bool   `json:"increment"`
}

func (h *BookingHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/tours/:id/selection")
	g.Use(middleware.AuthJWT(cfg))

	g.GET("", h.get)
	g.DELETE("", h.clear)
	g.POST("/date", h.selectDate)
	g.POST("/confirm", h.confirm)
	g.POST("/quantity", h.changeQuantity)
	g.POST("/toggle", h.toggle)
	g.POST("/cart", h.addToCart)
	g.POST("/checkout", h.checkout)
}

func (h *BookingHandler) get(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetSelection(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) clear(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.ClearSelection(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) selectDate(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req SelectDateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.SelectDate(c.Request().Context(), userID, c.Param("id"), req.Date)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) confirm(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.ConfirmDate(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) changeQuantity(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req ChangeQuantityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.ChangeQuantity(c.Request().Context(), userID, c.Param("id"), usecase.QuantityChangeInput{
		TicketTypeID: req.TicketTypeID,
		NetCost:      req.NetCost,
		Increment:    req.Increment,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) toggle(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.TogglePackage(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) addToCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.AddSelectionToCart(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) checkout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.CheckoutSelection(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
