package cartapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/perfume_shop/internal/logging"
)

type response struct {
	Success bool      `json:"success"`
	Status  bool      `json:"status"`
	Message string    `json:"message,omitempty"`
	Data    []LineDTO `json:"data,omitempty"`
}

func ok(data []LineDTO) response {
	return response{Success: true, Status: true, Data: data}
}

func failure(msg string) response {
	return response{Message: msg}
}

type CartHTTP struct {
	Svc *CartService
}

// Cart serves POST /cart: a request with only userid lists the cart, one
// carrying productid adjusts a line by qty.
func (h *CartHTTP) Cart(c echo.Context) error {
	ctx := c.Request().Context()
	userID := strings.TrimSpace(c.FormValue("userid"))
	productID := strings.TrimSpace(c.FormValue("productid"))

	if productID == "" && c.FormValue("qty") == "" {
		l := logging.FromContext(ctx).With("handler", "get.cart", "userid", userID)
		lines, err := h.Svc.GetCart(ctx, userID)
		if err != nil {
			return h.fail(c, l, "get_cart_error", err)
		}
		l.Debug("cart_listed", "lines", len(lines))
		resp := ok(lines)
		if len(lines) == 0 {
			resp.Data = nil
			resp.Message = "cart is empty"
		}
		return c.JSON(http.StatusOK, resp)
	}

	l := logging.FromContext(ctx).With("handler", "adjust.cart", "userid", userID)
	delta, err := strconv.Atoi(strings.TrimSpace(c.FormValue("qty")))
	if err != nil {
		l.Warn("adjust_cart_error", "status", http.StatusBadRequest, "error", err)
		return c.JSON(http.StatusBadRequest, failure("qty must be an integer"))
	}
	variantID := strings.TrimSpace(c.FormValue("variantid"))

	if err := h.Svc.AdjustQuantity(ctx, userID, productID, variantID, delta); err != nil {
		return h.fail(c, l, "adjust_cart_error", err)
	}
	l.Info("cart_adjusted", "productid", productID, "variantid", variantID, "qty", delta)
	return c.JSON(http.StatusOK, ok(nil))
}

// DeleteCart serves POST /delete-cart.
func (h *CartHTTP) DeleteCart(c echo.Context) error {
	ctx := c.Request().Context()
	userID := strings.TrimSpace(c.FormValue("userid"))
	l := logging.FromContext(ctx).With("handler", "delete.cart", "userid", userID)

	cartID := strings.TrimSpace(c.FormValue("cartid"))
	variantID := strings.TrimSpace(c.FormValue("variantid"))
	if err := h.Svc.RemoveLine(ctx, userID, cartID, variantID); err != nil {
		return h.fail(c, l, "delete_cart_error", err)
	}
	l.Info("cart_line_deleted", "cartid", cartID)
	return c.JSON(http.StatusOK, ok(nil))
}

func (h *CartHTTP) fail(c echo.Context, l *slog.Logger, event string, err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		l.Warn(event, "status", http.StatusBadRequest, "error", err)
		return c.JSON(http.StatusBadRequest, failure(err.Error()))
	case errors.Is(err, ErrNotFound):
		l.Warn(event, "status", http.StatusNotFound, "error", err)
		return c.JSON(http.StatusNotFound, failure("cart line not found"))
	default:
		l.Error(event, "status", http.StatusInternalServerError, "error", err)
		return c.JSON(http.StatusInternalServerError, failure("internal error"))
	}
}

type AuthHTTP struct {
	Svc *AuthService
}

// Validate serves POST /validate.
func (h *AuthHTTP) Validate(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "validate")

	token, exp, err := h.Svc.Validate(strings.TrimSpace(c.FormValue("email")), c.FormValue("password"))
	switch {
	case errors.Is(err, ErrValidation):
		l.Warn("validate_error", "status", http.StatusBadRequest, "error", err)
		return c.JSON(http.StatusBadRequest, failure(err.Error()))
	case errors.Is(err, ErrUnauthorized):
		l.Warn("validate_error", "status", http.StatusUnauthorized)
		return c.JSON(http.StatusUnauthorized, failure("invalid credentials"))
	case err != nil:
		l.Error("validate_error", "status", http.StatusInternalServerError, "error", err)
		return c.JSON(http.StatusInternalServerError, failure("internal error"))
	}

	l.Info("token_issued")
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"token":      token,
		"expires_at": exp.Unix(),
	})
}
