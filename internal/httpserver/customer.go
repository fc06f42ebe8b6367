package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cactus_shop/internal/service"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
	"github.com/Skotchmaster/cactus_shop/pkg/logging"
	middleware "github.com/Skotchmaster/cactus_shop/pkg/middleware/auth"
)

type CustomerHTTP struct {
	Svc *service.CustomerService
}

func (h *CustomerHTTP) GetMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "customer.get_me")

	customer, err := h.Svc.GetOrCreateCustomer(ctx, middleware.UserID(c))
	if err != nil {
		return serviceError(l, "get_customer_error", err, "cannot load customer")
	}
	return c.JSON(http.StatusOK, customer)
}

func (h *CustomerHTTP) PatchMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "customer.patch_me")

	var req transport.ProfileRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("patch_customer_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	customer, err := h.Svc.UpdateProfile(ctx, middleware.UserID(c), req)
	if err != nil {
		return serviceError(l, "patch_customer_error", err, "cannot update customer")
	}
	l.Info("patch_customer_success", "customer_id", customer.ID)
	return c.JSON(http.StatusOK, customer)
}
