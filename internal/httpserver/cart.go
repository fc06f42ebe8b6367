package httpserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/internal/service"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
	"github.com/Skotchmaster/cactus_shop/pkg/logging"
	middleware "github.com/Skotchmaster/cactus_shop/pkg/middleware/auth"
)

const (
	SessionCookie     = "cart_session"
	sessionCookieLife = 30 * 24 * time.Hour
)

type CartHTTP struct {
	Svc       *service.CartService
	Customers *service.CustomerService
	// ImageURL resolves product image keys for the embedded products.
	ImageURL func(string) string
}

func (h *CartHTTP) imageURL(key string) string {
	if h.ImageURL == nil {
		return ""
	}
	return h.ImageURL(key)
}

// owner resolves whose cart the request works on. An authenticated request
// that still carries the anonymous session cookie gets the session cart
// merged into the customer's cart first, and the cookie is dropped.
// Anonymous requests get a session cookie when they have none.
func (h *CartHTTP) owner(c echo.Context) (service.Owner, error) {
	ctx := c.Request().Context()

	if userID := middleware.UserID(c); userID != "" {
		customer, err := h.Customers.GetOrCreateCustomer(ctx, userID)
		if err != nil {
			return service.Owner{}, err
		}
		if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
			if _, err := h.Svc.MergeAnonymousCart(ctx, ck.Value, customer.ID); err != nil {
				return service.Owner{}, err
			}
			c.SetCookie(middleware.DeleteCookie(SessionCookie, "/"))
		}
		return service.Owner{CustomerID: &customer.ID}, nil
	}

	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return service.Owner{SessionKey: ck.Value}, nil
	}
	key := uuid.NewString()
	c.SetCookie(middleware.CreateCookie(SessionCookie, key, "/", time.Now().Add(sessionCookieLife)))
	return service.Owner{SessionKey: key}, nil
}

// currentCart returns the open cart of the request's owner.
func (h *CartHTTP) currentCart(c echo.Context) (*models.Cart, error) {
	owner, err := h.owner(c)
	if err != nil {
		return nil, err
	}
	return h.Svc.GetOrCreateCart(c.Request().Context(), owner)
}

// existingCart is currentCart for requests that address a line: without an
// open cart there is no line to change, so none is created.
func (h *CartHTTP) existingCart(c echo.Context) (*models.Cart, error) {
	owner, err := h.owner(c)
	if err != nil {
		return nil, err
	}
	return h.Svc.FindCart(c.Request().Context(), owner)
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	cart, err := h.currentCart(c)
	if err != nil {
		return serviceError(l, "get_cart_error", err, "internal server error")
	}
	return c.JSON(http.StatusOK, cartResponse(h.imageURL, cart))
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	var req transport.AddToCartRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_cart_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Kind == "" || req.ProductID == 0 {
		l.Warn("add_to_cart_error", "status", 400, "reason", "kind and product_id required")
		return echo.NewHTTPError(http.StatusBadRequest, "kind and product_id required")
	}

	cart, err := h.currentCart(c)
	if err != nil {
		return serviceError(l, "add_to_cart_error", err, "internal server error")
	}
	ref := models.ProductRef{Kind: models.ProductKind(req.Kind), ID: req.ProductID}
	cart, err = h.Svc.AddToCart(ctx, cart.ID, ref, req.Qty)
	if err != nil {
		return serviceError(l, "add_to_cart_error", err, "internal server error")
	}

	l.Info("add_to_cart_success", "cart", cart.ID, "kind", ref.Kind, "product_id", ref.ID)
	return c.JSON(http.StatusOK, cartResponse(h.imageURL, cart))
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_quantity")

	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("set_quantity_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}
	var req transport.SetQuantityRequest
	if err := c.Bind(&req); err != nil || req.Qty == nil {
		l.Warn("set_quantity_error", "status", 400, "reason", "qty required", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "qty required")
	}

	cart, err := h.existingCart(c)
	if err != nil {
		return serviceError(l, "set_quantity_error", err, "internal server error")
	}
	cart, err = h.Svc.SetQuantity(ctx, cart.ID, lineID, *req.Qty)
	if err != nil {
		return serviceError(l, "set_quantity_error", err, "internal server error")
	}
	return c.JSON(http.StatusOK, cartResponse(h.imageURL, cart))
}

func (h *CartHTTP) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove")

	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("remove_from_cart_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	cart, err := h.existingCart(c)
	if err != nil {
		return serviceError(l, "remove_from_cart_error", err, "internal server error")
	}
	cart, err = h.Svc.RemoveFromCart(ctx, cart.ID, lineID)
	if err != nil {
		return serviceError(l, "remove_from_cart_error", err, "internal server error")
	}
	return c.JSON(http.StatusOK, cartResponse(h.imageURL, cart))
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	cart, err := h.currentCart(c)
	if err != nil {
		return serviceError(l, "clear_cart_error", err, "internal server error")
	}
	cart, err = h.Svc.ClearCart(ctx, cart.ID)
	if err != nil {
		return serviceError(l, "clear_cart_error", err, "internal server error")
	}
	return c.JSON(http.StatusOK, cartResponse(h.imageURL, cart))
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	cart, err := h.currentCart(c)
	if err != nil {
		return serviceError(l, "checkout_error", err, "internal server error")
	}
	cart, err = h.Svc.Checkout(ctx, cart.ID)
	if err != nil {
		return serviceError(l, "checkout_error", err, "internal server error")
	}

	l.Info("checkout_success", "cart", cart.ID, "final_price", cart.FinalPrice.StringFixed(2))
	return c.JSON(http.StatusOK, cartResponse(h.imageURL, cart))
}
