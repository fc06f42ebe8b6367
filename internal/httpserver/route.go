package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/cactus_shop/pkg/authclient"
	"github.com/Skotchmaster/cactus_shop/pkg/metrics"
	middleware "github.com/Skotchmaster/cactus_shop/pkg/middleware/auth"
)

type Deps struct {
	CatalogHandler  *CatalogHTTP
	CartHandler     *CartHTTP
	CustomerHandler *CustomerHTTP
	JWTSecret       []byte
	AuthClient      *authclient.Client
	// Ready backs /health/ready; nil means always ready.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", metrics.Handler())

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)

	catalog := e.Group("/catalog")
	catalog.GET("/sidebar", d.CatalogHandler.Sidebar)
	catalog.GET("/categories", d.CatalogHandler.ListCategories)
	catalog.GET("/categories/:slug", d.CatalogHandler.GetCategory)
	catalog.GET("/search", d.CatalogHandler.SearchProducts)
	catalog.GET("/products/latest", d.CatalogHandler.LatestProducts)
	catalog.GET("/products/:kind", d.CatalogHandler.ListProducts)
	catalog.GET("/products/:kind/:slug", d.CatalogHandler.GetProduct)

	admin := catalog.Group("/admin", authMW.RequireAdmin)
	admin.GET("/image-rules", d.CatalogHandler.ImageRules)
	admin.GET("/categories", d.CatalogHandler.ListCategories)
	admin.GET("/:kind/categories", d.CatalogHandler.CategoryChoices)
	admin.POST("/categories", d.CatalogHandler.CreateCategory)
	admin.PATCH("/categories/:slug", d.CatalogHandler.PatchCategory)
	admin.DELETE("/categories/:slug", d.CatalogHandler.DeleteCategory)

	products := admin.Group("/products", echomw.BodyLimit(uploadBodyLimit))
	products.POST("/:kind", d.CatalogHandler.CreateProduct)
	products.PATCH("/:kind/:slug", d.CatalogHandler.PatchProduct)
	products.DELETE("/:kind/:slug", d.CatalogHandler.DeleteProduct)

	cart := e.Group("/cart", authMW.OptionalAuth)
	cart.GET("", d.CartHandler.GetCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.POST("/items", d.CartHandler.AddToCart)
	cart.PATCH("/items/:id", d.CartHandler.SetQuantity)
	cart.DELETE("/items/:id", d.CartHandler.RemoveFromCart)
	e.POST("/cart/checkout", d.CartHandler.Checkout, authMW.RequireAuth)

	customer := e.Group("/customer", authMW.RequireAuth)
	customer.GET("/me", d.CustomerHandler.GetMe)
	customer.PATCH("/me", d.CustomerHandler.PatchMe)
}
