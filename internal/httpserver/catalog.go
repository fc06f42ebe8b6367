package httpserver

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cactus_shop/internal/imaging"
	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/internal/service"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
	"github.com/Skotchmaster/cactus_shop/internal/util"
	"github.com/Skotchmaster/cactus_shop/pkg/logging"
	"github.com/Skotchmaster/cactus_shop/pkg/metrics"
)

// uploadBodyLimit leaves room for the form fields next to a 3 MB image.
const uploadBodyLimit = "4M"

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func (h *CatalogHTTP) Sidebar(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.sidebar")

	entries, err := h.Svc.CategoriesForSidebar(ctx)
	if err != nil {
		return serviceError(l, "sidebar_error", err, "cannot load categories")
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *CatalogHTTP) ListCategories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.list_categories")

	cats, err := h.Svc.ListCategories(ctx)
	if err != nil {
		return serviceError(l, "list_categories_error", err, "cannot load categories")
	}
	return c.JSON(http.StatusOK, categoriesResponse(cats))
}

func (h *CatalogHTTP) GetCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_category")

	cat, err := h.Svc.GetCategory(ctx, c.Param("slug"))
	if err != nil {
		return serviceError(l, "get_category_error", err, "cannot load category")
	}
	return c.JSON(http.StatusOK, categoryResponse(cat))
}

func (h *CatalogHTTP) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.create_category")

	var req transport.CategoryRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("category_create_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	cat, err := h.Svc.CreateCategory(ctx, req)
	if err != nil {
		return serviceError(l, "category_create_error", err, "cannot add category to db")
	}
	l.Info("create_category_success", "slug", cat.Slug)
	return c.JSON(http.StatusCreated, categoryResponse(cat))
}

func (h *CatalogHTTP) PatchCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.patch_category")

	var req transport.PatchCategoryRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("category_patch_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	cat, err := h.Svc.PatchCategory(ctx, c.Param("slug"), req)
	if err != nil {
		return serviceError(l, "category_patch_error", err, "cannot update category")
	}
	l.Info("patch_category_success", "slug", cat.Slug)
	return c.JSON(http.StatusOK, categoryResponse(cat))
}

func (h *CatalogHTTP) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.delete_category")

	if err := h.Svc.DeleteCategory(ctx, c.Param("slug")); err != nil {
		return serviceError(l, "category_delete_error", err, "cannot delete category")
	}
	l.Info("delete_category_success", "slug", c.Param("slug"))
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHTTP) CategoryChoices(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.category_choices")

	spec, err := h.Svc.Registry.Parse(c.Param("kind"))
	if err != nil {
		return serviceError(l, "category_choices_error", err, "cannot load categories")
	}
	cats, err := h.Svc.CategoryChoices(ctx, spec.Kind)
	if err != nil {
		return serviceError(l, "category_choices_error", err, "cannot load categories")
	}
	return c.JSON(http.StatusOK, categoriesResponse(cats))
}

func (h *CatalogHTTP) ImageRules(c echo.Context) error {
	return c.JSON(http.StatusOK, service.ImageRules())
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_product")

	v, err := h.Svc.GetProduct(ctx, models.ProductKind(c.Param("kind")), c.Param("slug"))
	if err != nil {
		return serviceError(l, "get_product_error", err, "cannot get product")
	}
	return c.JSON(http.StatusOK, productResponse(h.Svc.ImageURL, v))
}

func (h *CatalogHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.list_products")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.ListProducts(ctx, models.ProductKind(c.Param("kind")), c.QueryParam("category"), offset, limit)
	if err != nil {
		return serviceError(l, "get_products_error", err, "cannot get products")
	}

	l.Info("get_products_success", "total", total)
	return c.JSON(http.StatusOK, map[string]any{
		"data": productsResponse(h.Svc.ImageURL, items),
		"meta": util.Meta(page, offset, limit, total),
	})
}

func (h *CatalogHTTP) LatestProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.latest_products")

	limit := util.ParseIntDefault(c.QueryParam("limit"), service.DefaultLatestLimit)
	if limit > util.MaxPageSize {
		limit = util.MaxPageSize
	}
	var kinds []models.ProductKind
	for _, k := range c.QueryParams()["kind"] {
		kinds = append(kinds, models.ProductKind(k))
	}

	items, err := h.Svc.LatestProducts(ctx, limit, kinds...)
	if err != nil {
		return serviceError(l, "latest_products_error", err, "cannot get products")
	}
	return c.JSON(http.StatusOK, productsResponse(h.Svc.ImageURL, items))
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, docs, err := h.Svc.SearchProducts(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		return serviceError(l, "search_error", err, "search failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data": docs,
		"meta": util.Meta(page, offset, limit, total),
	})
}

// readUpload reads the "image" file of a multipart form. A missing file gives
// a nil upload. The declared size is checked before the body is read.
func readUpload(c echo.Context) (*transport.ImageUpload, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Size > imaging.MaxImageSize {
		metrics.ImageRejections.WithLabelValues("too_large").Inc()
		return nil, imaging.ErrImageTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, imaging.MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	return &transport.ImageUpload{Data: data, Size: fh.Size, Filename: fh.Filename}, nil
}

func formValue(form *multipart.Form, name string) (*string, bool) {
	vals, ok := form.Value[name]
	if !ok || len(vals) == 0 {
		return nil, false
	}
	v := vals[0]
	return &v, true
}

func formAttributes(form *multipart.Form, spec service.VariantSpec) map[string]string {
	attrs := make(map[string]string)
	for _, name := range spec.Attributes {
		if v, ok := formValue(form, name); ok {
			attrs[name] = *v
		}
	}
	return attrs
}

// allowedCategory reports whether slug is one of the admin choices for kind.
func (h *CatalogHTTP) allowedCategory(c echo.Context, kind models.ProductKind, slug string) (bool, error) {
	cats, err := h.Svc.CategoryChoices(c.Request().Context(), kind)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(cats, func(cat models.Category) bool { return cat.Slug == slug }), nil
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.create_product")

	spec, err := h.Svc.Registry.Parse(c.Param("kind"))
	if err != nil {
		return serviceError(l, "product_create_error", err, "cannot add product to db")
	}

	upload, err := readUpload(c)
	if errors.Is(err, imaging.ErrImageTooLarge) {
		return serviceError(l, "product_create_error", err, "")
	}
	if err != nil {
		l.Warn("product_create_error", "status", 400, "reason", "invalid multipart form", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	if upload == nil {
		l.Warn("product_create_error", "status", 400, "reason", "image is required")
		return echo.NewHTTPError(http.StatusBadRequest, "image is required")
	}
	form := c.Request().MultipartForm

	req := transport.CreateProductRequest{
		Category:   strings.TrimSpace(c.FormValue("category")),
		Title:      c.FormValue("title"),
		Slug:       c.FormValue("slug"),
		Price:      c.FormValue("price"),
		Attributes: formAttributes(form, spec),
	}
	if d, ok := formValue(form, "description"); ok && *d != "" {
		req.Description = d
	}

	ok, err := h.allowedCategory(c, spec.Kind, req.Category)
	if err != nil {
		return serviceError(l, "product_create_error", err, "cannot load categories")
	}
	if !ok {
		l.Warn("product_create_error", "status", 400, "reason", "category not allowed for kind", "category", req.Category)
		return echo.NewHTTPError(http.StatusBadRequest, "category is not a valid choice for "+spec.DisplayName)
	}

	v, err := h.Svc.CreateProduct(ctx, spec.Kind, req, upload)
	if err != nil {
		return serviceError(l, "product_create_error", err, "cannot add product to db")
	}

	l.Info("create_product_success", "kind", spec.Kind, "slug", v.Base().Slug)
	return c.JSON(http.StatusCreated, productResponse(h.Svc.ImageURL, v))
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.patch_product")

	spec, err := h.Svc.Registry.Parse(c.Param("kind"))
	if err != nil {
		return serviceError(l, "product_patch_error", err, "cannot update product")
	}

	form, err := c.MultipartForm()
	if err != nil {
		l.Warn("product_patch_error", "status", 400, "reason", "invalid multipart form", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	upload, err := readUpload(c)
	if errors.Is(err, imaging.ErrImageTooLarge) {
		return serviceError(l, "product_patch_error", err, "")
	}
	if err != nil {
		l.Warn("product_patch_error", "status", 400, "reason", "invalid image", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image")
	}

	var req transport.PatchProductRequest
	req.Category, _ = formValue(form, "category")
	req.Title, _ = formValue(form, "title")
	req.Slug, _ = formValue(form, "slug")
	req.Description, _ = formValue(form, "description")
	req.Price, _ = formValue(form, "price")
	req.Attributes = formAttributes(form, spec)

	if req.Category != nil {
		ok, err := h.allowedCategory(c, spec.Kind, strings.TrimSpace(*req.Category))
		if err != nil {
			return serviceError(l, "product_patch_error", err, "cannot load categories")
		}
		if !ok {
			l.Warn("product_patch_error", "status", 400, "reason", "category not allowed for kind", "category", *req.Category)
			return echo.NewHTTPError(http.StatusBadRequest, "category is not a valid choice for "+spec.DisplayName)
		}
	}

	v, err := h.Svc.PatchProduct(ctx, spec.Kind, c.Param("slug"), req, upload)
	if err != nil {
		return serviceError(l, "product_patch_error", err, "cannot update product")
	}

	l.Info("patch_product_success", "kind", spec.Kind, "slug", v.Base().Slug)
	return c.JSON(http.StatusOK, productResponse(h.Svc.ImageURL, v))
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.delete_product")

	touched, err := h.Svc.DeleteProduct(ctx, models.ProductKind(c.Param("kind")), c.Param("slug"))
	if err != nil {
		return serviceError(l, "product_delete_error", err, "cannot delete product from db")
	}

	l.Info("delete_product_success", "kind", c.Param("kind"), "slug", c.Param("slug"), "carts_updated", len(touched))
	return c.NoContent(http.StatusNoContent)
}
