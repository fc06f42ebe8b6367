package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/cactus_shop/internal/cache"
	"github.com/Skotchmaster/cactus_shop/internal/events"
	"github.com/Skotchmaster/cactus_shop/internal/imaging"
	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/internal/repo"
	"github.com/Skotchmaster/cactus_shop/internal/search"
	"github.com/Skotchmaster/cactus_shop/internal/storage"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
	"github.com/Skotchmaster/cactus_shop/internal/util"
	"github.com/Skotchmaster/cactus_shop/pkg/logging"
	"github.com/Skotchmaster/cactus_shop/pkg/metrics"
)

const DefaultLatestLimit = 5

// 9,999,999.99 is the largest value decimal(9,2) holds.
var maxPrice = decimal.New(999999999, -2)

type CatalogService struct {
	Repo       *repo.GormRepo
	Registry   *Registry
	Storage    storage.Disk
	Cache      cache.Cache
	Events     events.Publisher
	Search     search.Indexer
	SidebarTTL time.Duration
}

// NewCatalogService fills unset integrations with no-op implementations.
func NewCatalogService(s CatalogService) *CatalogService {
	if s.Registry == nil {
		s.Registry = DefaultRegistry()
	}
	if s.Cache == nil {
		s.Cache = cache.Nop{}
	}
	if s.Events == nil {
		s.Events = events.Nop{}
	}
	if s.Search == nil {
		s.Search = search.Nop{}
	}
	if s.SidebarTTL <= 0 {
		s.SidebarTTL = 5 * time.Minute
	}
	return &s
}

func (s *CatalogService) ImageURL(key string) string {
	if key == "" || s.Storage == nil {
		return ""
	}
	return s.Storage.URL(key)
}

func ImageRules() transport.ImageRules {
	return transport.ImageRules{
		MinWidth:      imaging.MinWidth,
		MinHeight:     imaging.MinHeight,
		MaxWidth:      imaging.MaxWidth,
		MaxHeight:     imaging.MaxHeight,
		CanonicalSize: imaging.CanonicalSize,
		MaxBytes:      imaging.MaxImageSize,
		MaxPixels:     imaging.MaxPixels,
		Help: fmt.Sprintf(
			"Upload images of at least %dx%d. Images larger than %dx%d are cropped to a square and scaled to %dx%d. Maximum size is 3 MB.",
			imaging.MinWidth, imaging.MinHeight, imaging.MaxWidth, imaging.MaxHeight, imaging.CanonicalSize, imaging.CanonicalSize,
		),
	}
}

func (s *CatalogService) validKindOrEmpty(raw string) (models.ProductKind, error) {
	if raw == "" {
		return "", nil
	}
	spec, err := s.Registry.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: unknown product kind %q", ErrValidation, raw)
	}
	return spec.Kind, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, req transport.CategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > 255 {
		return nil, fmt.Errorf("%w: name is required and must not exceed 255 characters", ErrValidation)
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = util.Slugify(name)
	}
	if !util.ValidSlug(slug) {
		return nil, fmt.Errorf("%w: invalid slug %q", ErrValidation, slug)
	}
	kind, err := s.validKindOrEmpty(req.ProductKind)
	if err != nil {
		return nil, err
	}

	if _, err := s.Repo.GetCategoryBySlug(ctx, slug); err == nil {
		return nil, fmt.Errorf("%w: category %q already exists", ErrConflict, slug)
	}

	cat := &models.Category{Name: name, Slug: slug, ProductKind: kind}
	if err := s.Repo.CreateCategory(ctx, cat); err != nil {
		return nil, mapRepoErr(err, "category")
	}
	s.invalidateSidebar(ctx)
	return cat, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	cat, err := s.Repo.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, mapRepoErr(err, "category")
	}
	return cat, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.ListCategories(ctx)
}

func (s *CatalogService) PatchCategory(ctx context.Context, slug string, req transport.PatchCategoryRequest) (*models.Category, error) {
	cat, err := s.Repo.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, mapRepoErr(err, "category")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || utf8.RuneCountInString(name) > 255 {
			return nil, fmt.Errorf("%w: name is required and must not exceed 255 characters", ErrValidation)
		}
		cat.Name = name
	}
	if req.Slug != nil && *req.Slug != cat.Slug {
		if !util.ValidSlug(*req.Slug) {
			return nil, fmt.Errorf("%w: invalid slug %q", ErrValidation, *req.Slug)
		}
		if _, err := s.Repo.GetCategoryBySlug(ctx, *req.Slug); err == nil {
			return nil, fmt.Errorf("%w: category %q already exists", ErrConflict, *req.Slug)
		}
		cat.Slug = *req.Slug
	}
	if req.ProductKind != nil {
		kind, err := s.validKindOrEmpty(*req.ProductKind)
		if err != nil {
			return nil, err
		}
		cat.ProductKind = kind
	}

	if err := s.Repo.SaveCategory(ctx, cat); err != nil {
		return nil, mapRepoErr(err, "category")
	}
	s.invalidateSidebar(ctx)
	return cat, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, slug string) error {
	cat, err := s.Repo.GetCategoryBySlug(ctx, slug)
	if err != nil {
		return mapRepoErr(err, "category")
	}
	referenced, err := s.Repo.DeleteCategory(ctx, cat.ID)
	if err != nil {
		return mapRepoErr(err, "category")
	}
	if referenced > 0 {
		return fmt.Errorf("%w: category %q still has %d products", ErrConflict, slug, referenced)
	}
	s.invalidateSidebar(ctx)
	return nil
}

// CategoryChoices lists the categories an admin may assign to a product of
// the given kind.
func (s *CatalogService) CategoryChoices(ctx context.Context, kind models.ProductKind) ([]models.Category, error) {
	spec, ok := s.Registry.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown product kind %q", ErrNotFound, kind)
	}
	return s.Repo.CategoriesWithSlug(ctx, spec.CategorySlug)
}

// prepareImage validates and normalises an upload. Every variant's create
// and patch path goes through it.
func (s *CatalogService) prepareImage(ctx context.Context, upload *transport.ImageUpload) (*imaging.NormalizedImage, error) {
	norm, err := imaging.Normalize(upload.Data, upload.Size, upload.Filename)
	switch {
	case err == nil:
		if norm.Source.ExceedsMax() {
			logging.FromContext(ctx).Info("image_cropped",
				"width", norm.Source.Width, "height", norm.Source.Height,
				"max_width", imaging.MaxWidth, "max_height", imaging.MaxHeight)
		}
		return norm, nil
	case errors.Is(err, imaging.ErrImageTooLarge):
		metrics.ImageRejections.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, imaging.ErrImageTooSmall):
		metrics.ImageRejections.WithLabelValues("too_small").Inc()
		return nil, fmt.Errorf("%w: %w", ErrMinResolution, err)
	case errors.Is(err, imaging.ErrTooManyPixels):
		metrics.ImageRejections.WithLabelValues("too_many_pixels").Inc()
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		metrics.ImageRejections.WithLabelValues("unsupported").Inc()
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return nil, err
	}
}

func (s *CatalogService) storeImage(ctx context.Context, kind models.ProductKind, norm *imaging.NormalizedImage) (string, error) {
	if s.Storage == nil {
		return "", fmt.Errorf("image storage is not configured")
	}
	key := fmt.Sprintf("products/%s/%s/%s", kind, uuid.NewString(), norm.Filename)
	if err := s.Storage.Put(ctx, key, norm.Data, norm.ContentType); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}

func (s *CatalogService) dropImage(ctx context.Context, key string) {
	if key == "" || s.Storage == nil {
		return
	}
	if err := s.Storage.Delete(ctx, key); err != nil {
		logging.FromContext(ctx).Warn("image_delete_error", "key", key, "error", err)
	}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price must be a decimal number", ErrValidation)
	}
	if price.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if price.GreaterThan(maxPrice) {
		return decimal.Decimal{}, fmt.Errorf("%w: price must not exceed %s", ErrValidation, maxPrice.StringFixed(2))
	}
	return price.Round(2), nil
}

func validTitle(title string) bool {
	return title != "" && utf8.RuneCountInString(title) <= 255
}

func (s *CatalogService) setAttributes(spec VariantSpec, v models.Variant, attrs map[string]string) error {
	for name, value := range attrs {
		if utf8.RuneCountInString(value) > 255 {
			return fmt.Errorf("%w: %s must not exceed 255 characters", ErrValidation, name)
		}
		if !v.SetAttribute(name, strings.TrimSpace(value)) {
			return fmt.Errorf("%w: %s has no attribute %q", ErrValidation, spec.Kind, name)
		}
	}
	return nil
}

func (s *CatalogService) slugTaken(ctx context.Context, kind models.ProductKind, slug string) bool {
	_, err := s.Repo.GetProductBySlug(ctx, kind, slug)
	return err == nil
}

// CreateProduct validates the image before anything is written: an oversized
// upload fails with ErrValidation, a low resolution with ErrMinResolution.
// The stored blob is removed again when the row cannot be written.
func (s *CatalogService) CreateProduct(ctx context.Context, kind models.ProductKind, req transport.CreateProductRequest, upload *transport.ImageUpload) (models.Variant, error) {
	spec, ok := s.Registry.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown product kind %q", ErrNotFound, kind)
	}
	if upload == nil || len(upload.Data) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrValidation)
	}

	norm, err := s.prepareImage(ctx, upload)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if !validTitle(title) {
		return nil, fmt.Errorf("%w: title is required and must not exceed 255 characters", ErrValidation)
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = util.Slugify(title)
	}
	if !util.ValidSlug(slug) {
		return nil, fmt.Errorf("%w: invalid slug %q", ErrValidation, slug)
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}
	cat, err := s.Repo.GetCategoryBySlug(ctx, req.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, req.Category)
	}
	if s.slugTaken(ctx, kind, slug) {
		return nil, fmt.Errorf("%w: %s %q already exists", ErrConflict, kind, slug)
	}

	v := spec.New()
	if err := s.setAttributes(spec, v, req.Attributes); err != nil {
		return nil, err
	}
	base := v.Base()
	base.CategoryID = cat.ID
	base.Title = title
	base.Slug = slug
	base.Price = price
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		base.Description = &d
	}

	key, err := s.storeImage(ctx, kind, norm)
	if err != nil {
		return nil, err
	}
	base.Image = key

	if err := s.Repo.CreateProduct(ctx, v); err != nil {
		s.dropImage(ctx, key)
		return nil, mapRepoErr(err, string(kind))
	}

	metrics.ProductsCreated.WithLabelValues(string(kind)).Inc()
	s.productChanged(ctx, events.ProductCreated, v)
	return v, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, kind models.ProductKind, slug string) (models.Variant, error) {
	v, err := s.Repo.GetProductBySlug(ctx, kind, slug)
	if err != nil {
		return nil, mapRepoErr(err, string(kind))
	}
	return v, nil
}

// ListProducts pages through one kind; categorySlug narrows it when set.
func (s *CatalogService) ListProducts(ctx context.Context, kind models.ProductKind, categorySlug string, offset, limit int) (int64, []models.Variant, error) {
	if _, ok := s.Registry.Lookup(kind); !ok {
		return 0, nil, fmt.Errorf("%w: unknown product kind %q", ErrNotFound, kind)
	}
	var categoryID *uint
	if categorySlug != "" {
		cat, err := s.Repo.GetCategoryBySlug(ctx, categorySlug)
		if err != nil {
			return 0, nil, mapRepoErr(err, "category")
		}
		categoryID = &cat.ID
	}
	return s.Repo.ListProducts(ctx, kind, categoryID, offset, limit)
}

// LatestProducts returns the newest products of each kind, kinds in the given
// order. With no kinds every registered kind is used.
func (s *CatalogService) LatestProducts(ctx context.Context, limit int, kinds ...models.ProductKind) ([]models.Variant, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	if len(kinds) == 0 {
		kinds = s.Registry.Kinds()
	}
	var out []models.Variant
	for _, kind := range kinds {
		if _, ok := s.Registry.Lookup(kind); !ok {
			return nil, fmt.Errorf("%w: unknown product kind %q", ErrNotFound, kind)
		}
		items, err := s.Repo.LatestProducts(ctx, kind, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

// PatchProduct applies the fields present in req. A price change reprices the
// product's lines in open carts in the same transaction.
func (s *CatalogService) PatchProduct(ctx context.Context, kind models.ProductKind, slug string, req transport.PatchProductRequest, upload *transport.ImageUpload) (models.Variant, error) {
	spec, ok := s.Registry.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown product kind %q", ErrNotFound, kind)
	}
	v, err := s.Repo.GetProductBySlug(ctx, kind, slug)
	if err != nil {
		return nil, mapRepoErr(err, string(kind))
	}
	base := v.Base()

	var norm *imaging.NormalizedImage
	if upload != nil && len(upload.Data) > 0 {
		if norm, err = s.prepareImage(ctx, upload); err != nil {
			return nil, err
		}
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if !validTitle(title) {
			return nil, fmt.Errorf("%w: title is required and must not exceed 255 characters", ErrValidation)
		}
		base.Title = title
	}
	if req.Slug != nil && *req.Slug != base.Slug {
		if !util.ValidSlug(*req.Slug) {
			return nil, fmt.Errorf("%w: invalid slug %q", ErrValidation, *req.Slug)
		}
		if s.slugTaken(ctx, kind, *req.Slug) {
			return nil, fmt.Errorf("%w: %s %q already exists", ErrConflict, kind, *req.Slug)
		}
		base.Slug = *req.Slug
	}
	repriced := false
	if req.Price != nil {
		price, err := parsePrice(*req.Price)
		if err != nil {
			return nil, err
		}
		repriced = !price.Equal(base.Price)
		base.Price = price
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		base.Description = &d
	}
	if req.Category != nil {
		cat, err := s.Repo.GetCategoryBySlug(ctx, *req.Category)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, *req.Category)
		}
		base.CategoryID = cat.ID
	}
	if err := s.setAttributes(spec, v, req.Attributes); err != nil {
		return nil, err
	}

	oldKey := base.Image
	if norm != nil {
		key, err := s.storeImage(ctx, kind, norm)
		if err != nil {
			return nil, err
		}
		base.Image = key
	}

	touched, err := s.Repo.SaveProduct(ctx, v, repriced)
	if err != nil {
		if norm != nil {
			s.dropImage(ctx, base.Image)
		}
		return nil, mapRepoErr(err, string(kind))
	}
	if norm != nil {
		s.dropImage(ctx, oldKey)
	}

	s.productChanged(ctx, events.ProductUpdated, v)
	s.cartsChanged(ctx, "reprice", touched)
	return v, nil
}

// DeleteProduct also removes the product from open carts. It returns the carts
// whose totals changed.
func (s *CatalogService) DeleteProduct(ctx context.Context, kind models.ProductKind, slug string) ([]models.Cart, error) {
	v, err := s.Repo.GetProductBySlug(ctx, kind, slug)
	if err != nil {
		return nil, mapRepoErr(err, string(kind))
	}
	ref := models.ProductRef{Kind: kind, ID: v.Base().ID}

	touched, err := s.Repo.DeleteProduct(ctx, ref)
	if err != nil {
		return nil, mapRepoErr(err, string(kind))
	}
	s.dropImage(ctx, v.Base().Image)

	if err := s.Search.DeleteProduct(ctx, ref); err != nil {
		logging.FromContext(ctx).Warn("search_delete_error", "kind", kind, "id", ref.ID, "error", err)
	}
	s.publish(ctx, events.TopicProducts, search.DocumentID(ref), events.NewProductEvent(events.ProductDeleted, v))
	s.cartsChanged(ctx, "purge", touched)
	s.invalidateSidebar(ctx)
	return touched, nil
}

// SearchProducts runs a full-text query against the product index.
func (s *CatalogService) SearchProducts(ctx context.Context, query string, offset, limit int) (int64, []search.Document, error) {
	if strings.TrimSpace(query) == "" {
		return 0, nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	return s.Search.Search(ctx, query, offset, limit)
}

// productChanged runs the after-commit side effects. Failures are logged only.
func (s *CatalogService) productChanged(ctx context.Context, typ string, v models.Variant) {
	if err := s.Search.IndexProduct(ctx, v); err != nil {
		logging.FromContext(ctx).Warn("search_index_error", "kind", v.Kind(), "id", v.Base().ID, "error", err)
	}
	ref := models.ProductRef{Kind: v.Kind(), ID: v.Base().ID}
	s.publish(ctx, events.TopicProducts, search.DocumentID(ref), events.NewProductEvent(typ, v))
	s.invalidateSidebar(ctx)
}

// cartsChanged reports open carts rewritten by a product update or delete.
func (s *CatalogService) cartsChanged(ctx context.Context, op string, touched []models.Cart) {
	for i := range touched {
		metrics.CartMutations.WithLabelValues(op).Inc()
		s.publish(ctx, events.TopicCarts, touched[i].ID.String(), events.NewCartEvent(events.CartUpdated, &touched[i]))
	}
}

func (s *CatalogService) publish(ctx context.Context, topic, key string, ev any) {
	if err := s.Events.PublishEvent(ctx, topic, key, ev); err != nil {
		logging.FromContext(ctx).Warn("kafka_publish_error", "topic", topic, "key", key, "error", err)
	}
}
