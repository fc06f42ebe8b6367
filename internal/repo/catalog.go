package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/cactus_shop/internal/models"
)

func (r *GormRepo) CreateCategory(ctx context.Context, cat *models.Category) error {
	return r.DB.WithContext(ctx).Create(cat).Error
}

func (r *GormRepo) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var cat models.Category
	if err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&cat).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *GormRepo) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var cat models.Category
	if err := r.DB.WithContext(ctx).First(&cat, id).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *GormRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cats []models.Category
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

func (r *GormRepo) CategoriesWithSlug(ctx context.Context, slug string) ([]models.Category, error) {
	var cats []models.Category
	if err := r.DB.WithContext(ctx).Where("slug = ?", slug).Order("id ASC").Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

func (r *GormRepo) SaveCategory(ctx context.Context, cat *models.Category) error {
	return r.DB.WithContext(ctx).Save(cat).Error
}

// DeleteCategory removes the category when no product of any kind points at
// it. It reports the number of referencing products otherwise.
func (r *GormRepo) DeleteCategory(ctx context.Context, id uint) (int64, error) {
	var referenced int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, kind := range models.Kinds {
			var n int64
			if err := tx.Model(models.NewVariant(kind)).Where("category_id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			referenced += n
		}
		if referenced > 0 {
			return nil
		}
		res := tx.Delete(&models.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return referenced, err
}

// CountByCategory groups the products of one kind by category.
func (r *GormRepo) CountByCategory(ctx context.Context, kind models.ProductKind) (map[uint]int64, error) {
	v := models.NewVariant(kind)
	if v == nil {
		return nil, ErrUnknownKind
	}

	var rows []struct {
		CategoryID uint
		N          int64
	}
	if err := r.DB.WithContext(ctx).Model(v).
		Select("category_id, count(*) AS n").
		Group("category_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.CategoryID] = row.N
	}
	return out, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, v models.Variant) error {
	return r.DB.WithContext(ctx).Create(v).Error
}

// SaveProduct writes v. With repriced set, the product's lines in open carts
// are priced again at the new unit price and their carts recomputed; those
// carts are returned.
func (r *GormRepo) SaveProduct(ctx context.Context, v models.Variant, repriced bool) ([]models.Cart, error) {
	var touched []models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(v).Error; err != nil {
			return err
		}
		if !repriced {
			return nil
		}
		var err error
		touched, err = repriceProduct(tx, models.ProductRef{Kind: v.Kind(), ID: v.Base().ID}, v.Base().Price)
		return err
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}

func (r *GormRepo) GetProductBySlug(ctx context.Context, kind models.ProductKind, slug string) (models.Variant, error) {
	v := models.NewVariant(kind)
	if v == nil {
		return nil, ErrUnknownKind
	}
	if err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, ref models.ProductRef) (models.Variant, error) {
	return loadProduct(r.DB.WithContext(ctx), ref)
}

func loadProduct(db *gorm.DB, ref models.ProductRef) (models.Variant, error) {
	v := models.NewVariant(ref.Kind)
	if v == nil {
		return nil, ErrUnknownKind
	}
	if err := db.First(v, ref.ID).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// ListProducts pages through one kind, optionally restricted to a category.
func (r *GormRepo) ListProducts(ctx context.Context, kind models.ProductKind, categoryID *uint, offset, limit int) (int64, []models.Variant, error) {
	v := models.NewVariant(kind)
	if v == nil {
		return 0, nil, ErrUnknownKind
	}

	q := r.DB.WithContext(ctx).Model(v)
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items, err := findVariants(kind, q.Order("id ASC").Offset(offset).Limit(limit))
	if err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// LatestProducts returns the newest products of one kind.
func (r *GormRepo) LatestProducts(ctx context.Context, kind models.ProductKind, limit int) ([]models.Variant, error) {
	return findVariants(kind, r.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit))
}

func findVariants(kind models.ProductKind, q *gorm.DB) ([]models.Variant, error) {
	switch kind {
	case models.KindCactus:
		return find[models.CactusProduct](q)
	case models.KindSucculent:
		return find[models.SucculentProduct](q)
	}
	return nil, ErrUnknownKind
}

func find[T any, PT interface {
	*T
	models.Variant
}](q *gorm.DB) ([]models.Variant, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Variant, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

// DeleteProduct removes the product and its lines from every open cart, then
// recomputes those carts. It returns the carts that changed.
func (r *GormRepo) DeleteProduct(ctx context.Context, ref models.ProductRef) ([]models.Cart, error) {
	var touched []models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v := models.NewVariant(ref.Kind)
		if v == nil {
			return ErrUnknownKind
		}
		res := tx.Delete(v, ref.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var err error
		touched, err = purgeProduct(tx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}
