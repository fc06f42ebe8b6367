package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/cactus_shop/internal/models"
)

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Products", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC").Order("id ASC")
	})
}

func (r *GormRepo) GetCart(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := preloadLines(r.DB.WithContext(ctx)).First(&cart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) ActiveCartByOwner(ctx context.Context, customerID uint) (*models.Cart, error) {
	var cart models.Cart
	err := preloadLines(r.DB.WithContext(ctx)).
		Where("owner_id = ? AND in_order = ?", customerID, false).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) ActiveCartBySession(ctx context.Context, sessionKey string) (*models.Cart, error) {
	var cart models.Cart
	err := preloadLines(r.DB.WithContext(ctx)).
		Where("session_key = ? AND in_order = ?", sessionKey, false).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) CreateCart(ctx context.Context, cart *models.Cart) error {
	return r.DB.WithContext(ctx).Create(cart).Error
}

// mutateCart runs fn on the locked, open cart and recomputes its totals in the
// same transaction. The returned cart has its lines loaded.
func (r *GormRepo) mutateCart(ctx context.Context, cartID uuid.UUID, fn func(tx *gorm.DB, cart *models.Cart) error) (*models.Cart, error) {
	var out models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := lockCart(tx, cartID)
		if err != nil {
			return err
		}
		if cart.InOrder {
			return ErrCartClosed
		}
		if err := fn(tx, cart); err != nil {
			return err
		}
		if err := recomputeTotals(tx, cart.ID); err != nil {
			return err
		}
		return preloadLines(tx).First(&out, "id = ?", cart.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func lockCart(tx *gorm.DB, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// addLine increments an existing line or creates one, pricing it at the
// product's current unit price. The resulting quantity is pinned to
// models.MaxLineQty.
func addLine(tx *gorm.DB, cart *models.Cart, ref models.ProductRef, qty uint) error {
	product, err := loadProduct(tx, ref)
	if err != nil {
		return err
	}
	unit := product.Base().Price

	var line models.CartProduct
	err = tx.Where("cart_id = ? AND product_kind = ? AND product_id = ?", cart.ID, ref.Kind, ref.ID).First(&line).Error
	switch {
	case err == nil:
		line.Qty = min(line.Qty+qty, models.MaxLineQty)
		line.FinalPrice = unit.Mul(decimal.NewFromInt(int64(line.Qty)))
		return tx.Model(&line).Updates(map[string]any{
			"qty":         line.Qty,
			"final_price": line.FinalPrice,
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		qty = min(qty, models.MaxLineQty)
		line = models.CartProduct{
			CustomerID:  cart.OwnerID,
			CartID:      cart.ID,
			ProductKind: ref.Kind,
			ProductID:   ref.ID,
			Qty:         qty,
			FinalPrice:  unit.Mul(decimal.NewFromInt(int64(qty))),
		}
		return tx.Create(&line).Error
	default:
		return err
	}
}

func (r *GormRepo) AddToCart(ctx context.Context, cartID uuid.UUID, ref models.ProductRef, qty uint) (*models.Cart, error) {
	return r.mutateCart(ctx, cartID, func(tx *gorm.DB, cart *models.Cart) error {
		return addLine(tx, cart, ref, qty)
	})
}

func findLine(tx *gorm.DB, cartID, lineID uuid.UUID) (*models.CartProduct, error) {
	var line models.CartProduct
	if err := tx.Where("id = ? AND cart_id = ?", lineID, cartID).First(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// SetQuantity sets the quantity of one line; zero removes it.
func (r *GormRepo) SetQuantity(ctx context.Context, cartID, lineID uuid.UUID, qty uint) (*models.Cart, error) {
	return r.mutateCart(ctx, cartID, func(tx *gorm.DB, cart *models.Cart) error {
		line, err := findLine(tx, cart.ID, lineID)
		if err != nil {
			return err
		}
		if qty == 0 {
			return tx.Delete(line).Error
		}
		product, err := loadProduct(tx, line.Ref())
		if err != nil {
			return err
		}
		return tx.Model(line).Updates(map[string]any{
			"qty":         qty,
			"final_price": product.Base().Price.Mul(decimal.NewFromInt(int64(qty))),
		}).Error
	})
}

func (r *GormRepo) RemoveLine(ctx context.Context, cartID, lineID uuid.UUID) (*models.Cart, error) {
	return r.mutateCart(ctx, cartID, func(tx *gorm.DB, cart *models.Cart) error {
		line, err := findLine(tx, cart.ID, lineID)
		if err != nil {
			return err
		}
		return tx.Delete(line).Error
	})
}

func (r *GormRepo) ClearCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return r.mutateCart(ctx, cartID, func(tx *gorm.DB, cart *models.Cart) error {
		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartProduct{}).Error
	})
}

// RecomputeTotals rewrites the cart aggregates from its current lines.
func (r *GormRepo) RecomputeTotals(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var out models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCart(tx, cartID); err != nil {
			return err
		}
		if err := recomputeTotals(tx, cartID); err != nil {
			return err
		}
		return preloadLines(tx).First(&out, "id = ?", cartID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func recomputeTotals(tx *gorm.DB, cartID uuid.UUID) error {
	var lines []models.CartProduct
	if err := tx.Select("final_price").Where("cart_id = ?", cartID).Find(&lines).Error; err != nil {
		return err
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.FinalPrice)
	}
	return tx.Model(&models.Cart{}).Where("id = ?", cartID).Updates(map[string]any{
		"total_products": len(lines),
		"final_price":    total,
	}).Error
}

func (r *GormRepo) Checkout(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return r.mutateCart(ctx, cartID, func(tx *gorm.DB, cart *models.Cart) error {
		var n int64
		if err := tx.Model(&models.CartProduct{}).Where("cart_id = ?", cart.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrEmptyCart
		}
		return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).Update("in_order", true).Error
	})
}

// MergeCarts moves an anonymous cart to a customer. Without an open customer
// cart the anonymous one changes hands; otherwise its lines are added to the
// customer cart and it is deleted.
func (r *GormRepo) MergeCarts(ctx context.Context, anonID uuid.UUID, customerID uint) (*models.Cart, error) {
	var targetID uuid.UUID
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		anon, err := lockCart(tx, anonID)
		if err != nil {
			return err
		}
		if anon.InOrder || !anon.ForAnonymousUser {
			return ErrCartClosed
		}

		var target models.Cart
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ? AND in_order = ?", customerID, false).
			Order("created_at DESC").
			First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			targetID = anon.ID
			if err := tx.Model(&models.Cart{}).Where("id = ?", anon.ID).Updates(map[string]any{
				"owner_id":           customerID,
				"session_key":        nil,
				"for_anonymous_user": false,
			}).Error; err != nil {
				return err
			}
			return tx.Model(&models.CartProduct{}).Where("cart_id = ?", anon.ID).
				Update("customer_id", customerID).Error
		}
		if err != nil {
			return err
		}

		targetID = target.ID
		var lines []models.CartProduct
		if err := tx.Where("cart_id = ?", anon.ID).Order("created_at ASC").Find(&lines).Error; err != nil {
			return err
		}
		for _, l := range lines {
			err := addLine(tx, &target, l.Ref(), l.Qty)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
		}
		if err := tx.Where("cart_id = ?", anon.ID).Delete(&models.CartProduct{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Cart{}, "id = ?", anon.ID).Error; err != nil {
			return err
		}
		return recomputeTotals(tx, target.ID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetCart(ctx, targetID)
}

func openCartIDs(tx *gorm.DB, ref models.ProductRef) ([]uuid.UUID, error) {
	var cartIDs []uuid.UUID
	err := tx.Model(&models.CartProduct{}).
		Joins("JOIN carts ON carts.id = cart_products.cart_id").
		Where("cart_products.product_kind = ? AND cart_products.product_id = ? AND carts.in_order = ?", ref.Kind, ref.ID, false).
		Distinct().
		Pluck("cart_products.cart_id", &cartIDs).Error
	return cartIDs, err
}

// recomputeCarts refreshes the totals of the given carts and returns them.
func recomputeCarts(tx *gorm.DB, cartIDs []uuid.UUID) ([]models.Cart, error) {
	touched := make([]models.Cart, 0, len(cartIDs))
	for _, id := range cartIDs {
		if err := recomputeTotals(tx, id); err != nil {
			return nil, err
		}
		var c models.Cart
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return nil, err
		}
		touched = append(touched, c)
	}
	return touched, nil
}

// purgeProduct drops a product's lines from open carts. Ordered carts keep
// them.
func purgeProduct(tx *gorm.DB, ref models.ProductRef) ([]models.Cart, error) {
	cartIDs, err := openCartIDs(tx, ref)
	if err != nil || len(cartIDs) == 0 {
		return nil, err
	}
	if err := tx.Where("cart_id IN ? AND product_kind = ? AND product_id = ?", cartIDs, ref.Kind, ref.ID).
		Delete(&models.CartProduct{}).Error; err != nil {
		return nil, err
	}
	return recomputeCarts(tx, cartIDs)
}

// repriceProduct sets final_price = qty x unit on the product's lines in open
// carts. Ordered carts keep the price they were ordered at.
func repriceProduct(tx *gorm.DB, ref models.ProductRef, unit decimal.Decimal) ([]models.Cart, error) {
	cartIDs, err := openCartIDs(tx, ref)
	if err != nil || len(cartIDs) == 0 {
		return nil, err
	}
	var lines []models.CartProduct
	if err := tx.Where("cart_id IN ? AND product_kind = ? AND product_id = ?", cartIDs, ref.Kind, ref.ID).
		Find(&lines).Error; err != nil {
		return nil, err
	}
	for i := range lines {
		price := unit.Mul(decimal.NewFromInt(int64(lines[i].Qty)))
		if err := tx.Model(&lines[i]).Update("final_price", price).Error; err != nil {
			return nil, err
		}
	}
	return recomputeCarts(tx, cartIDs)
}
