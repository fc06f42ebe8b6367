package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cactus_shop/internal/events"
	"github.com/Skotchmaster/cactus_shop/internal/models"
)

type cartFixture struct {
	*fixture
	a, b models.ProductRef
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	f := newFixture(t)
	f.category(t, "Cactuses", "cactus", models.KindCactus)
	f.category(t, "Succulents", "succulent", models.KindSucculent)
	a := f.product(t, models.KindCactus, "cactus", "Golden Barrel", "10.00")
	b := f.product(t, models.KindSucculent, "succulent", "Aloe", "5.50")
	return &cartFixture{
		fixture: f,
		a:       models.ProductRef{Kind: models.KindCactus, ID: a.Base().ID},
		b:       models.ProductRef{Kind: models.KindSucculent, ID: b.Base().ID},
	}
}

func lineFor(t *testing.T, cart *models.Cart, ref models.ProductRef) models.CartProduct {
	t.Helper()
	for _, l := range cart.Products {
		if l.Ref() == ref {
			return l
		}
	}
	t.Fatalf("no line for %v", ref)
	return models.CartProduct{}
}

func TestCartService_EmptyCart(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	cart, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	assert.True(t, cart.ForAnonymousUser)
	assert.Equal(t, 0, cart.TotalProducts)
	assert.True(t, cart.FinalPrice.IsZero())
	assert.Empty(t, cart.Products)

	again, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	_, err = f.carts.GetOrCreateCart(ctx, Owner{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCartService_TotalsFollowLines(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	cart, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)

	cart, err = f.carts.AddToCart(ctx, cart.ID, f.a, 2)
	require.NoError(t, err)
	cart, err = f.carts.AddToCart(ctx, cart.ID, f.b, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, cart.TotalProducts)
	assert.True(t, cart.FinalPrice.Equal(dec("25.50")), cart.FinalPrice.String())
	lineA := lineFor(t, cart, f.a)
	assert.Equal(t, uint(2), lineA.Qty)
	assert.True(t, lineA.FinalPrice.Equal(dec("20")))
	require.NotNil(t, lineA.Product)
	assert.Equal(t, "golden-barrel", lineA.Product.Base().Slug)
	lineB := lineFor(t, cart, f.b)
	assert.Equal(t, uint(1), lineB.Qty)

	cart, err = f.carts.SetQuantity(ctx, cart.ID, lineA.ID, 3)
	require.NoError(t, err)
	assert.True(t, lineFor(t, cart, f.a).FinalPrice.Equal(dec("30")))
	assert.True(t, cart.FinalPrice.Equal(dec("35.50")))

	cart, err = f.carts.SetQuantity(ctx, cart.ID, lineB.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.TotalProducts)
	assert.True(t, cart.FinalPrice.Equal(dec("30")))

	cart, err = f.carts.RemoveFromCart(ctx, cart.ID, lineA.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cart.TotalProducts)
	assert.True(t, cart.FinalPrice.IsZero())

	recomputed, err := f.carts.RecomputeTotals(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, recomputed.TotalProducts)
}

func TestCartService_AddToCart_IncrementsExistingLine(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	cart, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, cart.ID, f.a, 1)
	require.NoError(t, err)
	cart, err = f.carts.AddToCart(ctx, cart.ID, f.a, 1)
	require.NoError(t, err)

	require.Len(t, cart.Products, 1)
	assert.Equal(t, uint(2), cart.Products[0].Qty)
	assert.True(t, cart.Products[0].FinalPrice.Equal(dec("20")))
	assert.Equal(t, 1, cart.TotalProducts)
	assert.True(t, cart.FinalPrice.Equal(dec("20")))
}

func TestCartService_Errors(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	cart, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	other, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "someone-else"})
	require.NoError(t, err)
	other, err = f.carts.AddToCart(ctx, other.ID, f.a, 1)
	require.NoError(t, err)

	_, err = f.carts.AddToCart(ctx, cart.ID, models.ProductRef{Kind: models.KindCactus, ID: 999}, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.carts.AddToCart(ctx, cart.ID, models.ProductRef{Kind: "fern", ID: f.a.ID}, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.carts.AddToCart(ctx, cart.ID, f.a, MaxLineQty+1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.carts.AddToCart(ctx, uuid.New(), f.a, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.carts.SetQuantity(ctx, cart.ID, other.Products[0].ID, 2)
	assert.ErrorIs(t, err, ErrNotFound, "line of another cart")
	_, err = f.carts.RemoveFromCart(ctx, cart.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartService_Checkout(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	customer, err := f.customer.GetOrCreateCustomer(ctx, "user-1")
	require.NoError(t, err)
	owner := Owner{CustomerID: &customer.ID}

	cart, err := f.carts.GetOrCreateCart(ctx, owner)
	require.NoError(t, err)
	assert.False(t, cart.ForAnonymousUser)

	_, err = f.carts.Checkout(ctx, cart.ID)
	assert.ErrorIs(t, err, ErrValidation, "empty cart")

	cart, err = f.carts.AddToCart(ctx, cart.ID, f.a, 1)
	require.NoError(t, err)
	require.NotNil(t, cart.Products[0].CustomerID)
	assert.Equal(t, customer.ID, *cart.Products[0].CustomerID)

	ordered, err := f.carts.Checkout(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, ordered.InOrder)

	_, err = f.carts.AddToCart(ctx, cart.ID, f.b, 1)
	assert.ErrorIs(t, err, ErrConflict)

	fresh, err := f.carts.GetOrCreateCart(ctx, owner)
	require.NoError(t, err)
	assert.NotEqual(t, cart.ID, fresh.ID)
	assert.Empty(t, fresh.Products)

	assert.Contains(t, f.events.Types(events.TopicCarts), events.CartCheckedOut)
}

func TestCartService_ClearCart(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	cart, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, cart.ID, f.a, 1)
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, cart.ID, f.b, 4)
	require.NoError(t, err)

	cart, err = f.carts.ClearCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Products)
	assert.Equal(t, 0, cart.TotalProducts)
	assert.True(t, cart.FinalPrice.IsZero())
}

func TestCartService_MergeAnonymousCart_Transfers(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	anon, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, anon.ID, f.a, 1)
	require.NoError(t, err)

	customer, err := f.customer.GetOrCreateCustomer(ctx, "user-1")
	require.NoError(t, err)

	merged, err := f.carts.MergeAnonymousCart(ctx, "anon", customer.ID)
	require.NoError(t, err)
	assert.Equal(t, anon.ID, merged.ID)
	require.NotNil(t, merged.OwnerID)
	assert.Equal(t, customer.ID, *merged.OwnerID)
	assert.False(t, merged.ForAnonymousUser)
	assert.Nil(t, merged.SessionKey)
	require.Len(t, merged.Products, 1)
	require.NotNil(t, merged.Products[0].CustomerID)

	_, err = f.carts.FindCart(ctx, Owner{SessionKey: "anon"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartService_MergeAnonymousCart_IncrementsCustomerCart(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	customer, err := f.customer.GetOrCreateCustomer(ctx, "user-1")
	require.NoError(t, err)
	own, err := f.carts.GetOrCreateCart(ctx, Owner{CustomerID: &customer.ID})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, own.ID, f.a, 2)
	require.NoError(t, err)

	anon, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, anon.ID, f.a, 1)
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, anon.ID, f.b, 1)
	require.NoError(t, err)

	merged, err := f.carts.MergeAnonymousCart(ctx, "anon", customer.ID)
	require.NoError(t, err)
	assert.Equal(t, own.ID, merged.ID)
	assert.Equal(t, 2, merged.TotalProducts)
	assert.Equal(t, uint(3), lineFor(t, merged, f.a).Qty)
	assert.Equal(t, uint(1), lineFor(t, merged, f.b).Qty)
	assert.True(t, merged.FinalPrice.Equal(dec("35.50")), merged.FinalPrice.String())

	_, err = f.repo.GetCart(ctx, anon.ID)
	assert.Error(t, err, "anonymous cart is deleted")

	again, err := f.carts.MergeAnonymousCart(ctx, "anon", customer.ID)
	require.NoError(t, err)
	assert.Equal(t, own.ID, again.ID)
}

func TestCartService_AddToCart_PinsLineToMax(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	cart, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, cart.ID, f.a, 600)
	require.NoError(t, err)
	cart, err = f.carts.AddToCart(ctx, cart.ID, f.a, 600)
	require.NoError(t, err)

	line := lineFor(t, cart, f.a)
	assert.Equal(t, uint(MaxLineQty), line.Qty)
	assert.True(t, line.FinalPrice.Equal(dec("9990")), line.FinalPrice.String())
	assert.True(t, cart.FinalPrice.Equal(dec("9990")))
}

func TestCartService_MergeAnonymousCart_PinsLineToMax(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	customer, err := f.customer.GetOrCreateCustomer(ctx, "user-1")
	require.NoError(t, err)
	own, err := f.carts.GetOrCreateCart(ctx, Owner{CustomerID: &customer.ID})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, own.ID, f.a, 600)
	require.NoError(t, err)

	anon, err := f.carts.GetOrCreateCart(ctx, Owner{SessionKey: "anon"})
	require.NoError(t, err)
	_, err = f.carts.AddToCart(ctx, anon.ID, f.a, 600)
	require.NoError(t, err)

	merged, err := f.carts.MergeAnonymousCart(ctx, "anon", customer.ID)
	require.NoError(t, err)
	line := lineFor(t, merged, f.a)
	assert.Equal(t, uint(MaxLineQty), line.Qty)
	assert.True(t, line.FinalPrice.Equal(dec("9990")), line.FinalPrice.String())
	assert.True(t, merged.FinalPrice.Equal(dec("9990")), merged.FinalPrice.String())

	// the merged line stays editable within the cap
	updated, err := f.carts.SetQuantity(ctx, merged.ID, line.ID, MaxLineQty)
	require.NoError(t, err)
	assert.Equal(t, uint(MaxLineQty), lineFor(t, updated, f.a).Qty)
}

// competingInsert registers a create callback that, the first time a row of
// type T is about to be inserted, inserts the row built by other first. It
// reproduces two requests racing to create the same row.
func competingInsert[T any](t *testing.T, db *gorm.DB, other func() *T) {
	t.Helper()
	var fired atomic.Bool
	require.NoError(t, db.Callback().Create().Before("gorm:begin_transaction").Register("test:competing_insert", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*T); !ok || !fired.CompareAndSwap(false, true) {
			return
		}
		if err := db.Create(other()).Error; err != nil {
			t.Errorf("competing insert: %v", err)
		}
	}))
}

func TestCartService_GetOrCreateCart_OneOpenCartPerOwner(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t)
	ctx := context.Background()

	customer, err := f.customer.GetOrCreateCustomer(ctx, "user-1")
	require.NoError(t, err)

	var winner *models.Cart
	competingInsert(t, f.repo.DB, func() *models.Cart {
		id := customer.ID
		winner = &models.Cart{OwnerID: &id}
		return winner
	})

	cart, err := f.carts.GetOrCreateCart(ctx, Owner{CustomerID: &customer.ID})
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, winner.ID, cart.ID)

	var open int64
	require.NoError(t, f.repo.DB.Model(&models.Cart{}).
		Where("owner_id = ? AND in_order = ?", customer.ID, false).Count(&open).Error)
	assert.Equal(t, int64(1), open)

	key := "anon"
	require.NoError(t, f.repo.CreateCart(ctx, &models.Cart{SessionKey: &key, ForAnonymousUser: true}))
	err = f.repo.CreateCart(ctx, &models.Cart{SessionKey: &key, ForAnonymousUser: true})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
