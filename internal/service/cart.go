package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cactus_shop/internal/events"
	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/internal/repo"
	"github.com/Skotchmaster/cactus_shop/pkg/logging"
	"github.com/Skotchmaster/cactus_shop/pkg/metrics"
)

const MaxLineQty = models.MaxLineQty

type CartService struct {
	Repo     *repo.GormRepo
	Registry *Registry
	Events   events.Publisher
}

func NewCartService(s CartService) *CartService {
	if s.Registry == nil {
		s.Registry = DefaultRegistry()
	}
	if s.Events == nil {
		s.Events = events.Nop{}
	}
	return &s
}

// Owner identifies whose cart is wanted: a customer, or an anonymous
// session when CustomerID is nil.
type Owner struct {
	CustomerID *uint
	SessionKey string
}

func (o Owner) Anonymous() bool { return o.CustomerID == nil }

// GetOrCreateCart returns the owner's open cart, creating an empty one when
// there is none.
func (s *CartService) GetOrCreateCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if owner.Anonymous() && owner.SessionKey == "" {
		return nil, fmt.Errorf("%w: session key is required", ErrValidation)
	}
	cart, err := s.activeCart(ctx, owner)
	if err == nil {
		s.hydrate(ctx, cart)
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = &models.Cart{}
	if owner.Anonymous() {
		key := owner.SessionKey
		cart.SessionKey = &key
		cart.ForAnonymousUser = true
	} else {
		id := *owner.CustomerID
		cart.OwnerID = &id
	}
	if err := s.Repo.CreateCart(ctx, cart); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// a concurrent request opened the cart first
		existing, rErr := s.activeCart(ctx, owner)
		if rErr != nil {
			return nil, rErr
		}
		s.hydrate(ctx, existing)
		return existing, nil
	}
	cart.Products = []models.CartProduct{}
	return cart, nil
}

func (s *CartService) activeCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	if owner.Anonymous() {
		return s.Repo.ActiveCartBySession(ctx, owner.SessionKey)
	}
	return s.Repo.ActiveCartByOwner(ctx, *owner.CustomerID)
}

// FindCart is GetOrCreateCart without the create.
func (s *CartService) FindCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := s.activeCart(ctx, owner)
	if err != nil {
		return nil, mapRepoErr(err, "cart")
	}
	return cart, nil
}

// AddToCart adds qty of the product. A product already in the cart has its
// line incremented instead of getting a second line, up to MaxLineQty.
func (s *CartService) AddToCart(ctx context.Context, cartID uuid.UUID, ref models.ProductRef, qty uint) (*models.Cart, error) {
	if _, ok := s.Registry.Lookup(ref.Kind); !ok {
		return nil, fmt.Errorf("%w: unknown product kind %q", ErrNotFound, ref.Kind)
	}
	if qty == 0 {
		qty = 1
	}
	if qty > MaxLineQty {
		return nil, fmt.Errorf("%w: qty must not exceed %d", ErrValidation, MaxLineQty)
	}
	cart, err := s.Repo.AddToCart(ctx, cartID, ref, qty)
	if err != nil {
		return nil, mapRepoErr(err, "cart or product")
	}
	return s.changed(ctx, "add", events.CartUpdated, cart), nil
}

// SetQuantity changes one line; qty 0 removes it.
func (s *CartService) SetQuantity(ctx context.Context, cartID, lineID uuid.UUID, qty uint) (*models.Cart, error) {
	if qty > MaxLineQty {
		return nil, fmt.Errorf("%w: qty must not exceed %d", ErrValidation, MaxLineQty)
	}
	cart, err := s.Repo.SetQuantity(ctx, cartID, lineID, qty)
	if err != nil {
		return nil, mapRepoErr(err, "cart line")
	}
	return s.changed(ctx, "set_qty", events.CartUpdated, cart), nil
}

func (s *CartService) RemoveFromCart(ctx context.Context, cartID, lineID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Repo.RemoveLine(ctx, cartID, lineID)
	if err != nil {
		return nil, mapRepoErr(err, "cart line")
	}
	return s.changed(ctx, "remove", events.CartUpdated, cart), nil
}

func (s *CartService) ClearCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Repo.ClearCart(ctx, cartID)
	if err != nil {
		return nil, mapRepoErr(err, "cart")
	}
	return s.changed(ctx, "clear", events.CartUpdated, cart), nil
}

// RecomputeTotals rewrites total_products and final_price from the lines.
// Mutations already do this in their own transaction.
func (s *CartService) RecomputeTotals(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Repo.RecomputeTotals(ctx, cartID)
	if err != nil {
		return nil, mapRepoErr(err, "cart")
	}
	s.hydrate(ctx, cart)
	return cart, nil
}

// Checkout marks a non-empty cart as ordered. The owner gets a fresh cart on
// the next GetOrCreateCart.
func (s *CartService) Checkout(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Repo.Checkout(ctx, cartID)
	if err != nil {
		return nil, mapRepoErr(err, "cart")
	}
	return s.changed(ctx, "checkout", events.CartCheckedOut, cart), nil
}

// MergeAnonymousCart hands the session's cart over to the customer. When the
// customer already has an open cart the anonymous lines are added to it with
// the increment rule and the anonymous cart is deleted. A missing anonymous
// cart is not an error: the customer's cart is returned as is.
func (s *CartService) MergeAnonymousCart(ctx context.Context, sessionKey string, customerID uint) (*models.Cart, error) {
	anon, err := s.Repo.ActiveCartBySession(ctx, sessionKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.GetOrCreateCart(ctx, Owner{CustomerID: &customerID})
	}
	if err != nil {
		return nil, err
	}
	cart, err := s.Repo.MergeCarts(ctx, anon.ID, customerID)
	if err != nil {
		return nil, mapRepoErr(err, "cart")
	}
	logging.FromContext(ctx).Info("cart_merged", "anonymous_cart", anon.ID, "cart", cart.ID, "customer_id", customerID)
	return s.changed(ctx, "merge", events.CartMerged, cart), nil
}

func (s *CartService) changed(ctx context.Context, op, typ string, cart *models.Cart) *models.Cart {
	metrics.CartMutations.WithLabelValues(op).Inc()
	if err := s.Events.PublishEvent(ctx, events.TopicCarts, cart.ID.String(), events.NewCartEvent(typ, cart)); err != nil {
		logging.FromContext(ctx).Warn("kafka_publish_error", "topic", events.TopicCarts, "cart", cart.ID, "error", err)
	}
	s.hydrate(ctx, cart)
	return cart
}

// hydrate attaches the referenced products to the lines for display.
func (s *CartService) hydrate(ctx context.Context, cart *models.Cart) {
	for i := range cart.Products {
		line := &cart.Products[i]
		v, err := s.Repo.GetProduct(ctx, line.Ref())
		if err != nil {
			logging.FromContext(ctx).Warn("cart_line_product_missing", "cart", cart.ID, "kind", line.ProductKind, "id", line.ProductID, "error", err)
			continue
		}
		line.Product = v
	}
}
