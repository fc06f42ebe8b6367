// Package events publishes catalog and cart domain events to Kafka.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/cactus_shop/internal/models"
)

const (
	TopicProducts = "product_events"
	TopicCarts    = "cart_events"
)

const (
	ProductCreated = "product_created"
	ProductUpdated = "product_updated"
	ProductDeleted = "product_deleted"

	CartUpdated    = "cart_updated"
	CartCheckedOut = "cart_checked_out"
	CartMerged     = "cart_merged"
)

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
	Close() error
}

type ProductEvent struct {
	Type       string             `json:"type"`
	Kind       models.ProductKind `json:"kind"`
	ProductID  uint               `json:"product_id"`
	CategoryID uint               `json:"category_id"`
	Slug       string             `json:"slug"`
	Title      string             `json:"title"`
	Price      decimal.Decimal    `json:"price"`
	At         time.Time          `json:"at"`
}

func NewProductEvent(typ string, v models.Variant) ProductEvent {
	p := v.Base()
	return ProductEvent{
		Type:       typ,
		Kind:       v.Kind(),
		ProductID:  p.ID,
		CategoryID: p.CategoryID,
		Slug:       p.Slug,
		Title:      p.Title,
		Price:      p.Price,
		At:         time.Now().UTC(),
	}
}

type CartEvent struct {
	Type          string          `json:"type"`
	CartID        string          `json:"cart_id"`
	OwnerID       *uint           `json:"owner_id,omitempty"`
	TotalProducts int             `json:"total_products"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	At            time.Time       `json:"at"`
}

func NewCartEvent(typ string, c *models.Cart) CartEvent {
	return CartEvent{
		Type:          typ,
		CartID:        c.ID.String(),
		OwnerID:       c.OwnerID,
		TotalProducts: c.TotalProducts,
		FinalPrice:    c.FinalPrice,
		At:            time.Now().UTC(),
	}
}

// Nop drops every event. Used when KAFKA_BROKERS is empty.
type Nop struct{}

func (Nop) PublishEvent(context.Context, string, string, any) error { return nil }
func (Nop) Close() error { return nil }
