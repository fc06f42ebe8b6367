package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxLineQty caps the quantity of a single line item.
const MaxLineQty = 999

// Cart is a customer's or an anonymous session's basket. An owner or session
// has at most one open (not in_order) cart; partial unique indexes hold that.
type Cart struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"                     json:"id"`
	OwnerID          *uint           `gorm:"uniqueIndex:idx_open_cart_owner,where:in_order = false"           json:"owner_id,omitempty"`
	SessionKey       *string         `gorm:"size:64;uniqueIndex:idx_open_cart_session,where:in_order = false" json:"-"`
	Products         []CartProduct   `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"products"`
	TotalProducts    int             `gorm:"not null;default:0"                       json:"total_products"`
	FinalPrice       decimal.Decimal `gorm:"type:decimal(9,2);not null;default:0"     json:"final_price"`
	InOrder          bool            `gorm:"not null;default:false"                   json:"in_order"`
	ForAnonymousUser bool            `gorm:"not null;default:false"                   json:"for_anonymous_user"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Cart) TableName() string {
	return "carts"
}

// CartProduct is one line item. The product is referenced by kind and id
// because it may live in any variant table.
type CartProduct struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"                               json:"id"`
	CustomerID  *uint           `gorm:"index"                                              json:"customer_id,omitempty"`
	CartID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product_ref" json:"cart_id"`
	ProductKind ProductKind     `gorm:"size:32;not null;uniqueIndex:idx_cart_product_ref"   json:"product_kind"`
	ProductID   uint            `gorm:"not null;uniqueIndex:idx_cart_product_ref"           json:"product_id"`
	Qty         uint            `gorm:"not null;default:1;check:qty > 0"                    json:"qty"`
	FinalPrice  decimal.Decimal `gorm:"type:decimal(9,2);not null"                          json:"final_price"`
	CreatedAt   time.Time       `json:"created_at"`

	Product Variant `gorm:"-" json:"product,omitempty"`
}

func (p *CartProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (CartProduct) TableName() string {
	return "cart_products"
}

func (p *CartProduct) Ref() ProductRef {
	return ProductRef{Kind: p.ProductKind, ID: p.ProductID}
}
