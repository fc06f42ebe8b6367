package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductKind string

const (
	KindCactus    ProductKind = "cactus"
	KindSucculent ProductKind = "succulent"
)

var Kinds = []ProductKind{KindCactus, KindSucculent}

func (k ProductKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ProductRef points at one row of one variant table.
type ProductRef struct {
	Kind ProductKind `json:"kind"`
	ID   uint        `json:"id"`
}

type Category struct {
	ID          uint        `gorm:"primaryKey;autoIncrement"        json:"id"`
	Name        string      `gorm:"size:255;not null"               json:"name"`
	Slug        string      `gorm:"size:255;not null;uniqueIndex"   json:"slug"`
	ProductKind ProductKind `gorm:"size:32;not null;default:''"     json:"product_kind"`
}

// Product holds the fields shared by every variant. It is embedded, never
// stored on its own.
type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	CategoryID  uint            `gorm:"not null;index"                    json:"category_id"`
	Title       string          `gorm:"size:255;not null"                 json:"title"`
	Slug        string          `gorm:"size:255;not null;uniqueIndex"     json:"slug"`
	Image       string          `gorm:"size:512;not null"                 json:"image"`
	Description *string         `gorm:"type:text"                         json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:decimal(9,2);not null"        json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Variant is implemented by every concrete product type.
type Variant interface {
	Kind() ProductKind
	Base() *Product
	TableName() string
	Attributes() map[string]string
	// SetAttribute reports false for a name the variant does not have.
	SetAttribute(name, value string) bool
}

type CactusProduct struct {
	Product
	Needles           string `gorm:"size:255" json:"needles"`
	Flower            string `gorm:"size:255" json:"flower"`
	Height            string `gorm:"size:255" json:"height"`
	WateringFrequency string `gorm:"size:255" json:"watering_frequency"`
	PotDiameter       string `gorm:"size:255" json:"pot_diameter"`
}

func (*CactusProduct) Kind() ProductKind { return KindCactus }
func (p *CactusProduct) Base() *Product { return &p.Product }
func (CactusProduct) TableName() string { return "cactus_products" }

func (p *CactusProduct) Attributes() map[string]string {
	return map[string]string{
		"needles":            p.Needles,
		"flower":             p.Flower,
		"height":             p.Height,
		"watering_frequency": p.WateringFrequency,
		"pot_diameter":       p.PotDiameter,
	}
}

func (p *CactusProduct) SetAttribute(name, value string) bool {
	switch name {
	case "needles":
		p.Needles = value
	case "flower":
		p.Flower = value
	case "height":
		p.Height = value
	case "watering_frequency":
		p.WateringFrequency = value
	case "pot_diameter":
		p.PotDiameter = value
	default:
		return false
	}
	return true
}

type SucculentProduct struct {
	Product
	Flower            string `gorm:"size:255" json:"flower"`
	Height            string `gorm:"size:255" json:"height"`
	WateringFrequency string `gorm:"size:255" json:"watering_frequency"`
	PotDiameter       string `gorm:"size:255" json:"pot_diameter"`
}

func (*SucculentProduct) Kind() ProductKind { return KindSucculent }
func (p *SucculentProduct) Base() *Product { return &p.Product }
func (SucculentProduct) TableName() string { return "succulent_products" }

func (p *SucculentProduct) Attributes() map[string]string {
	return map[string]string{
		"flower":             p.Flower,
		"height":             p.Height,
		"watering_frequency": p.WateringFrequency,
		"pot_diameter":       p.PotDiameter,
	}
}

func (p *SucculentProduct) SetAttribute(name, value string) bool {
	switch name {
	case "flower":
		p.Flower = value
	case "height":
		p.Height = value
	case "watering_frequency":
		p.WateringFrequency = value
	case "pot_diameter":
		p.PotDiameter = value
	default:
		return false
	}
	return true
}

// NewVariant returns an empty product of the given kind, or nil.
func NewVariant(kind ProductKind) Variant {
	switch kind {
	case KindCactus:
		return &CactusProduct{}
	case KindSucculent:
		return &SucculentProduct{}
	}
	return nil
}
