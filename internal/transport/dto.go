package transport

import "github.com/google/uuid"

type CategoryRequest struct {
	Name        string `json:"name"         form:"name"`
	Slug        string `json:"slug"         form:"slug"`
	ProductKind string `json:"product_kind" form:"product_kind"`
}

type PatchCategoryRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	ProductKind *string `json:"product_kind"`
}

// CreateProductRequest is read from a multipart form. Price stays a string
// so it is parsed as an exact decimal. Attributes hold the variant-specific
// form fields.
type CreateProductRequest struct {
	Category    string
	Title       string
	Slug        string
	Description *string
	Price       string
	Attributes  map[string]string
}

// PatchProductRequest carries only the fields present in the form.
type PatchProductRequest struct {
	Category    *string
	Title       *string
	Slug        *string
	Description *string
	Price       *string
	Attributes  map[string]string
}

type ImageUpload struct {
	Data     []byte
	Size     int64
	Filename string
}

type ImageRules struct {
	MinWidth      int    `json:"min_width"`
	MinHeight     int    `json:"min_height"`
	MaxWidth      int    `json:"max_width"`
	MaxHeight     int    `json:"max_height"`
	CanonicalSize int    `json:"canonical_size"`
	MaxBytes      int64  `json:"max_bytes"`
	MaxPixels     int64  `json:"max_pixels"`
	Help          string `json:"help"`
}

type ProductResponse struct {
	Kind     string `json:"kind"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url"`
	Product  any    `json:"product"`
}

type CategoryResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	ProductKind string `json:"product_kind"`
	URL         string `json:"url"`
}

type AddToCartRequest struct {
	Kind      string `json:"kind"`
	ProductID uint   `json:"product_id"`
	Qty       uint   `json:"qty"`
}

type SetQuantityRequest struct {
	Qty *uint `json:"qty"`
}

type CartLineResponse struct {
	ID         uuid.UUID        `json:"id"`
	Kind       string           `json:"kind"`
	ProductID  uint             `json:"product_id"`
	Qty        uint             `json:"qty"`
	FinalPrice string           `json:"final_price"`
	Product    *ProductResponse `json:"product,omitempty"`
}

type CartResponse struct {
	ID               uuid.UUID          `json:"id"`
	TotalProducts    int                `json:"total_products"`
	FinalPrice       string             `json:"final_price"`
	InOrder          bool               `json:"in_order"`
	ForAnonymousUser bool               `json:"for_anonymous_user"`
	Products         []CartLineResponse `json:"products"`
}

type ProfileRequest struct {
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}
