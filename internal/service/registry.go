package service

import (
	"fmt"

	"github.com/Skotchmaster/cactus_shop/internal/models"
)

// VariantSpec describes one concrete product type.
type VariantSpec struct {
	Kind models.ProductKind
	// CategorySlug is the only category slug the admin may pick for this kind.
	CategorySlug string
	DisplayName  string
	Attributes   []string
}

func (v VariantSpec) New() models.Variant {
	return models.NewVariant(v.Kind)
}

type Registry struct {
	order []models.ProductKind
	specs map[models.ProductKind]VariantSpec
}

func NewRegistry(specs ...VariantSpec) *Registry {
	r := &Registry{specs: make(map[models.ProductKind]VariantSpec, len(specs))}
	for _, s := range specs {
		r.order = append(r.order, s.Kind)
		r.specs[s.Kind] = s
	}
	return r
}

func DefaultRegistry() *Registry {
	return NewRegistry(
		VariantSpec{
			Kind:         models.KindCactus,
			CategorySlug: "cactus",
			DisplayName:  "Cactuses",
			Attributes:   []string{"needles", "flower", "height", "watering_frequency", "pot_diameter"},
		},
		VariantSpec{
			Kind:         models.KindSucculent,
			CategorySlug: "succulent",
			DisplayName:  "Succulents",
			Attributes:   []string{"flower", "height", "watering_frequency", "pot_diameter"},
		},
	)
}

func (r *Registry) Kinds() []models.ProductKind {
	return append([]models.ProductKind(nil), r.order...)
}

func (r *Registry) Lookup(kind models.ProductKind) (VariantSpec, bool) {
	s, ok := r.specs[kind]
	return s, ok
}

// Parse resolves a kind taken from a URL or request body.
func (r *Registry) Parse(raw string) (VariantSpec, error) {
	s, ok := r.specs[models.ProductKind(raw)]
	if !ok {
		return VariantSpec{}, fmt.Errorf("%w: unknown product kind %q", ErrNotFound, raw)
	}
	return s, nil
}
