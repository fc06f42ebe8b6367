package httpserver

import (
	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/internal/service"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
)

func categoryResponse(c *models.Category) transport.CategoryResponse {
	return transport.CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		ProductKind: string(c.ProductKind),
		URL:         service.CategoryURL(c),
	}
}

func categoriesResponse(cats []models.Category) []transport.CategoryResponse {
	out := make([]transport.CategoryResponse, 0, len(cats))
	for i := range cats {
		out = append(out, categoryResponse(&cats[i]))
	}
	return out
}

func productResponse(imageURL func(string) string, v models.Variant) transport.ProductResponse {
	return transport.ProductResponse{
		Kind:     string(v.Kind()),
		URL:      service.ProductURL(v),
		ImageURL: imageURL(v.Base().Image),
		Product:  v,
	}
}

func productsResponse(imageURL func(string) string, items []models.Variant) []transport.ProductResponse {
	out := make([]transport.ProductResponse, 0, len(items))
	for _, v := range items {
		out = append(out, productResponse(imageURL, v))
	}
	return out
}

func cartResponse(imageURL func(string) string, cart *models.Cart) transport.CartResponse {
	resp := transport.CartResponse{
		ID:               cart.ID,
		TotalProducts:    cart.TotalProducts,
		FinalPrice:       cart.FinalPrice.StringFixed(2),
		InOrder:          cart.InOrder,
		ForAnonymousUser: cart.ForAnonymousUser,
		Products:         make([]transport.CartLineResponse, 0, len(cart.Products)),
	}
	for _, l := range cart.Products {
		line := transport.CartLineResponse{
			ID:         l.ID,
			Kind:       string(l.ProductKind),
			ProductID:  l.ProductID,
			Qty:        l.Qty,
			FinalPrice: l.FinalPrice.StringFixed(2),
		}
		if l.Product != nil {
			p := productResponse(imageURL, l.Product)
			line.Product = &p
		}
		resp.Products = append(resp.Products, line)
	}
	return resp
}
