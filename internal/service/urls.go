package service

import (
	"github.com/Skotchmaster/cactus_shop/internal/models"
)

func CategoryURL(c *models.Category) string {
	return "/category/" + c.Slug
}

func ProductURL(v models.Variant) string {
	return "/products/" + string(v.Kind()) + "/" + v.Base().Slug
}
