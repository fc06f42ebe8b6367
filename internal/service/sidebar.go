package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/pkg/logging"
	"github.com/Skotchmaster/cactus_shop/pkg/metrics"
)

// The sidebar is cached under a generation token. Invalidation writes a new
// token instead of deleting the entry, so a computation that started before
// it stores its result under the old generation where nobody reads it.
const (
	sidebarGenKey  = "catalog:sidebar:gen"
	sidebarDataKey = "catalog:sidebar:v:"
)

type SidebarEntry struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Count int64  `json:"count"`
}

// CategoriesForSidebar returns one entry per category in id order. Count is
// the number of products of the category's kind that reference it, 0 when
// the kind is unset or unknown.
func (s *CatalogService) CategoriesForSidebar(ctx context.Context) ([]SidebarEntry, error) {
	l := logging.FromContext(ctx)

	gen := s.sidebarGeneration(ctx)

	var cached []SidebarEntry
	hit, err := s.Cache.GetJSON(ctx, sidebarDataKey+gen, &cached)
	if err != nil {
		l.Warn("sidebar_cache_read_error", "error", err)
	}
	if hit {
		metrics.SidebarCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.SidebarCache.WithLabelValues("miss").Inc()

	cats, err := s.Repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.ProductKind]map[uint]int64)
	entries := make([]SidebarEntry, 0, len(cats))
	for i := range cats {
		c := &cats[i]
		entry := SidebarEntry{Name: c.Name, URL: CategoryURL(c)}

		if _, ok := s.Registry.Lookup(c.ProductKind); ok {
			byCat, seen := counts[c.ProductKind]
			if !seen {
				if byCat, err = s.Repo.CountByCategory(ctx, c.ProductKind); err != nil {
					return nil, err
				}
				counts[c.ProductKind] = byCat
			}
			entry.Count = byCat[c.ID]
		}
		entries = append(entries, entry)
	}

	if err := s.Cache.SetJSON(ctx, sidebarDataKey+gen, entries, s.SidebarTTL); err != nil {
		l.Warn("sidebar_cache_write_error", "error", err)
	}
	return entries, nil
}

// sidebarGeneration returns the current token, starting a generation when
// there is none.
func (s *CatalogService) sidebarGeneration(ctx context.Context) string {
	var gen string
	hit, err := s.Cache.GetJSON(ctx, sidebarGenKey, &gen)
	if err != nil {
		logging.FromContext(ctx).Warn("sidebar_cache_read_error", "error", err)
	}
	if hit && gen != "" {
		return gen
	}
	return s.newSidebarGeneration(ctx)
}

func (s *CatalogService) newSidebarGeneration(ctx context.Context) string {
	gen := uuid.NewString()
	if err := s.Cache.SetJSON(ctx, sidebarGenKey, gen, 0); err != nil {
		logging.FromContext(ctx).Warn("sidebar_cache_invalidate_error", "error", err)
	}
	return gen
}

// invalidateSidebar starts a new generation and drops the previous one's
// entry.
func (s *CatalogService) invalidateSidebar(ctx context.Context) {
	var old string
	hit, _ := s.Cache.GetJSON(ctx, sidebarGenKey, &old)
	s.newSidebarGeneration(ctx)
	if !hit || old == "" {
		return
	}
	if err := s.Cache.Delete(ctx, sidebarDataKey+old); err != nil {
		logging.FromContext(ctx).Warn("sidebar_cache_invalidate_error", "error", err)
	}
}
