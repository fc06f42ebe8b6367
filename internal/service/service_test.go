package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cactus_shop/internal/cache"
	"github.com/Skotchmaster/cactus_shop/internal/events"
	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/internal/repo"
	"github.com/Skotchmaster/cactus_shop/internal/storage"
	"github.com/Skotchmaster/cactus_shop/internal/testutil"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
)

type published struct {
	Topic string
	Key   string
	Event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic, key, event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.Topic != topic {
			continue
		}
		switch ev := e.Event.(type) {
		case events.ProductEvent:
			out = append(out, ev.Type)
		case events.CartEvent:
			out = append(out, ev.Type)
		}
	}
	return out
}

type fixture struct {
	repo     *repo.GormRepo
	catalog  *CatalogService
	carts    *CartService
	customer *CustomerService
	cache    *cache.Memory
	disk     *storage.LocalDisk
	events   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := &repo.GormRepo{DB: testutil.NewDB(t)}
	disk, err := storage.NewLocal(t.TempDir(), "/media")
	require.NoError(t, err)
	mem := cache.NewMemory()
	pub := &recordingPublisher{}

	return &fixture{
		repo:     r,
		catalog:  NewCatalogService(CatalogService{Repo: r, Storage: disk, Cache: mem, Events: pub}),
		carts:    NewCartService(CartService{Repo: r, Events: pub}),
		customer: &CustomerService{Repo: r},
		cache:    mem,
		disk:     disk,
		events:   pub,
	}
}

func (f *fixture) category(t *testing.T, name, slug string, kind models.ProductKind) *models.Category {
	t.Helper()
	cat, err := f.catalog.CreateCategory(context.Background(), transport.CategoryRequest{
		Name: name, Slug: slug, ProductKind: string(kind),
	})
	require.NoError(t, err)
	return cat
}

func (f *fixture) product(t *testing.T, kind models.ProductKind, category, title, price string) models.Variant {
	t.Helper()
	v, err := f.catalog.CreateProduct(context.Background(), kind, transport.CreateProductRequest{
		Category: category,
		Title:    title,
		Price:    price,
	}, upload(t, 500, 500))
	require.NoError(t, err)
	return v
}

func upload(t *testing.T, w, h int) *transport.ImageUpload {
	data := testutil.PNG(t, w, h)
	return &transport.ImageUpload{Data: data, Size: int64(len(data)), Filename: "plant.png"}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
