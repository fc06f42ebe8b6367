package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cactus_shop/internal/repo"
	"github.com/Skotchmaster/cactus_shop/internal/service"
	"github.com/Skotchmaster/cactus_shop/internal/testutil"
)

func TestSeedCategories_Idempotent(t *testing.T) {
	ctx := context.Background()
	r := &repo.GormRepo{DB: testutil.NewDB(t)}
	catalog := service.NewCatalogService(service.CatalogService{Repo: r})

	require.NoError(t, seedCategories(ctx, catalog))
	require.NoError(t, seedCategories(ctx, catalog))

	cats, err := catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "cactus", cats[0].Slug)
	assert.Equal(t, "Cactuses", cats[0].Name)
	assert.Equal(t, "succulent", cats[1].Slug)
}
