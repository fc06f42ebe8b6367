package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/cactus_shop/internal/config"
	"github.com/Skotchmaster/cactus_shop/internal/repo"
	"github.com/Skotchmaster/cactus_shop/internal/service"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
	pkgdb "github.com/Skotchmaster/cactus_shop/pkg/db"
)

// openRepo connects to DATABASE_URL only; migrate and seed need nothing else.
func openRepo(ctx context.Context) (*repo.GormRepo, func(), error) {
	dsn, err := config.LoadDB()
	if err != nil {
		return nil, nil, err
	}
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := pkgdb.Open(openCtx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return &repo.GormRepo{DB: db}, func() { closeDB(db) }, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openRepo(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		fmt.Println("Running migrations…")
		return r.Migrate(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin category of every product kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, closeFn, err := openRepo(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := r.Migrate(ctx); err != nil {
			return err
		}
		return seedCategories(ctx, service.NewCatalogService(service.CatalogService{Repo: r}))
	},
}

func seedCategories(ctx context.Context, catalog *service.CatalogService) error {
	for _, kind := range catalog.Registry.Kinds() {
		spec, _ := catalog.Registry.Lookup(kind)
		_, err := catalog.CreateCategory(ctx, transport.CategoryRequest{
			Name:        spec.DisplayName,
			Slug:        spec.CategorySlug,
			ProductKind: string(spec.Kind),
		})
		switch {
		case err == nil:
			fmt.Printf("created category %s\n", spec.CategorySlug)
		case errors.Is(err, service.ErrConflict):
			fmt.Printf("category %s already exists\n", spec.CategorySlug)
		default:
			return err
		}
	}
	return nil
}
