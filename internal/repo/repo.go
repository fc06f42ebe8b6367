package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/cactus_shop/internal/models"
)

var (
	ErrUnknownKind = errors.New("unknown product kind")
	ErrCartClosed  = errors.New("cart is already ordered")
	ErrEmptyCart   = errors.New("cart is empty")
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(models.All()...)
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
