package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/cactus_shop/internal/models"
)

func (r *GormRepo) GetCustomerByUserID(ctx context.Context, userID string) (*models.Customer, error) {
	var c models.Customer
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateCustomer returns the customer of userID, creating it on first
// use. Losing the insert race to a concurrent request returns the winner's row.
func (r *GormRepo) GetOrCreateCustomer(ctx context.Context, userID string) (*models.Customer, error) {
	var c models.Customer
	err := r.DB.WithContext(ctx).Where(models.Customer{UserID: userID}).FirstOrCreate(&c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.GetCustomerByUserID(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) UpdateCustomerProfile(ctx context.Context, c *models.Customer, phone, address *string) error {
	updates := map[string]any{}
	if phone != nil {
		updates["phone"] = *phone
		c.Phone = phone
	}
	if address != nil {
		updates["address"] = *address
		c.Address = address
	}
	if len(updates) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(c).Updates(updates).Error
}
