package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/internal/repo"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
)

const (
	maxPhoneLen   = 20
	maxAddressLen = 255
)

type CustomerService struct {
	Repo *repo.GormRepo
}

// GetOrCreateCustomer returns the profile linked to an external user id.
func (s *CustomerService) GetOrCreateCustomer(ctx context.Context, userID string) (*models.Customer, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.Repo.GetOrCreateCustomer(ctx, userID)
}

func (s *CustomerService) GetCustomer(ctx context.Context, userID string) (*models.Customer, error) {
	c, err := s.Repo.GetCustomerByUserID(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err, "customer")
	}
	return c, nil
}

func (s *CustomerService) UpdateProfile(ctx context.Context, userID string, req transport.ProfileRequest) (*models.Customer, error) {
	var phone, address *string
	if req.Phone != nil {
		p := strings.TrimSpace(*req.Phone)
		if utf8.RuneCountInString(p) > maxPhoneLen {
			return nil, fmt.Errorf("%w: phone must not exceed %d characters", ErrValidation, maxPhoneLen)
		}
		phone = &p
	}
	if req.Address != nil {
		a := strings.TrimSpace(*req.Address)
		if utf8.RuneCountInString(a) > maxAddressLen {
			return nil, fmt.Errorf("%w: address must not exceed %d characters", ErrValidation, maxAddressLen)
		}
		address = &a
	}

	c, err := s.GetOrCreateCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateCustomerProfile(ctx, c, phone, address); err != nil {
		return nil, err
	}
	return c, nil
}
