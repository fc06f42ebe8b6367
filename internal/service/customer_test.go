package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cactus_shop/internal/models"
	"github.com/Skotchmaster/cactus_shop/internal/transport"
)

func TestCustomerService_GetOrCreateCustomer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.customer.GetCustomer(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := f.customer.GetOrCreateCustomer(ctx, "user-1")
	require.NoError(t, err)
	second, err := f.customer.GetOrCreateCustomer(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = f.customer.GetOrCreateCustomer(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCustomerService_UpdateProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	phone := " +7 900 000-00-00 "
	c, err := f.customer.UpdateProfile(ctx, "user-1", transport.ProfileRequest{Phone: &phone})
	require.NoError(t, err)
	require.NotNil(t, c.Phone)
	assert.Equal(t, "+7 900 000-00-00", *c.Phone)
	assert.Nil(t, c.Address)

	address := "Cactus st. 1"
	_, err = f.customer.UpdateProfile(ctx, "user-1", transport.ProfileRequest{Address: &address})
	require.NoError(t, err)

	stored, err := f.customer.GetCustomer(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "+7 900 000-00-00", *stored.Phone)
	assert.Equal(t, "Cactus st. 1", *stored.Address)

	tooLong := strings.Repeat("1", 21)
	_, err = f.customer.UpdateProfile(ctx, "user-1", transport.ProfileRequest{Phone: &tooLong})
	assert.ErrorIs(t, err, ErrValidation)
	longAddress := strings.Repeat("a", 256)
	_, err = f.customer.UpdateProfile(ctx, "user-1", transport.ProfileRequest{Address: &longAddress})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCustomerService_GetOrCreateCustomer_ConcurrentFirstUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var winner *models.Customer
	competingInsert(t, f.repo.DB, func() *models.Customer {
		winner = &models.Customer{UserID: "user-9"}
		return winner
	})

	c, err := f.customer.GetOrCreateCustomer(ctx, "user-9")
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, winner.ID, c.ID)

	var n int64
	require.NoError(t, f.repo.DB.Model(&models.Customer{}).Where("user_id = ?", "user-9").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
