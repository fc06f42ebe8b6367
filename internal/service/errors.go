package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/cactus_shop/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
	// ErrMinResolution rejects an image below the minimum resolution. The
	// product is never persisted.
	ErrMinResolution = errors.New("image resolution is below the minimum")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
)

func mapRepoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repo.ErrUnknownKind):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repo.ErrCartClosed):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repo.ErrEmptyCart):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	default:
		return err
	}
}
