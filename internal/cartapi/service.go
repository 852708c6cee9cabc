package cartapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/perfume_shop/pkg/hash"
	"github.com/Skotchmaster/perfume_shop/pkg/tokens"
)

var (
	ErrValidation   = errors.New("validation")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

type CartService struct {
	Repo *GormRepo
}

func (s *CartService) GetCart(ctx context.Context, userID string) ([]LineDTO, error) {
	if userID == "" {
		return nil, fmt.Errorf("userid is required: %w", ErrValidation)
	}
	return s.Repo.GetCart(ctx, userID)
}

// AdjustQuantity applies a signed delta. It is never an absolute quantity.
func (s *CartService) AdjustQuantity(ctx context.Context, userID, productID, variantID string, delta int) error {
	if userID == "" || productID == "" {
		return fmt.Errorf("userid and productid are required: %w", ErrValidation)
	}
	if delta == 0 {
		return fmt.Errorf("qty must be non-zero: %w", ErrValidation)
	}

	err := s.Repo.AdjustQuantity(ctx, userID, productID, variantID, delta)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("cart line not found: %w", ErrNotFound)
	}
	return err
}

func (s *CartService) RemoveLine(ctx context.Context, userID, cartID, variantID string) error {
	if userID == "" {
		return fmt.Errorf("userid is required: %w", ErrValidation)
	}
	id, err := uuid.Parse(cartID)
	if err != nil {
		return fmt.Errorf("cartid must be a uuid: %w", ErrValidation)
	}

	err = s.Repo.RemoveLine(ctx, userID, id, variantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("cart line not found: %w", ErrNotFound)
	}
	return err
}

// AuthService exchanges the API client credentials for a bearer token.
type AuthService struct {
	Email        string
	PasswordHash string
	Secret       []byte
	TTL          time.Duration
}

func (s *AuthService) Validate(email, password string) (string, time.Time, error) {
	if email == "" || password == "" {
		return "", time.Time{}, fmt.Errorf("email and password are required: %w", ErrValidation)
	}
	if email != s.Email || !hash.CheckPassword(s.PasswordHash, password) {
		return "", time.Time{}, ErrUnauthorized
	}
	return tokens.IssueAccess(s.Secret, email, "api", s.TTL)
}
