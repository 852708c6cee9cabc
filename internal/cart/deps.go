package cart

import (
	"context"
	"errors"

	"github.com/Skotchmaster/perfume_shop/internal/auth"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

var (
	// ErrLoad wraps the gateway error of a failed authenticated load.
	ErrLoad = errors.New("cart: load failed")
	// ErrNotConfirmed is returned when an optimistic change was rejected and the
	// snapshot was resynchronized from the server.
	ErrNotConfirmed = errors.New("cart: change not confirmed, resynced")
	ErrInvalidLine  = errors.New("cart: line needs a product id and a positive quantity")
	ErrNoIdentity   = errors.New("cart: identity is missing or expired")
)

// LocalStore is the device-local guest cart.
type LocalStore interface {
	Read(ctx context.Context) []models.CartLine
	Write(ctx context.Context, lines []models.CartLine) error
	Clear(ctx context.Context) error
}

// RemoteGateway is the server-side cart of an authenticated user.
type RemoteGateway interface {
	FetchAll(ctx context.Context, id auth.Identity) ([]models.CartLine, error)
	UpsertLine(ctx context.Context, id auth.Identity, productID, variantID string, delta int) error
	RemoveLine(ctx context.Context, id auth.Identity, serverLineID, variantID string) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Mode int

const (
	Guest Mode = iota
	Authenticated
)

func (m Mode) String() string {
	if m == Authenticated {
		return "authenticated"
	}
	return "guest"
}
