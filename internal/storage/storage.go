// Package storage provides primitives for connecting to and interacting with data storage systems.
// It defines the Storage interface along with a PostgreSQL implementation and an in-memory one.
// Both keep the credential store, the coffee catalog, the purchase ledger and the token
// revocation list, and both perform a purchase as a single atomic unit.
package storage

import (
	"context"
	"math"
	"time"

	"coffee_shop/internal/models"
	"coffee_shop/internal/pkg/apperrors"
)

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks

// Errors returned by every Storage implementation.
var (
	ErrUserNotFound      = apperrors.New(apperrors.ErrNotFound, "user not found")
	ErrCoffeeNotFound    = apperrors.New(apperrors.ErrNotFound, "coffee not found")
	ErrInsufficientStock = apperrors.New(apperrors.ErrInsufficientStock, "insufficient stock")
	ErrUsernameTaken     = apperrors.New(apperrors.ErrConflict, "username already exists")
	ErrEmailTaken        = apperrors.New(apperrors.ErrConflict, "email already exists")
	ErrCoffeeReferenced  = apperrors.New(apperrors.ErrConflict, "coffee has purchases and cannot be deleted")
	ErrNegativeValue     = apperrors.New(apperrors.ErrInvalidInput, "price and stock must not be negative")
	ErrValueOutOfRange   = apperrors.New(apperrors.ErrInvalidInput, "price or stock is out of range")
)

// Storage defines the methods required for data storage operations.
type Storage interface {
	// Close closes the underlying connections.
	Close()

	// Credential store.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Catalog store.
	ListCoffees(ctx context.Context) ([]models.Coffee, error)
	CreateCoffee(ctx context.Context, coffee *models.Coffee) (*models.Coffee, error)
	UpdateCoffee(ctx context.Context, coffeeID int64, patch models.CoffeePatch) (*models.Coffee, error)
	DeleteCoffee(ctx context.Context, coffeeID int64) error

	// Purchase ledger. BuyCoffee decrements stock and records the purchase atomically.
	BuyCoffee(ctx context.Context, userID, coffeeID int64, quantity int) (*models.Purchase, error)
	GetPurchases(ctx context.Context, userID int64) ([]models.Purchase, error)

	// Token revocation. A nil expiresAt keeps the entry forever.
	RevokeToken(ctx context.Context, tokenID string, expiresAt *time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// stockInRange reports whether stock fits the INTEGER column of the catalog.
func stockInRange(stock int) bool {
	return stock <= math.MaxInt32
}
