// Package models defines the data structures used throughout the application.
// It includes the persisted entities (users, coffees, purchases) and the request and
// response payloads of the HTTP API.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers: {"price": 3.5}.
	decimal.MarshalJSONWithoutQuotes = true
}

// User represents a registered user.
// PasswordHash holds the bcrypt hash and never leaves the service.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Coffee represents a catalog item with its available stock.
type Coffee struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// CoffeePatch lists the fields of a partial coffee update. Nil fields stay unchanged.
type CoffeePatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
}

// Empty reports whether the patch changes nothing.
func (p CoffeePatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Stock == nil
}

// Purchase is an immutable ledger entry.
// CoffeeName and TotalPrice are captured when the purchase is made.
type Purchase struct {
	ID         int64           `db:"id" json:"id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	CoffeeID   int64           `db:"coffee_id" json:"coffee_id"`
	CoffeeName string          `db:"coffee_name" json:"coffee_name"`
	Quantity   int             `db:"quantity" json:"quantity"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	CreatedAt  time.Time       `db:"created_at" json:"purchase_date"`
}

// RegisterRequest represents the registration payload.
// Any is_admin field sent by the client is ignored.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// LoginRequest represents the login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// CoffeeRequest is the payload for creating and updating coffees.
// Pointers distinguish absent fields from zero values.
type CoffeeRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

// Patch converts the request into a partial update.
func (r CoffeeRequest) Patch() CoffeePatch {
	return CoffeePatch{Name: r.Name, Description: r.Description, Price: r.Price, Stock: r.Stock}
}

// PurchaseRequest is the payload for buying coffee.
type PurchaseRequest struct {
	CoffeeID *int64 `json:"coffee_id"`
	Quantity *int   `json:"quantity"`
}

// MessageResponse is a generic success payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents a generic error response payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
