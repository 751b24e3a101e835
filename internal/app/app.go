// Package app provides the core business logic for the coffee shop application.
// It handles registration, login and logout, catalog administration, purchases and
// purchase history. Input is validated here before anything reaches the storage layer,
// which performs every mutation atomically.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"coffee_shop/internal/models"
	"coffee_shop/internal/pkg/apperrors"
	"coffee_shop/internal/pkg/auth"
	"coffee_shop/internal/pkg/authz"
	"coffee_shop/internal/pkg/logger"
	"coffee_shop/internal/pkg/security"
	"coffee_shop/internal/storage"
)

// Predefined errors for invalid requests.
var (
	// ErrMissingRegistrationFields indicates that username, email or password is not provided.
	ErrMissingRegistrationFields = apperrors.New(apperrors.ErrInvalidInput, "missing required fields")
	// ErrMissingUsernameOrPassword indicates that either the username or password is not provided.
	ErrMissingUsernameOrPassword = apperrors.New(apperrors.ErrInvalidInput, "missing username or password")
	// ErrInvalidCredentials hides whether the username or the password was wrong.
	ErrInvalidCredentials = apperrors.New(apperrors.ErrUnauthorized, "invalid username or password")
	// ErrMissingCoffeeFields indicates an incomplete coffee on creation.
	ErrMissingCoffeeFields = apperrors.New(apperrors.ErrInvalidInput, "missing required fields")
	// ErrPasswordTooLong rejects passwords that bcrypt cannot hash.
	ErrPasswordTooLong = apperrors.New(apperrors.ErrInvalidInput,
		fmt.Sprintf("password must be at most %d bytes", security.MaxPasswordLength))
	// ErrStockOutOfRange rejects stock values the catalog cannot store.
	ErrStockOutOfRange = apperrors.New(apperrors.ErrInvalidInput,
		fmt.Sprintf("stock must be at most %d", math.MaxInt32))
	// ErrEmptyCoffeeName rejects blank names on creation and update.
	ErrEmptyCoffeeName = apperrors.New(apperrors.ErrInvalidInput, "name must not be empty")
	// ErrNothingToUpdate indicates an update request without any known field.
	ErrNothingToUpdate = apperrors.New(apperrors.ErrInvalidInput, "no fields to update")
	// ErrMissingCoffeeID indicates a purchase request without coffee_id.
	ErrMissingCoffeeID = apperrors.New(apperrors.ErrInvalidInput, "missing required fields")
	// ErrInvalidQuantity indicates a purchase quantity that is absent, zero or negative.
	ErrInvalidQuantity = apperrors.New(apperrors.ErrInvalidInput, "quantity must be positive")
	// ErrNotAdmin is returned when an existing non-admin account is named as the admin.
	ErrNotAdmin = apperrors.New(apperrors.ErrConflict, "user exists and is not an admin")
)

// App encapsulates the application logic and dependencies required to process requests.
// It interacts with the storage layer, issues tokens and consults the authorizer.
type App struct {
	db     storage.Storage    // Database storage layer for persistent data operations.
	tokens *auth.TokenManager // Issues and verifies access tokens.
	authz  *authz.Authorizer  // Decides which user may perform which action.
	log    *logger.Logger     // Logger for logging application events and errors.
}

// NewApp creates and returns a new instance of App with the provided storage, token manager
// and logger dependencies.
func NewApp(db storage.Storage, tokens *auth.TokenManager, log *logger.Logger) *App {
	return &App{db: db, tokens: tokens, authz: authz.NewAuthorizer(db), log: log}
}

// Register creates a regular user and returns its id. Admin rights are never granted here.
func (app *App) Register(ctx context.Context, req models.RegisterRequest) (int64, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return 0, ErrMissingRegistrationFields
	}

	user, err := app.createUser(ctx, req.Username, req.Email, req.Password, false)
	if err != nil {
		return 0, err
	}

	app.log.Sugar().Infof("Registered user %d", user.ID)
	return user.ID, nil
}

// createUser rejects a taken username or email before hashing the password.
// Concurrent registrations are still caught by the unique constraints of the store.
func (app *App) createUser(ctx context.Context, username, email, password string, isAdmin bool) (*models.User, error) {
	if len(password) > security.MaxPasswordLength {
		return nil, ErrPasswordTooLong
	}

	if _, err := app.db.GetUserByUsername(ctx, username); err == nil {
		return nil, storage.ErrUsernameTaken
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, err
	}

	if _, err := app.db.GetUserByEmail(ctx, email); err == nil {
		return nil, storage.ErrEmailTaken
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, err
	}

	hash, err := security.HashPassword(password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, err
	}

	return app.db.CreateUser(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	})
}

// Login checks the credentials and issues an access token.
func (app *App) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	if req.Username == "" || req.Password == "" {
		return "", ErrMissingUsernameOrPassword
	}

	user, err := app.db.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := security.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	return app.tokens.GenerateToken(user.ID)
}

// Verify resolves a bearer token to its claims. It lets App act as the token verifier of
// the authentication middleware.
func (app *App) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	return app.tokens.Verify(ctx, token)
}

// Logout revokes the token described by claims until it would have expired anyway.
func (app *App) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return auth.ErrInvalidToken
	}

	var expiresAt *time.Time
	if claims.ExpiresAt != nil {
		expiresAt = &claims.ExpiresAt.Time
	}

	return app.db.RevokeToken(ctx, claims.ID, expiresAt)
}

// Authorize reports whether userID may perform action.
func (app *App) Authorize(ctx context.Context, userID int64, action authz.Action) error {
	return app.authz.Authorize(ctx, userID, action)
}

// ListCoffees returns the whole catalog.
func (app *App) ListCoffees(ctx context.Context) ([]models.Coffee, error) {
	return app.db.ListCoffees(ctx)
}

// AddCoffee validates a complete coffee and adds it to the catalog.
func (app *App) AddCoffee(ctx context.Context, req models.CoffeeRequest) (*models.Coffee, error) {
	if req.Name == nil || req.Description == nil || req.Price == nil || req.Stock == nil {
		return nil, ErrMissingCoffeeFields
	}
	if err := validatePatch(req.Patch()); err != nil {
		return nil, err
	}

	return app.db.CreateCoffee(ctx, &models.Coffee{
		Name:        *req.Name,
		Description: *req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
	})
}

// UpdateCoffee changes only the fields present in req.
func (app *App) UpdateCoffee(ctx context.Context, coffeeID int64, req models.CoffeeRequest) (*models.Coffee, error) {
	patch := req.Patch()
	if patch.Empty() {
		return nil, ErrNothingToUpdate
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	return app.db.UpdateCoffee(ctx, coffeeID, patch)
}

func validatePatch(patch models.CoffeePatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return ErrEmptyCoffeeName
	}
	if (patch.Price != nil && patch.Price.IsNegative()) || (patch.Stock != nil && *patch.Stock < 0) {
		return storage.ErrNegativeValue
	}
	if patch.Stock != nil && *patch.Stock > math.MaxInt32 {
		return ErrStockOutOfRange
	}
	return nil
}

// DeleteCoffee removes a catalog item that no purchase refers to.
func (app *App) DeleteCoffee(ctx context.Context, coffeeID int64) error {
	return app.db.DeleteCoffee(ctx, coffeeID)
}

// Purchase validates the request and buys the coffee for userID.
// Stock checks and the stock decrement happen atomically in the storage layer.
func (app *App) Purchase(ctx context.Context, userID int64, req models.PurchaseRequest) (*models.Purchase, error) {
	if req.CoffeeID == nil {
		return nil, ErrMissingCoffeeID
	}
	if req.Quantity == nil || *req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	purchase, err := app.db.BuyCoffee(ctx, userID, *req.CoffeeID, *req.Quantity)
	if err != nil {
		return nil, err
	}

	app.log.Sugar().Infof("User %d bought %d of coffee %d", userID, purchase.Quantity, purchase.CoffeeID)
	return purchase, nil
}

// History returns the purchases of userID, oldest first.
func (app *App) History(ctx context.Context, userID int64) ([]models.Purchase, error) {
	return app.db.GetPurchases(ctx, userID)
}

// EnsureAdmin creates an admin account unless one with the same username exists.
// It reports whether a new account was created.
func (app *App) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	if username == "" || email == "" || password == "" {
		return false, ErrMissingRegistrationFields
	}

	existing, err := app.db.GetUserByUsername(ctx, username)
	if err == nil {
		if !existing.IsAdmin {
			return false, ErrNotAdmin
		}
		return false, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return false, err
	}

	user, err := app.createUser(ctx, username, email, password, true)
	if err != nil {
		return false, err
	}

	app.log.Sugar().Infof("Created admin user %d", user.ID)
	return true, nil
}
