// Package authz decides which authenticated principal may perform which action.
// The role model is static and two-tier: admins may mutate the catalog, every resolvable
// identity may purchase and read its own history. Roles are always read from the store,
// never from the token, so revoking admin rights takes effect on the next request.
package authz

import (
	"context"
	"errors"

	"coffee_shop/internal/models"
	"coffee_shop/internal/pkg/apperrors"
)

// Action names an operation guarded by the authorizer.
type Action string

const (
	ActionListItems   Action = "list_items"
	ActionAddItem     Action = "add_item"
	ActionUpdateItem  Action = "update_item"
	ActionDeleteItem  Action = "delete_item"
	ActionPurchase    Action = "purchase"
	ActionViewHistory Action = "view_history"
	ActionLogout      Action = "logout"
)

// RequiresAdmin reports whether the action is reserved for admins.
func (a Action) RequiresAdmin() bool {
	switch a {
	case ActionAddItem, ActionUpdateItem, ActionDeleteItem:
		return true
	}
	return false
}

var (
	// ErrUserNotFound is returned when the token subject no longer resolves to a user.
	ErrUserNotFound = apperrors.New(apperrors.ErrUnauthorized, "user not found")
	// ErrAdminRequired is returned when a non-admin attempts an admin action.
	ErrAdminRequired = apperrors.New(apperrors.ErrForbidden, "admin privileges required")
)

// UserFinder loads users by id.
type UserFinder interface {
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)
}

// Authorizer maps an authenticated identity to an allow or deny decision.
type Authorizer struct {
	users UserFinder
}

// NewAuthorizer returns an Authorizer that resolves identities through users.
func NewAuthorizer(users UserFinder) *Authorizer {
	return &Authorizer{users: users}
}

// Authorize returns nil when userID may perform action. Denials are ErrUserNotFound or
// ErrAdminRequired; store failures are returned unchanged.
func (a *Authorizer) Authorize(ctx context.Context, userID int64, action Action) error {
	if action == ActionListItems {
		return nil
	}

	user, err := a.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	if action.RequiresAdmin() && !user.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}
