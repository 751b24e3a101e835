// Package service contains HTTP handler implementations for the coffee shop API endpoints.
// It orchestrates request parsing, calls the underlying business logic in the app package,
// maps failures to status codes, and writes JSON responses.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"coffee_shop/internal/app"
	"coffee_shop/internal/models"
	"coffee_shop/internal/pkg/apperrors"
	"coffee_shop/internal/pkg/auth"
	"coffee_shop/internal/pkg/authz"
	"coffee_shop/internal/pkg/logger"
	"coffee_shop/internal/storage"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

var (
	errMissingJSON = apperrors.New(apperrors.ErrInvalidInput, "missing JSON in request")
	errInvalidJSON = apperrors.New(apperrors.ErrInvalidInput, "invalid JSON in request")
	errNoIdentity  = apperrors.New(apperrors.ErrUnauthorized, "unauthorized")
	errNoRoute     = apperrors.New(apperrors.ErrNotFound, "not found")
)

// handlers aggregates dependencies needed by HTTP handlers,
// including the application business logic and logger.
type handlers struct {
	app            *app.App
	requestTimeout time.Duration
	log            *logger.Logger
}

// newHandlers initializes a new handlers instance with the provided app and logger dependencies.
func newHandlers(app *app.App, requestTimeout time.Duration, l *logger.Logger) *handlers {
	return &handlers{app: app, requestTimeout: requestTimeout, log: l}
}

// authorize returns middleware that lets the request through only if the authenticated
// user may perform action. It must run after auth.CheckJWTMiddleware.
func (handlers *handlers) authorize(action authz.Action) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(res http.ResponseWriter, req *http.Request) {
			userID, ok := auth.UserIDFromContext(req.Context())
			if !ok {
				handlers.writeError(res, req, errNoIdentity)
				return
			}

			ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
			defer cancel()

			if err := handlers.app.Authorize(ctx, userID, action); err != nil {
				handlers.writeError(res, req, err)
				return
			}
			h.ServeHTTP(res, req)
		}
		return http.HandlerFunc(fn)
	}
}

// indexHandler describes the API.
func (handlers *handlers) indexHandler(res http.ResponseWriter, req *http.Request) {
	handlers.writeJSON(res, req, http.StatusOK, apiDescription)
}

func (handlers *handlers) notFoundHandler(res http.ResponseWriter, req *http.Request) {
	handlers.writeError(res, req, errNoRoute)
}

func (handlers *handlers) methodNotAllowedHandler(res http.ResponseWriter, req *http.Request) {
	writeErrorResponse(res, "method not allowed", http.StatusMethodNotAllowed)
}

// registerHandler creates a regular user account.
func (handlers *handlers) registerHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	var registerRequest models.RegisterRequest
	if err := decodeJSON(req, &registerRequest); err != nil {
		handlers.writeError(res, req, err)
		return
	}

	userID, err := handlers.app.Register(ctx, registerRequest)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusCreated, models.RegisterResponse{Message: "User registered successfully", ID: userID})
}

// loginHandler exchanges credentials for an access token.
func (handlers *handlers) loginHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	var loginRequest models.LoginRequest
	if err := decodeJSON(req, &loginRequest); err != nil {
		handlers.writeError(res, req, err)
		return
	}

	token, err := handlers.app.Login(ctx, loginRequest)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusOK, models.LoginResponse{AccessToken: token})
}

// logoutHandler revokes the token that authenticated the request.
func (handlers *handlers) logoutHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	claims, ok := auth.ClaimsFromContext(req.Context())
	if !ok {
		handlers.writeError(res, req, errNoIdentity)
		return
	}

	if err := handlers.app.Logout(ctx, claims); err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusOK, models.MessageResponse{Message: "Successfully logged out"})
}

// listCoffeesHandler returns the whole catalog.
func (handlers *handlers) listCoffeesHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	coffees, err := handlers.app.ListCoffees(ctx)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusOK, coffees)
}

// addCoffeeHandler adds a coffee to the catalog. Admin only.
func (handlers *handlers) addCoffeeHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	var coffeeRequest models.CoffeeRequest
	if err := decodeJSON(req, &coffeeRequest); err != nil {
		handlers.writeError(res, req, err)
		return
	}

	coffee, err := handlers.app.AddCoffee(ctx, coffeeRequest)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusCreated, coffee)
}

// updateCoffeeHandler changes the supplied fields of a coffee. Admin only.
func (handlers *handlers) updateCoffeeHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	coffeeID, err := coffeeIDParam(req)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	var coffeeRequest models.CoffeeRequest
	if err := decodeJSON(req, &coffeeRequest); err != nil {
		handlers.writeError(res, req, err)
		return
	}

	coffee, err := handlers.app.UpdateCoffee(ctx, coffeeID, coffeeRequest)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusOK, coffee)
}

// deleteCoffeeHandler removes a coffee from the catalog. Admin only.
func (handlers *handlers) deleteCoffeeHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	coffeeID, err := coffeeIDParam(req)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	if err := handlers.app.DeleteCoffee(ctx, coffeeID); err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusOK, models.MessageResponse{Message: "Coffee deleted successfully"})
}

// purchaseHandler buys coffee for the authenticated user.
func (handlers *handlers) purchaseHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		handlers.writeError(res, req, errNoIdentity)
		return
	}

	var purchaseRequest models.PurchaseRequest
	if err := decodeJSON(req, &purchaseRequest); err != nil {
		handlers.writeError(res, req, err)
		return
	}

	purchase, err := handlers.app.Purchase(ctx, userID, purchaseRequest)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusCreated, purchase)
}

// historyHandler returns the purchases of the authenticated user.
func (handlers *handlers) historyHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), handlers.requestTimeout)
	defer cancel()

	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		handlers.writeError(res, req, errNoIdentity)
		return
	}

	purchases, err := handlers.app.History(ctx, userID)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	handlers.writeJSON(res, req, http.StatusOK, purchases)
}

// coffeeIDParam reads the {id} URL parameter. Ids that are not positive integers, or do not
// fit into int64, cannot exist.
func coffeeIDParam(req *http.Request) (int64, error) {
	coffeeID, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil || coffeeID <= 0 {
		return 0, storage.ErrCoffeeNotFound
	}
	return coffeeID, nil
}

// decodeJSON reads a JSON request body into v. Bodies with another content type, or no body
// at all, are rejected as missing JSON.
func decodeJSON(req *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errMissingJSON
	}

	decoder := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errMissingJSON
		}
		return apperrors.Wrap(apperrors.ErrInvalidInput, errInvalidJSON.Message, err)
	}
	return nil
}

// statusCode maps an error kind to its HTTP status.
func statusCode(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.ErrInvalidInput, apperrors.ErrConflict, apperrors.ErrInsufficientStock:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs failures the client cannot act on and writes the client-facing message.
func (handlers *handlers) writeError(res http.ResponseWriter, req *http.Request, err error) {
	status := statusCode(err)
	switch status {
	case http.StatusInternalServerError:
		handlers.log.ForRequest(req.Context()).Errorf("Request failed: %s", err)
	case http.StatusServiceUnavailable:
		handlers.log.ForRequest(req.Context()).Warnf("Store temporarily unavailable: %s", err)
		res.Header().Set("Retry-After", "1")
	}

	writeErrorResponse(res, apperrors.Message(err), status)
}

func (handlers *handlers) writeJSON(res http.ResponseWriter, req *http.Request, statusCode int, v any) {
	result, err := json.Marshal(v)
	if err != nil {
		handlers.writeError(res, req, err)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	res.Write(result)
}

func writeErrorResponse(res http.ResponseWriter, errorInfo string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Error: errorInfo})
}
