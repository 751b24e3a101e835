package service

import (
	"coffee_shop/internal/app"
	"coffee_shop/internal/config"
	"coffee_shop/internal/pkg/auth"
	"coffee_shop/internal/pkg/authz"
	"coffee_shop/internal/pkg/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Service encapsulates the HTTP server configuration, including the application's business logic,
// HTTP handlers, the server's run address, and a logger for event and error logging.
type Service struct {
	handlers       *handlers
	app            *app.App
	runAddress     string
	allowedOrigins []string
	log            *logger.Logger
}

// NewService creates and initializes a new Service instance.
// It sets up the handlers using the provided application, configuration and logger.
func NewService(app *app.App, cfg *config.Config, l *logger.Logger) *Service {
	handlers := newHandlers(app, cfg.RequestTimeout, l)
	return &Service{
		handlers:       handlers,
		app:            app,
		runAddress:     cfg.ServerRunAddress,
		allowedOrigins: cfg.AllowedOrigins,
		log:            l,
	}
}

// RunAddress returns the address the HTTP server listens on.
func (service *Service) RunAddress() string {
	return service.runAddress
}

// NewRouter sets up and returns a new chi.Router instance with the necessary middleware and routes.
// Catalog listing, registration and login are public. Every other route requires a bearer
// token and is authorized for its action before the request body is read.
func (service *Service) NewRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(service.log.WithLogging())
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: service.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.NotFound(service.handlers.notFoundHandler)
	router.MethodNotAllowed(service.handlers.methodNotAllowedHandler)

	requireToken := auth.CheckJWTMiddleware(service.app)
	authorize := service.handlers.authorize

	router.Get("/", service.handlers.indexHandler)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", service.handlers.registerHandler)
		r.Post("/login", service.handlers.loginHandler)
		r.With(requireToken, authorize(authz.ActionLogout)).Post("/logout", service.handlers.logoutHandler)
	})

	router.Route("/coffee", func(r chi.Router) {
		r.Get("/", service.handlers.listCoffeesHandler)
		r.Group(func(r chi.Router) {
			r.Use(requireToken)
			r.With(authorize(authz.ActionAddItem)).Post("/", service.handlers.addCoffeeHandler)
			r.With(authorize(authz.ActionUpdateItem)).Put("/{id}", service.handlers.updateCoffeeHandler)
			r.With(authorize(authz.ActionDeleteItem)).Delete("/{id}", service.handlers.deleteCoffeeHandler)
		})
	})

	router.Route("/purchase", func(r chi.Router) {
		r.Use(requireToken)
		r.With(authorize(authz.ActionPurchase)).Post("/", service.handlers.purchaseHandler)
		r.With(authorize(authz.ActionViewHistory)).Get("/", service.handlers.historyHandler)
	})

	return router
}
