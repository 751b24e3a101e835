package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coffee_shop/internal/app"
	"coffee_shop/internal/config"
	"coffee_shop/internal/pkg/auth"
	"coffee_shop/internal/pkg/logger"
	"coffee_shop/internal/service"
	"coffee_shop/internal/storage"

	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "coffeeshop",
		Usage: "Coffee Shop API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "optional file with environment variables",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "apply migrations, create the bootstrap admin and run the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:  "create-admin",
				Usage: "create an admin account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
				},
				Action: createAdmin,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// environment holds what every command needs.
type environment struct {
	cfg *config.Config
	log *logger.Logger
	db  *storage.PostgreSQL
}

func setup(c *cli.Context) (*environment, error) {
	cfg, err := config.LoadConfig(c.String("env-file"))
	if err != nil {
		return nil, err
	}

	l, err := logger.CreateLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := storage.NewPostgreSQL(cfg.DatabaseURI, cfg.LockTimeout, l)
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, log: l, db: db}, nil
}

func (env *environment) newApp() *app.App {
	tokens := auth.NewTokenManager(env.cfg.JWTSecretKey, env.cfg.TokenTTL, env.db)
	return app.NewApp(env.db, tokens, env.log)
}

func migrate(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	defer env.db.Close()

	return env.db.Migrate(c.Context)
}

func createAdmin(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	defer env.db.Close()

	created, err := env.newApp().EnsureAdmin(c.Context, c.String("username"), c.String("email"), c.String("password"))
	if err != nil {
		return err
	}
	if !created {
		env.log.Sugar().Infof("Admin %s already exists", c.String("username"))
	}
	return nil
}

func serve(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	defer env.db.Close()

	if err := env.db.Migrate(c.Context); err != nil {
		return err
	}

	application := env.newApp()
	if env.cfg.AdminPassword != "" {
		if _, err := application.EnsureAdmin(c.Context, env.cfg.AdminUsername, env.cfg.AdminEmail, env.cfg.AdminPassword); err != nil {
			return err
		}
	}

	service := service.NewService(application, env.cfg, env.log)

	const readHeaderTimeout = 5 * time.Second
	server := &http.Server{Addr: service.RunAddress(), Handler: service.NewRouter(), ReadHeaderTimeout: readHeaderTimeout}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		const shutdownTimeout = 30 * time.Second
		shutdownCtx, cancel := context.WithTimeout(serverCtx, shutdownTimeout)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			env.log.Sugar().Errorf("Server shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	env.log.Sugar().Infof("Listening on %s", service.RunAddress())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()
	return nil
}
