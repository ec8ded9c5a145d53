package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-users-api/app/db"
	"github.com/FACorreiaa/go-users-api/config"
	"github.com/FACorreiaa/go-users-api/internal/api/auth"
	"github.com/FACorreiaa/go-users-api/internal/api/user"
	"github.com/FACorreiaa/go-users-api/internal/router"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Tokens      *auth.TokenService
	AuthHandler *auth.HandlerImpl
	UserHandler *user.HandlerImpl
}

// NewContainer opens the connection pool and wires repositories, services
// and handlers on top of it.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(ctx, dbConfig, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	c := New(cfg, logger, user.NewPostgresUserRepo(pool, logger))
	c.Pool = pool
	return c, nil
}

// New wires the application around an already constructed user store.
func New(cfg *config.Config, logger *slog.Logger, userRepo user.UserRepo) *Container {
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenService(cfg.JWT)

	authService := auth.NewAuthService(userRepo, hasher, tokens, logger)
	authHandlerImpl := auth.NewAuthHandlerImpl(authService, logger)

	userService := user.NewUserService(userRepo, hasher, logger)
	userHandlerImpl := user.NewHandlerImpl(userService, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Tokens:      tokens,
		AuthHandler: authHandlerImpl,
		UserHandler: userHandlerImpl,
	}
}

// RouterConfig returns the dependencies the API router needs.
func (c *Container) RouterConfig() *router.Config {
	return &router.Config{
		AuthHandler:    c.AuthHandler,
		UserHandler:    c.UserHandler,
		Verifier:       c.Tokens,
		Logger:         c.Logger,
		AllowedOrigins: c.Config.CORS.AllowedOrigins,
		Timeout:        c.Config.Server.Timeout,
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
