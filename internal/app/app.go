// Package app wires configuration, storage and tracing for the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentdesk/internal/accounts"
	"agentdesk/internal/config"
	"agentdesk/internal/db"
	"agentdesk/internal/history"
	"agentdesk/internal/keyring"
	"agentdesk/internal/market"
	"agentdesk/internal/trace"
)

type App struct {
	Config   *config.Config
	DB       *db.DB
	Prices   market.Source
	Accounts *accounts.Store
	History  *history.Store

	shutdown func(context.Context) error
}

type options struct {
	tracing bool
	secrets keyring.Store
}

type Option func(*options)

// WithTracing installs the tracer provider with the account log processor.
func WithTracing() Option {
	return func(o *options) { o.tracing = true }
}

// WithSecrets replaces the keyring used to resolve missing secrets.
func WithSecrets(s keyring.Store) Option {
	return func(o *options) { o.secrets = s }
}

// Open loads the configuration and opens the database.
func Open(ctx context.Context, opts ...Option) (*App, error) {
	o := options{secrets: keyring.NewEnvStore(keyring.NewSystemStore())}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load(o.secrets)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return New(ctx, cfg, o.tracing)
}

// New builds an App from an already loaded configuration.
func New(ctx context.Context, cfg *config.Config, tracing bool) (*App, error) {
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	prices := market.New(database, cfg.Services.PolygonAPIKey)
	a := &App{
		Config:   cfg,
		DB:       database,
		Prices:   prices,
		Accounts: accounts.NewStore(database, prices),
		History:  history.NewStore(database),
	}

	if tracing {
		shutdown, err := trace.Init(ctx, cfg.TraceConfig(), trace.NewLogProcessor(a.Accounts))
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		a.shutdown = shutdown
	}

	slog.Debug("app opened", "db", cfg.DB.Path, "tracing", tracing)
	return a, nil
}

// ServerEnv is the environment handed to MCP servers started from this
// process, so self-launched servers share the database and price source.
func (a *App) ServerEnv() []string {
	env := []string{config.EnvDBPath + "=" + a.Config.DB.Path}
	if k := a.Config.Services.PolygonAPIKey; k != "" {
		env = append(env, keyring.EnvVars[keyring.KeyPolygon]+"="+k)
	}
	return env
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
