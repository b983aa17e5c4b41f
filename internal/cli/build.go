package cli

import (
	"errors"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/config"
	"github.com/nile-squad/nile/internal/executor"
	"github.com/nile-squad/nile/internal/store"
)

// loadConfig reads the configured file, or falls back to an in-memory
// default document when no --config was given.
func loadConfig(app App, opts *RootOptions) (*config.ServerConfig, error) {
	if opts.Config == "" {
		return &config.ServerConfig{Name: app.Name, Addr: ":8080"}, nil
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "could not load configuration", err)
	}
	return cfg, nil
}

// buildExecutor assembles the full engine: store, auth, catalog. The
// returned cleanup closes the store and is safe to call on a nil store.
func buildExecutor(app App, cfg *config.ServerConfig) (*executor.Executor, func(), error) {
	var st *store.Store
	cleanup := func() {}

	if cfg.StorePath != "" {
		opened, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, cleanup, WrapExitError(ExitCommandError, "could not open store", err)
		}
		st = opened
		cleanup = func() { opened.Close() }
	}

	authOpts, err := cfg.AuthOptions()
	if err != nil {
		cleanup()
		return nil, func() {}, WrapExitError(ExitCommandError, "could not resolve auth options", err)
	}
	authOpts.Sessions = app.Sessions
	authOpts.Handler = app.AuthHandler

	exec, err := executor.New(executor.Config{
		Services: app.Services(st),
		Store:    st,
		Auth:     authOpts,
		OnAction: app.OnAction,
	})
	if err != nil {
		cleanup()
		var ae *auth.ConfigError
		if errors.As(err, &ae) || errors.Is(err, executor.ErrNoAuthHandler) {
			return nil, func() {}, WrapExitError(ExitFailure, "auth configuration failed", err)
		}
		return nil, func() {}, WrapExitError(ExitFailure, "catalog assembly failed", err)
	}
	return exec, cleanup, nil
}
