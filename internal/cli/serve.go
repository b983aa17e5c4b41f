package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/nile-squad/nile/internal/ratelimit"
	"github.com/nile-squad/nile/internal/rest"
	"github.com/nile-squad/nile/internal/socket"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(app App, rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over REST and WebSocket",
		Long: `Serve the catalog over REST and WebSocket.

REST routes live under /services; the WebSocket endpoint is /ws.
The process runs until SIGINT or SIGTERM, then drains in-flight
requests before exiting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(app, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(app App, opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(app, opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}

	exec, cleanup, err := buildExecutor(app, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	restOpts := []rest.Option{rest.WithCORS(cfg.CORS)}
	if cfg.RateLimit.Limit > 0 {
		limiter := ratelimit.New(cfg.RateLimit.RedisAddr, cfg.RateLimit.Limit, cfg.RateLimit.Window.Std())
		restOpts = append(restOpts, rest.WithLimiter(limiter))
	}

	mux := chi.NewRouter()
	mux.Mount("/", rest.New(exec, restOpts...).Router())
	mux.Handle("/ws", socket.New(exec))

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "name", cfg.Name, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
