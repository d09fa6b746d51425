package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	qghttp "github.com/Strob0t/quorumgate/internal/adapter/http"
	qgotel "github.com/Strob0t/quorumgate/internal/adapter/otel"
	"github.com/Strob0t/quorumgate/internal/middleware"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, configPath, "", os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	a.sampler.Start(ctx)
	defer a.sampler.Stop()

	cfg := a.cfg
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(qghttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(qghttp.SecurityHeaders)
	if cfg.OTEL.Enabled {
		r.Use(qgotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	qghttp.MountRoutes(r, &qghttp.Handlers{
		Coordinator:  a.coordinator,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		// A pipeline run may take up to the SLA budget before it is cut off.
		WriteTimeout: cfg.SLA.MaxValidationTime + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "agents", len(a.coordinator.Isolation.Agents()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
