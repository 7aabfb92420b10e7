package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"claimsync/internal/api"
	"claimsync/internal/auth/oidc"
	"claimsync/internal/observability"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the OpenID login and callback endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if a.initSentry() {
		defer func() {
			logger.Info("flushing sentry events", "deadline", "2s")
			sentry.Flush(2 * time.Second)
		}()
	}

	be, err := openBackend(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}()

	metrics := observability.NewMetrics(cfg.Metrics)
	if metrics != nil {
		logger.Info("metrics enabled", "namespace", cfg.Metrics.Namespace, "version", cfg.Metrics.Version)
	} else {
		logger.Info("metrics disabled")
	}

	provCfg, err := cfg.ProviderConfig()
	if err != nil {
		return err
	}
	discoverCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	provider, err := oidc.NewProvider(discoverCtx, provCfg)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("openid provider discovered", "issuer", provCfg.IssuerURL, "redirect_url", provCfg.RedirectURL)

	reconciler, err := oidc.NewReconciler(be.users, cfg.ReconcilerConfig(),
		oidc.WithLogger(logger),
		oidc.WithMetrics(metrics),
		oidc.WithAuditLogger(be.audit),
	)
	if err != nil {
		return err
	}

	proxies, err := api.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return err
	}
	rateCfg := api.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RPS,
		Burst:             cfg.RateLimit.Burst,
		Proxies:           proxies,
	}
	if rateCfg.Enabled() {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
			"trusted_proxies", len(proxies.CIDRs),
		)
	} else {
		logger.Info("rate limiting disabled")
	}

	srv := api.NewServer(logger,
		api.WithMetrics(metrics),
		api.WithRateLimit(rateCfg),
		api.WithPinger(be.pinger),
	)
	api.NewOIDCServer(srv, provider, reconciler).RegisterOIDCRoutes()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("claimsync listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
