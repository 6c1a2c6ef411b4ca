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

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solar-field-backend/config"
	"solar-field-backend/internal/api"
	"solar-field-backend/internal/auth"
	"solar-field-backend/internal/connectivity"
	"solar-field-backend/internal/notification"
	"solar-field-backend/internal/remote"
	"solar-field-backend/internal/syncer"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the sync orchestrator and the push workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(rootOpts.ConfigPath)
		},
	}
}

// newObserver probes the configured URL, or reports online unconditionally
// when no probe is configured.
func newObserver(cfg config.ConnectivityConfig, logger *zap.Logger) (connectivity.Observer, func(context.Context)) {
	if cfg.ProbeURL == "" {
		manual := connectivity.NewManual(connectivity.Offline)
		manual.SetOnline(true)
		return manual, func(context.Context) {}
	}
	prober := connectivity.NewProber(cfg.ProbeURL, cfg.ProbeInterval, logger)
	return prober, prober.Run
}

func newOrchestrator(a *app, obs connectivity.Observer, manualOnly bool) *syncer.Orchestrator {
	return syncer.New(a.store, remote.New(a.cfg.Remote, a.logger), obs, syncer.Options{
		SettleDelay: a.cfg.Sync.SettleDelay,
		Interval:    a.cfg.Sync.Interval,
		ManualOnly:  manualOnly,
		Logger:      a.logger.Named("sync"),
	})
}

func newJWTService(cfg config.AuthConfig) *auth.JWTService {
	if cfg.JWTSecret == "" {
		return nil
	}
	return auth.NewJWTService(cfg.JWTSecret, cfg.Issuer, time.Duration(cfg.TokenTTLHours)*time.Hour)
}

func serve(configPath string) error {
	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	var webpushOptions *webpush.Options
	if a.cfg.Push.PublicKey != "" && a.cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  a.cfg.Push.PublicKey,
			VAPIDPrivateKey: a.cfg.Push.PrivateKey,
			Subscriber:      a.cfg.Push.Subject,
			TTL:             a.cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(a.cfg.WorkerPool.Size, a.db, webpushOptions, logger.Named("push"))
		pool.Start(ctx)
		a.store.OnMutation(pool.Listener())
	} else {
		logger.Warn("VAPID keys are not configured; push notifications disabled")
	}

	// The orchestrator subscribes before the first probe can publish.
	obs, runObserver := newObserver(a.cfg.Connectivity, logger.Named("connectivity"))
	autoSync := a.cfg.Sync.AutoSync()
	orch := newOrchestrator(a, obs, !autoSync)
	defer orch.Close()
	go runObserver(ctx)

	if autoSync {
		go orch.Run(ctx)
	} else {
		logger.Info("Background sync disabled; manual sync only")
	}

	handler := api.NewHandler(api.Deps{
		Store:    a.store,
		Sync:     orch,
		Sites:    a.sites,
		Webpush:  webpushOptions,
		Location: a.cfg.Schedule.Location,
		Logger:   logger.Named("api"),
	})
	jwtService := newJWTService(a.cfg.Auth)
	if jwtService == nil {
		logger.Warn("No JWT secret configured; the API is unauthenticated")
	}

	router := api.NewRouter(handler, a.cfg.Server, jwtService)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("Shutdown signal received, stopping services")
	case err := <-serveErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logger.Info("Server gracefully stopped")
	return nil
}
