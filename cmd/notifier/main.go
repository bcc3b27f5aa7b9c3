package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ultimathule1/Event-Manager/internal/application/dispatch"
	"github.com/ultimathule1/Event-Manager/internal/application/lifecycle"
	"github.com/ultimathule1/Event-Manager/internal/application/notification"
	"github.com/ultimathule1/Event-Manager/internal/bootstrap"
	"github.com/ultimathule1/Event-Manager/internal/clock"
	"github.com/ultimathule1/Event-Manager/internal/controller"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
	infraRedis "github.com/ultimathule1/Event-Manager/internal/infrastructure/redis"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "event-manager", "event_manager")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config
	store := app.Store
	clk := clock.NewSystem()

	// --- Use cases ---
	notifier := notification.NewNotifier(store.Outbox, clk, app.Metrics, app.Logger)
	cancelEventUC := notification.NewCancelEventUseCase(store.Events, notifier, store.TxManager)
	scheduler := lifecycle.NewScheduler(store.Events, notifier, store.TxManager, clk, app.Metrics, app.Logger)

	// --- Outbox dispatch ---
	claimer := dispatch.NewClaimer(store.Outbox, store.TxManager, clk, cfg.Dispatch.LeaseDuration)
	processors := map[outbox.Type]dispatch.Processor{
		outbox.TypeSendChangeNotification: dispatch.NewNotificationProcessor(app.Publisher, cfg.Broker.Topic),
	}
	dispatcher := dispatch.NewDispatcher(claimer, store.Outbox, processors, dispatch.Config{
		BatchSize:      cfg.Dispatch.BatchSize,
		Workers:        cfg.Dispatch.Workers,
		PublishTimeout: cfg.Dispatch.PublishTimeout,
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
	}, clk, app.Metrics, app.Logger)

	var locker dispatch.Locker
	if app.Redis != nil {
		locker = infraRedis.NewLockManager(app.Redis)
	}
	janitor := dispatch.NewJanitor(store.Outbox, locker, clk, cfg.Janitor.Retention, cfg.Janitor.LockTTL, app.Metrics, app.Logger)

	// --- Ops HTTP server ---
	router := controller.NewRouter(controller.RouterDeps{
		Checks:    app.Checks,
		CancelUC:  cancelEventUC,
		Metrics:   app.Metrics,
		OpsConfig: cfg.Ops,
		JWTSecret: cfg.Auth.JWTSecret,
	})
	addr := fmt.Sprintf(":%d", cfg.Ops.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Ops.ReadTimeout,
		WriteTimeout: cfg.Ops.WriteTimeout,
		IdleTimeout:  cfg.Ops.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Lifecycle scheduler (WAIT_START -> STARTED -> FINISHED).
	g.Go(func() error {
		return scheduler.Run(gCtx, cfg.Scheduler.LifecycleInterval)
	})

	// 2. Outbox dispatcher (claims due tasks and publishes them).
	g.Go(func() error {
		return dispatcher.Run(gCtx, cfg.Dispatch.Interval)
	})

	// 3. Outbox janitor (purges old tasks).
	g.Go(func() error {
		return janitor.Run(gCtx, cfg.Janitor.Interval)
	})

	// 4. Ops server.
	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting ops HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	// 5. Shutdown on signal or on the first failing component.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
		case <-quit:
			app.Logger.Info().Msg("Shutting down...")
			cancel()
		}

		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error().Err(err).Msg("Ops server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Notifier error")
	}
	app.Logger.Info().Msg("Notifier exited")
}
