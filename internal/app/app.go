package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/storekit/storefront-backend/internal/config"
	"github.com/storekit/storefront-backend/internal/events"
	"github.com/storekit/storefront-backend/internal/health"
	"github.com/storekit/storefront-backend/internal/observability"
	"github.com/storekit/storefront-backend/internal/service"
)

// App ties the HTTP server, background sweeper and observability runtime
// into one lifecycle. Run blocks until SIGINT/SIGTERM, then drains in
// order: HTTP first, background tasks, observability last.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Sweeper       *service.Sweeper
	Publisher     events.Publisher
	Readiness     *health.ProbeRunner

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	StopBackgroundTasks func()
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	sweeper *service.Sweeper,
	publisher events.Publisher,
	readiness *health.ProbeRunner,
	stopBackgroundTasks func(),
) *App {
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Server:                       server,
		Observability:                runtime,
		Sweeper:                      sweeper,
		Publisher:                    publisher,
		Readiness:                    readiness,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownHTTPDrainTimeout:     cfg.ShutdownHTTPDrainTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
		StopBackgroundTasks:          stopBackgroundTasks,
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.Logger.Info("http_server_starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if a.Sweeper != nil {
		group.Go(func() error {
			return a.Sweeper.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		return a.shutdown()
	})

	err := group.Wait()
	a.Logger.Info("app_stopped")
	return err
}

func (a *App) shutdown() error {
	a.Logger.Info("shutdown_started")
	deadline, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
	defer cancel()

	var errs []error

	drainCtx, drainCancel := context.WithTimeout(deadline, a.ShutdownHTTPDrainTimeout)
	if err := a.Server.Shutdown(drainCtx); err != nil {
		errs = append(errs, err)
	}
	drainCancel()

	if a.StopBackgroundTasks != nil {
		a.StopBackgroundTasks()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Observability != nil {
		obsCtx, obsCancel := context.WithTimeout(deadline, a.ShutdownObservabilityTimeout)
		if err := a.Observability.Shutdown(obsCtx); err != nil {
			errs = append(errs, err)
		}
		obsCancel()
	}
	return errors.Join(errs...)
}
