package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"informer/internal/config"
	"informer/internal/logger"
	"informer/internal/store"
	"informer/internal/store/tradelock"
	decisionhttp "informer/internal/transport/http/decisions"
)

// App owns the decision service and its long-lived resources.
type App struct {
	cfg     *config.Config
	service *Service
	server  *decisionhttp.Server
	store   store.Store
	locks   *tradelock.Store
	closers []func() error

	Summary *StartupSummary
}

// NewApp builds the application from cfg without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

func (a *App) Service() *Service {
	if a == nil {
		return nil
	}
	return a.service
}

// Store is the run log, or nil when it is disabled.
func (a *App) Store() store.Store {
	if a == nil {
		return nil
	}
	return a.store
}

// Decide runs one decision through the service.
func (a *App) Decide(ctx context.Context, req DecideRequest) (DecideResult, error) {
	if a == nil || a.service == nil {
		return DecideResult{}, fmt.Errorf("app not initialized")
	}
	return a.service.Decide(ctx, req)
}

// Serve exposes the read API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Log()
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("decision http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases the run log and the trade lock, newest first.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
