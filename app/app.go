package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo"
	"github.com/Black-And-White-Club/mundo-bingo/config"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/eventbus"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/observability"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// Modules holds the feature modules the app runs.
type Modules struct {
	BingoModule *bingo.Module
}

type App struct {
	Config          *config.Config
	Observability   *observability.Provider
	DB              *bun.DB
	EventBus        eventbus.EventBus
	WatermillRouter *message.Router
	HTTPRouter      chi.Router
	Modules         Modules
	logger          *slog.Logger
}

// NewApp loads configuration and connects every dependency the modules need.
// Anything opened before a failure is closed again.
func NewApp(ctx context.Context, configPath string) (_ *App, err error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	obs := observability.Init(observability.Config{
		Environment: cfg.Observability.Environment,
		LogLevel:    cfg.Observability.LogLevel,
		ServiceName: cfg.Observability.ServiceName,
	})
	logger := obs.Logger

	app := &App{Config: cfg, Observability: obs, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	app.DB, err = openDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if err = migrateDB(ctx, app.DB, logger); err != nil {
		return nil, err
	}

	app.EventBus, err = eventbus.NewEventBus(ctx, eventbus.Config{
		URL:      cfg.NATS.URL,
		NKeySeed: cfg.NATS.NKeySeed,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	app.WatermillRouter, err = message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Watermill router: %w", err)
	}

	app.HTTPRouter = newHTTPRouter(obs.Registry, app.ready)

	app.Modules.BingoModule, err = bingo.NewBingoModule(ctx, cfg, obs, app.DB, app.EventBus, app.WatermillRouter, app.HTTPRouter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bingo module: %w", err)
	}

	logger.InfoContext(ctx, "Application initialized", attr.String("service", cfg.Observability.ServiceName))
	return app, nil
}

// Run blocks until ctx is cancelled or a component fails, then shuts down.
func (app *App) Run(ctx context.Context) error {
	return lifecycle{
		runModules:  app.Modules.BingoModule.Run,
		runRouter:   app.WatermillRouter.Run,
		routerReady: app.WatermillRouter.Running(),
		serveHTTP:   app.serveHTTP,
		close:       app.Close,
		logger:      app.logger,
	}.run(ctx)
}

// lifecycle is the start and stop sequence behind Run. Every exit, including
// a router that fails before it is running, goes through the same shutdown.
type lifecycle struct {
	runModules  func(ctx context.Context, wg *sync.WaitGroup)
	runRouter   func(ctx context.Context) error
	routerReady <-chan struct{}
	serveHTTP   func(ctx context.Context) error
	close       func() error
	logger      *slog.Logger
}

func (lc lifecycle) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go lc.runModules(ctx, &wg)

	routerErr := make(chan error, 1)
	go func() {
		routerErr <- lc.runRouter(ctx)
	}()

	var runErr error
	var httpErr chan error
	select {
	case <-lc.routerReady:
		httpErr = make(chan error, 1)
		go func() {
			httpErr <- lc.serveHTTP(ctx)
		}()

		select {
		case <-ctx.Done():
		case err := <-httpErr:
			httpErr = nil
			if err != nil {
				runErr = fmt.Errorf("http server: %w", err)
			}
		case err := <-routerErr:
			if err != nil {
				runErr = fmt.Errorf("watermill router: %w", err)
			}
		}
	case err := <-routerErr:
		if err != nil {
			runErr = fmt.Errorf("watermill router stopped before running: %w", err)
		}
	case <-ctx.Done():
	}
	cancel()

	lc.logger.Info("Shutting down application")
	if httpErr != nil {
		if err := <-httpErr; err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("http server: %w", err))
		}
	}
	wg.Wait()
	return errors.Join(runErr, lc.close())
}

// Close releases resources in reverse order of acquisition.
func (app *App) Close() error {
	var errs []error
	if app.Modules.BingoModule != nil {
		errs = append(errs, app.Modules.BingoModule.Close())
	}
	if app.WatermillRouter != nil {
		errs = append(errs, app.WatermillRouter.Close())
	}
	if app.EventBus != nil {
		errs = append(errs, app.EventBus.Close())
	}
	if app.DB != nil {
		errs = append(errs, app.DB.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = append(errs, app.Observability.Shutdown(ctx))

	return errors.Join(errs...)
}

// ready reports whether the database and job queue are reachable.
func (app *App) ready(ctx context.Context) error {
	if err := app.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if m := app.Modules.BingoModule; m != nil {
		if err := m.Queue.HealthCheck(ctx); err != nil {
			return fmt.Errorf("queue: %w", err)
		}
	}
	return nil
}
