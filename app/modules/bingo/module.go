package bingo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	bingohandlers "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/handlers"
	bingoqueue "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/queue"
	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	bingorouter "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/router"
	"github.com/Black-And-White-Club/mundo-bingo/config"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/eventbus"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/jwt"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/observability"
	bingometrics "github.com/Black-And-White-Club/mundo-bingo/pkg/observability/metrics/bingo"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"
)

// Module represents the bingo module.
type Module struct {
	EventBus     eventbus.EventBus
	Service      *bingoservice.BingoService
	Queue        bingoqueue.QueueService
	BingoRouter  *bingorouter.BingoRouter
	handlers     *bingohandlers.BingoHandlers
	config       *config.Config
	logger       *slog.Logger
	cancelFunc   context.CancelFunc
	shutdownWait time.Duration
}

// NewBingoModule builds the bingo service and registers its event handlers on
// router and its HTTP routes on httpRouter.
func NewBingoModule(
	ctx context.Context,
	cfg *config.Config,
	obs *observability.Provider,
	db *bun.DB,
	eventBus eventbus.EventBus,
	router *message.Router,
	httpRouter chi.Router,
) (*Module, error) {
	logger := obs.Logger
	tracer := obs.Tracer
	metrics := bingometrics.NewPrometheus(obs.Registry)

	logger.InfoContext(ctx, "bingo.NewBingoModule called")

	queue, err := bingoqueue.NewService(ctx, db, logger, cfg.Postgres.DSN, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create bingo job queue: %w", err)
	}

	service := bingoservice.NewBingoService(
		bingodb.NewRepository(db),
		logger,
		metrics,
		tracer,
		db,
		eventbus.NewPublisher(eventBus),
		queue,
		bingoservice.Config{
			AutoCallInterval:   cfg.Bingo.AutoCallInterval,
			ManualCallCooldown: cfg.Bingo.ManualCallCooldown,
			AutoCallForceAfter: cfg.Bingo.AutoCallForceAfter,
			RequestTimeout:     cfg.Bingo.RequestTimeout,
			IdleRoomTTL:        cfg.Bingo.IdleRoomTTL,
			SubscriberBuffer:   cfg.Bingo.SubscriberBuffer,
		},
	)
	queue.SetHandler(service)

	handlers := bingohandlers.NewBingoHandlers(service, queue, logger, tracer, cfg.HTTP.AllowedOrigins)

	bingoRouter := bingorouter.NewBingoRouter(logger, router, eventBus, tracer, obs.Registry)
	if err := bingoRouter.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure bingo router: %w", err)
	}

	if httpRouter != nil {
		tokens := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer)
		limiter := bingohandlers.NewIPRateLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst)
		auth := bingohandlers.AuthMiddleware(tokens)

		httpRouter.Route("/api/bingo", func(r chi.Router) {
			r.Use(bingohandlers.CORSMiddleware(cfg.HTTP.AllowedOrigins))
			r.Use(bingohandlers.RateLimitMiddleware(limiter))
			r.Group(func(r chi.Router) {
				r.Use(auth)
				handlers.RegisterRoutes(r)
			})
		})
		httpRouter.With(bingohandlers.RateLimitMiddleware(limiter), auth).Get("/ws", handlers.HandleWebSocket)
	}

	return &Module{
		EventBus:     eventBus,
		Service:      service,
		Queue:        queue,
		BingoRouter:  bingoRouter,
		handlers:     handlers,
		config:       cfg,
		logger:       logger,
		shutdownWait: 10 * time.Second,
	}, nil
}

// Run starts the job workers and reloads rooms that were mid-game, then
// blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting bingo module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if err := m.Queue.Start(context.WithoutCancel(ctx)); err != nil {
		m.logger.ErrorContext(ctx, "Failed to start bingo job queue", attr.Error(err))
		return
	}

	if err := m.Service.ResumeRooms(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to resume in-progress rooms", attr.Error(err))
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Bingo module goroutine stopped")
}

// Close stops the room actors first so their final writes and job
// cancellations still reach the queue, then stops the queue.
func (m *Module) Close() error {
	m.logger.Info("Stopping bingo module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.shutdownWait)
	defer cancel()

	var errs []error
	if err := m.Service.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bingo service: %w", err))
	}
	if err := m.Queue.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bingo queue: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		m.logger.Error("Bingo module stopped with errors", attr.Error(err))
		return err
	}

	m.logger.Info("Bingo module stopped")
	return nil
}
