package bingoservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	bingometrics "github.com/Black-And-White-Club/mundo-bingo/pkg/observability/metrics/bingo"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "BingoService"

// BingoService implements the Service interface.
type BingoService struct {
	repo      bingodb.Repository
	logger    *slog.Logger
	metrics   bingometrics.BingoMetrics
	tracer    trace.Tracer
	db        *bun.DB
	publisher EventPublisher
	scheduler JobScheduler
	clock     bingodomain.Clock
	cfg       Config
	rooms     *manager
}

var _ Service = (*BingoService)(nil)

// NewBingoService creates a new BingoService. publisher and scheduler may be
// nil, in which case events are dropped and scheduling is unavailable.
func NewBingoService(
	repo bingodb.Repository,
	logger *slog.Logger,
	metrics bingometrics.BingoMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	publisher EventPublisher,
	scheduler JobScheduler,
	cfg Config,
) *BingoService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = bingometrics.NoOp{}
	}
	s := &BingoService{
		repo:      repo,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
		publisher: publisher,
		scheduler: scheduler,
		clock:     bingodomain.RealClock{},
		cfg:       cfg.withDefaults(),
	}
	s.rooms = newManager(&actorDeps{
		persist: s.persistRoom,
		publish: s.publish,
		cancel:  s.cancelJobs,
		logger:  logger,
		metrics: metrics,
		clock:   s.clock,
		cfg:     s.cfg,
	}, s.loadRoom)
	return s
}

// persistRoom stores the snapshot and, for a finished round, its result row.
func (s *BingoService) persistRoom(ctx context.Context, state bingodomain.RoomState, outcome *bingodomain.Outcome) error {
	_, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[struct{}, error], error) {
		if err := s.repo.UpsertRoom(ctx, db, bingodb.FromState(state)); err != nil {
			return results.OperationResult[struct{}, error]{}, err
		}
		if outcome != nil {
			if err := s.repo.InsertRound(ctx, db, bingodb.RoundFromOutcome(state, outcome)); err != nil {
				return results.OperationResult[struct{}, error]{}, err
			}
		}
		return results.SuccessResult[struct{}, error](struct{}{}), nil
	})
	return err
}

func (s *BingoService) loadRoom(ctx context.Context, code string) (*bingodomain.RoomState, error) {
	row, err := s.repo.GetRoom(ctx, nil, code)
	if err != nil {
		if errors.Is(err, bingodb.ErrNotFound) {
			return nil, bingodomain.ErrRoomNotFound
		}
		return nil, err
	}
	state := row.State()
	return &state, nil
}

// publish sends an integration event. Failures are logged and counted; the
// room change they describe is already stored.
func (s *BingoService) publish(ctx context.Context, topic, roomCode string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, roomCode, payload); err != nil {
		s.metrics.RecordEventPublishFailure(ctx, topic)
		s.logger.ErrorContext(ctx, "Failed to publish event",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.RoomCode(roomCode),
			attr.Error(err),
		)
	}
}

func (s *BingoService) cancelJobs(ctx context.Context, code string) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.CancelRoomJobs(ctx, code); err != nil {
		s.logger.WarnContext(ctx, "Failed to cancel room jobs", attr.RoomCode(code), attr.Error(err))
	}
}

// Shutdown stops every room actor.
func (s *BingoService) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping bingo rooms", attr.Int("active_rooms", s.rooms.active()))
	return s.rooms.shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *BingoService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.InfoContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *BingoService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})
	return result, err
}

// submit runs step on the room's actor. Domain rejections become failure
// results; anything else is an infrastructure error.
func submit[S any](
	s *BingoService,
	ctx context.Context,
	code string,
	step func(ctx context.Context, a *roomActor) (S, error),
) (results.OperationResult[S, error], error) {
	a, err := s.rooms.get(ctx, code)
	if err != nil {
		return classify[S](err)
	}
	v, err := a.do(ctx, func(ctx context.Context, a *roomActor) (any, error) {
		return step(ctx, a)
	})
	if err != nil {
		return classify[S](err)
	}
	out, _ := v.(S)
	return results.SuccessResult[S, error](out), nil
}

func classify[S any](err error) (results.OperationResult[S, error], error) {
	if bingodomain.IsRuleError(err) {
		return results.FailureResult[S, error](err), nil
	}
	return results.OperationResult[S, error]{}, err
}

// unwrap flattens a result back to the (value, error) shape callers use.
func unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, nil
	}
	return *result.Success, nil
}
