package bingoqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
)

// Metrics is the subset of the bingo metrics the queue reports to.
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// QueueService interface defines the contract for job scheduling operations
type QueueService interface {
	bingoservice.JobScheduler
	// SetHandler wires the room service into the workers.
	SetHandler(h Handler)
	// GetScheduledJobs returns the jobs recorded for a room code (for debugging)
	GetScheduledJobs(ctx context.Context, code string) ([]JobInfo, error)
	// HealthCheck verifies the queue service is healthy
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service handles job scheduling for the bingo module using River
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	db      *bun.DB
	metrics Metrics
	handler *handlerRef
	now     func() time.Time
}

// NewService creates the River client, migrating River's own tables first.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, metrics Metrics) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_bingo_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	ctxLogger.Info("Initializing bingo queue service")

	// River needs pgx, not database/sql
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		ctxLogger.Error("Failed to parse DSN for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		ctxLogger.Error("Failed to create pgx pool for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver := riverpgxv5.New(pool)
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		pool.Close()
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to migrate River tables", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to migrate River tables: %w", err)
	}

	handler := &handlerRef{}
	workers := river.NewWorkers()
	river.AddWorker(workers, newStartGameWorker(ctxLogger, handler))
	river.AddWorker(workers, newIdleCheckWorker(ctxLogger, handler))

	riverClient, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 50},
			queueName:          {MaxWorkers: 25},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	service := &Service{
		client:  riverClient,
		pool:    pool,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: metrics,
		handler: handler,
		now:     time.Now,
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", "river", time.Since(start))

	ctxLogger.Info("Bingo queue service initialized successfully")
	return service, nil
}

func (s *Service) SetHandler(h Handler) { s.handler.set(h) }

// Start starts the River queue service
func (s *Service) Start(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "start_service", "river")

	s.logger.Info("Starting bingo queue service")

	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", "river")
		return fmt.Errorf("failed to start River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "start_service", "river")
	s.metrics.RecordOperationDuration(ctx, "start_service", "river", time.Since(start))
	return nil
}

// Stop stops the River client and closes its pool.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "stop_service", "river")

	s.logger.Info("Stopping bingo queue service")
	defer s.pool.Close()

	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service", "river")
		return fmt.Errorf("failed to stop River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "stop_service", "river")
	s.metrics.RecordOperationDuration(ctx, "stop_service", "river", time.Since(start))
	return nil
}

// ScheduleStart schedules a game start at the given time.
func (s *Service) ScheduleStart(ctx context.Context, roomID uuid.UUID, code, hostID string, at time.Time) error {
	return s.insert(ctx, "schedule_start", StartGameJob{RoomID: roomID, RoomCode: code, HostID: hostID}, code, at)
}

// ScheduleIdleCheck schedules the idle check for a room.
func (s *Service) ScheduleIdleCheck(ctx context.Context, roomID uuid.UUID, code string, at time.Time) error {
	return s.insert(ctx, "schedule_idle_check", IdleCheckJob{RoomID: roomID, RoomCode: code}, code, at)
}

func (s *Service) insert(ctx context.Context, operation string, job river.JobArgs, code string, at time.Time) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, operation, "river")

	ctxLogger := s.logger.With(
		attr.RoomCode(code),
		attr.Time("scheduled_at", at),
		attr.String("operation", operation),
	)

	if !at.After(s.now()) {
		ctxLogger.Warn("Job time is not in the future")
		s.metrics.RecordOperationFailure(ctx, operation, "river")
		return fmt.Errorf("%s: time must be in the future", operation)
	}

	jobResult, err := s.client.Insert(ctx, job, &river.InsertOpts{
		Queue:       queueName,
		ScheduledAt: at,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		ctxLogger.Error("Failed to schedule job", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, operation, "river")
		return fmt.Errorf("failed to schedule %s job: %w", job.Kind(), err)
	}

	s.metrics.RecordOperationSuccess(ctx, operation, "river")
	s.metrics.RecordOperationDuration(ctx, operation, "river", time.Since(start))

	ctxLogger.Info("Job scheduled",
		attr.String("job_kind", job.Kind()),
		attr.Int64("job_id", jobResult.Job.ID),
		attr.Bool("duplicate", jobResult.UniqueSkippedAsDuplicate),
	)
	return nil
}

type riverJobRow struct {
	ID          int64          `bun:"id"`
	Kind        string         `bun:"kind"`
	State       string         `bun:"state"`
	Args        map[string]any `bun:"args"`
	ScheduledAt *time.Time     `bun:"scheduled_at"`
	CreatedAt   time.Time      `bun:"created_at"`
	Attempt     int16          `bun:"attempt"`
	MaxAttempts int16          `bun:"max_attempts"`
}

// CancelRoomJobs cancels every pending job for a room code.
func (s *Service) CancelRoomJobs(ctx context.Context, code string) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "cancel_room_jobs", "river")

	ctxLogger := s.logger.With(
		attr.RoomCode(code),
		attr.String("operation", "cancel_room_jobs"),
	)

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "args", "scheduled_at").
		Where("kind IN (?, ?)", kindStartGame, kindIdleCheck).
		Where("state IN (?, ?)", "available", "scheduled").
		Where("args->>'room_code' = ?", code).
		Scan(ctx, &jobs)
	if err != nil {
		ctxLogger.Error("Failed to query jobs for cancellation", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "cancel_room_jobs", "river")
		return fmt.Errorf("failed to query jobs for cancellation: %w", err)
	}

	cancelled := 0
	for _, job := range jobs {
		if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
			ctxLogger.Warn("Failed to cancel job",
				attr.Int64("job_id", job.ID),
				attr.String("job_kind", job.Kind),
				attr.Error(err))
			continue
		}
		cancelled++
	}

	if cancelled == len(jobs) {
		s.metrics.RecordOperationSuccess(ctx, "cancel_room_jobs", "river")
	} else {
		s.metrics.RecordOperationFailure(ctx, "cancel_room_jobs", "river")
	}
	s.metrics.RecordOperationDuration(ctx, "cancel_room_jobs", "river", time.Since(start))

	ctxLogger.Info("Room jobs cancelled",
		attr.Int("total_found", len(jobs)),
		attr.Int("cancelled_count", cancelled))
	return nil
}

// GetScheduledJobs returns the jobs recorded for a room code (for debugging)
func (s *Service) GetScheduledJobs(ctx context.Context, code string) ([]JobInfo, error) {
	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "args", "scheduled_at", "created_at", "attempt", "max_attempts").
		Where("kind IN (?, ?)", kindStartGame, kindIdleCheck).
		Where("args->>'room_code' = ?", code).
		Order("scheduled_at ASC NULLS LAST", "created_at ASC").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled jobs: %w", err)
	}
	return toJobInfo(code, jobs), nil
}

func toJobInfo(code string, jobs []riverJobRow) []JobInfo {
	out := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		scheduledAt := ""
		if job.ScheduledAt != nil {
			scheduledAt = job.ScheduledAt.Format(time.RFC3339)
		}
		out[i] = JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			RoomCode:    code,
			State:       job.State,
			ScheduledAt: scheduledAt,
			CreatedAt:   job.CreatedAt.Format(time.RFC3339),
			Attempt:     int(job.Attempt),
			MaxAttempts: int(job.MaxAttempts),
		}
	}
	return out
}

// HealthCheck verifies the queue service is healthy
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	if err := s.pool.Ping(ctx); err != nil {
		s.logger.Error("Queue service health check failed", attr.Error(err))
		return fmt.Errorf("queue service health check failed: %w", err)
	}
	return nil
}
