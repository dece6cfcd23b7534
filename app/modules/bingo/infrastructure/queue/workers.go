package bingoqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// Handler is the room service surface the workers drive.
type Handler interface {
	StartScheduledGame(ctx context.Context, roomID uuid.UUID, code, hostID string) error
	CloseIdleRoom(ctx context.Context, roomID uuid.UUID, code string) (*bingoservice.IdleCheck, error)
}

// errHandlerNotReady makes River retry jobs picked up before the service is
// wired in.
var errHandlerNotReady = errors.New("bingo job handler not ready")

type handlerRef struct {
	v atomic.Pointer[Handler]
}

func (r *handlerRef) set(h Handler) { r.v.Store(&h) }

func (r *handlerRef) get() Handler {
	if p := r.v.Load(); p != nil {
		return *p
	}
	return nil
}

// StartGameWorker runs scheduled game starts.
type StartGameWorker struct {
	river.WorkerDefaults[StartGameJob]
	logger  *slog.Logger
	handler *handlerRef
}

func newStartGameWorker(logger *slog.Logger, handler *handlerRef) *StartGameWorker {
	return &StartGameWorker{logger: logger, handler: handler}
}

func (w *StartGameWorker) Timeout(*river.Job[StartGameJob]) time.Duration { return 30 * time.Second }

func (w *StartGameWorker) Work(ctx context.Context, job *river.Job[StartGameJob]) error {
	h := w.handler.get()
	if h == nil {
		return errHandlerNotReady
	}
	logger := w.logger.With(
		attr.RoomCode(job.Args.RoomCode),
		attr.Int64("job_id", job.ID),
	)

	err := h.StartScheduledGame(ctx, job.Args.RoomID, job.Args.RoomCode, job.Args.HostID)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "Scheduled game started")
		return nil
	case bingodomain.IsRuleError(err):
		// Nobody bought cards, the room closed, and so on. Retrying won't help.
		logger.WarnContext(ctx, "Scheduled start skipped", attr.Error(err))
		return river.JobCancel(err)
	default:
		logger.ErrorContext(ctx, "Scheduled start failed", attr.Error(err))
		return err
	}
}

// IdleCheckWorker closes abandoned rooms.
type IdleCheckWorker struct {
	river.WorkerDefaults[IdleCheckJob]
	logger  *slog.Logger
	handler *handlerRef
}

func newIdleCheckWorker(logger *slog.Logger, handler *handlerRef) *IdleCheckWorker {
	return &IdleCheckWorker{logger: logger, handler: handler}
}

func (w *IdleCheckWorker) Work(ctx context.Context, job *river.Job[IdleCheckJob]) error {
	h := w.handler.get()
	if h == nil {
		return errHandlerNotReady
	}

	check, err := h.CloseIdleRoom(ctx, job.Args.RoomID, job.Args.RoomCode)
	if err != nil {
		w.logger.ErrorContext(ctx, "Idle check failed", attr.RoomCode(job.Args.RoomCode), attr.Error(err))
		return err
	}
	if !check.Closed && check.RetryIn > 0 {
		w.logger.DebugContext(ctx, "Room still active, checking again later",
			attr.RoomCode(job.Args.RoomCode),
			attr.Duration("retry_in", check.RetryIn),
		)
		return river.JobSnooze(check.RetryIn)
	}
	return nil
}
