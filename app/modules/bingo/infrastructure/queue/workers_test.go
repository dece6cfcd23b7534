package bingoqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	bingodomain "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/domain"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	startCalls []StartGameJob
	idleCalls  []IdleCheckJob

	StartFunc func(ctx context.Context, roomID uuid.UUID, code, hostID string) error
	IdleFunc  func(ctx context.Context, roomID uuid.UUID, code string) (*bingoservice.IdleCheck, error)
}

func (f *fakeHandler) StartScheduledGame(ctx context.Context, roomID uuid.UUID, code, hostID string) error {
	f.startCalls = append(f.startCalls, StartGameJob{RoomID: roomID, RoomCode: code, HostID: hostID})
	if f.StartFunc != nil {
		return f.StartFunc(ctx, roomID, code, hostID)
	}
	return nil
}

func (f *fakeHandler) CloseIdleRoom(ctx context.Context, roomID uuid.UUID, code string) (*bingoservice.IdleCheck, error) {
	f.idleCalls = append(f.idleCalls, IdleCheckJob{RoomID: roomID, RoomCode: code})
	if f.IdleFunc != nil {
		return f.IdleFunc(ctx, roomID, code)
	}
	return &bingoservice.IdleCheck{Closed: true}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartGameWorker_Work(t *testing.T) {
	args := StartGameJob{RoomID: uuid.New(), RoomCode: "123456", HostID: "host-1"}

	tests := []struct {
		name       string
		noHandler  bool
		startErr   error
		wantErr    bool
		wantCancel bool
	}{
		{name: "starts the game"},
		{name: "handler not wired yet", noHandler: true, wantErr: true},
		{name: "rule error cancels the job", startErr: bingodomain.ErrNoCardsPurchased, wantErr: true, wantCancel: true},
		{name: "infrastructure error retries", startErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := &handlerRef{}
			h := &fakeHandler{StartFunc: func(context.Context, uuid.UUID, string, string) error { return tt.startErr }}
			if !tt.noHandler {
				ref.set(h)
			}
			w := newStartGameWorker(discardLogger(), ref)

			err := w.Work(context.Background(), &river.Job[StartGameJob]{JobRow: &rivertype.JobRow{ID: 42}, Args: args})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, []StartGameJob{args}, h.startCalls)
				return
			}
			require.Error(t, err)
			if tt.noHandler {
				assert.ErrorIs(t, err, errHandlerNotReady)
				assert.Empty(t, h.startCalls)
			}
			var cancel *rivertype.JobCancelError
			assert.Equal(t, tt.wantCancel, errors.As(err, &cancel))
			if tt.startErr != nil {
				assert.ErrorIs(t, err, tt.startErr)
			}
		})
	}
}

func TestIdleCheckWorker_Work(t *testing.T) {
	args := IdleCheckJob{RoomID: uuid.New(), RoomCode: "654321"}

	t.Run("closed room completes", func(t *testing.T) {
		ref := &handlerRef{}
		h := &fakeHandler{}
		ref.set(h)
		w := newIdleCheckWorker(discardLogger(), ref)

		err := w.Work(context.Background(), &river.Job[IdleCheckJob]{JobRow: &rivertype.JobRow{ID: 1}, Args: args})
		require.NoError(t, err)
		assert.Equal(t, []IdleCheckJob{args}, h.idleCalls)
	})

	t.Run("active room snoozes", func(t *testing.T) {
		ref := &handlerRef{}
		ref.set(&fakeHandler{IdleFunc: func(context.Context, uuid.UUID, string) (*bingoservice.IdleCheck, error) {
			return &bingoservice.IdleCheck{RetryIn: 15 * time.Minute}, nil
		}})
		w := newIdleCheckWorker(discardLogger(), ref)

		err := w.Work(context.Background(), &river.Job[IdleCheckJob]{JobRow: &rivertype.JobRow{ID: 2}, Args: args})
		var snooze *rivertype.JobSnoozeError
		require.ErrorAs(t, err, &snooze)
		assert.Equal(t, 15*time.Minute, snooze.Duration)
	})

	t.Run("errors are retried", func(t *testing.T) {
		ref := &handlerRef{}
		boom := errors.New("boom")
		ref.set(&fakeHandler{IdleFunc: func(context.Context, uuid.UUID, string) (*bingoservice.IdleCheck, error) {
			return nil, boom
		}})
		w := newIdleCheckWorker(discardLogger(), ref)

		err := w.Work(context.Background(), &river.Job[IdleCheckJob]{JobRow: &rivertype.JobRow{ID: 3}, Args: args})
		require.ErrorIs(t, err, boom)
	})
}

func TestToJobInfo(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := []riverJobRow{
		{ID: 1, Kind: kindIdleCheck, State: "scheduled", ScheduledAt: &at, CreatedAt: at, Attempt: 0, MaxAttempts: 25},
		{ID: 2, Kind: kindStartGame, State: "completed", CreatedAt: at, Attempt: 1, MaxAttempts: 25},
	}

	got := toJobInfo("123456", rows)
	require.Len(t, got, 2)
	assert.Equal(t, JobInfo{
		ID: 1, Kind: kindIdleCheck, RoomCode: "123456", State: "scheduled",
		ScheduledAt: "2026-06-01T12:00:00Z", CreatedAt: "2026-06-01T12:00:00Z", MaxAttempts: 25,
	}, got[0])
	assert.Empty(t, got[1].ScheduledAt)
	assert.Equal(t, 1, got[1].Attempt)
}

func TestJobKinds(t *testing.T) {
	assert.Equal(t, "bingo_start_game", StartGameJob{}.Kind())
	assert.Equal(t, "bingo_idle_check", IdleCheckJob{}.Kind())
}
