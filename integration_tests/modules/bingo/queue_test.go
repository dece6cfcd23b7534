//go:build integration

package bingointegration

import (
	"context"
	"sync"
	"testing"
	"time"

	bingoservice "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/application"
	bingoqueue "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/queue"
	"github.com/Black-And-White-Club/mundo-bingo/integration_tests/testutils"
	bingometrics "github.com/Black-And-White-Club/mundo-bingo/pkg/observability/metrics/bingo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu      sync.Mutex
	started []string
	done    chan struct{}
}

func (h *recordingHandler) StartScheduledGame(_ context.Context, _ uuid.UUID, code, _ string) error {
	h.mu.Lock()
	h.started = append(h.started, code)
	h.mu.Unlock()
	close(h.done)
	return nil
}

func (h *recordingHandler) CloseIdleRoom(context.Context, uuid.UUID, string) (*bingoservice.IdleCheck, error) {
	return &bingoservice.IdleCheck{Closed: true}, nil
}

func runQueueTests(t *testing.T, env *testutils.TestEnvironment) {
	ctx := env.Ctx
	queue, err := bingoqueue.NewService(ctx, env.DB, env.Logger, env.DSN, bingometrics.NoOp{})
	require.NoError(t, err)

	handler := &recordingHandler{done: make(chan struct{})}
	queue.SetHandler(handler)
	require.NoError(t, queue.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue.Stop(stopCtx)
	})

	require.NoError(t, queue.HealthCheck(ctx))

	t.Run("scheduled start runs", func(t *testing.T) {
		require.NoError(t, queue.ScheduleStart(ctx, uuid.New(), "200001", "host", time.Now().Add(time.Second)))

		select {
		case <-handler.done:
		case <-time.After(30 * time.Second):
			t.Fatal("scheduled start never ran")
		}
		handler.mu.Lock()
		defer handler.mu.Unlock()
		assert.Equal(t, []string{"200001"}, handler.started)
	})

	t.Run("cancel room jobs", func(t *testing.T) {
		at := time.Now().Add(time.Hour)
		require.NoError(t, queue.ScheduleIdleCheck(ctx, uuid.New(), "200002", at))

		jobs, err := queue.GetScheduledJobs(ctx, "200002")
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "scheduled", jobs[0].State)

		require.NoError(t, queue.CancelRoomJobs(ctx, "200002"))
		jobs, err = queue.GetScheduledJobs(ctx, "200002")
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "cancelled", jobs[0].State)
	})

	t.Run("past time rejected", func(t *testing.T) {
		err := queue.ScheduleStart(ctx, uuid.New(), "200003", "host", time.Now().Add(-time.Minute))
		assert.Error(t, err)
	})
}
