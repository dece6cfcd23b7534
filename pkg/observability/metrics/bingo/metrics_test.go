package bingometrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg).(*prometheusMetrics)
	ctx := context.Background()

	m.RecordOperationAttempt(ctx, "StartGame", "BingoService")
	m.RecordOperationAttempt(ctx, "StartGame", "BingoService")
	m.RecordOperationSuccess(ctx, "StartGame", "BingoService")
	m.RecordOperationDuration(ctx, "StartGame", "BingoService", 20*time.Millisecond)
	m.RecordNumberDrawn(ctx, 75, true)
	m.RecordGameFinished(ctx, "line", false)
	m.RecordBingoClaim(ctx, false)
	m.RecordSubscriberDropped(ctx)
	m.SetActiveRooms(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("StartGame", "BingoService")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.successes.WithLabelValues("StartGame", "BingoService")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.draws.WithLabelValues("75", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.games.WithLabelValues("line", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.claims.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeRooms))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNoOpSatisfiesInterface(t *testing.T) {
	var m BingoMetrics = NoOp{}
	m.RecordOperationFailure(context.Background(), "x", "y")
	m.SetActiveRooms(1)
}
