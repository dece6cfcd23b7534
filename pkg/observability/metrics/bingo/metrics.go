// Package bingometrics records Prometheus metrics for the bingo module.
package bingometrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BingoMetrics is what the bingo service and its adapters report.
type BingoMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)

	RecordNumberDrawn(ctx context.Context, mode int, auto bool)
	RecordGameFinished(ctx context.Context, pattern string, exhausted bool)
	RecordBingoClaim(ctx context.Context, accepted bool)
	RecordSubscriberDropped(ctx context.Context)
	RecordEventPublishFailure(ctx context.Context, topic string)
	SetActiveRooms(n int)
}

type prometheusMetrics struct {
	attempts    *prometheus.CounterVec
	successes   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	draws       *prometheus.CounterVec
	games       *prometheus.CounterVec
	claims      *prometheus.CounterVec
	dropped     prometheus.Counter
	publishErrs *prometheus.CounterVec
	activeRooms prometheus.Gauge
}

// NewPrometheus registers the bingo collectors on reg.
func NewPrometheus(reg prometheus.Registerer) BingoMetrics {
	m := &prometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo", Name: "operation_attempts_total",
			Help: "Service operations started.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo", Name: "operation_success_total",
			Help: "Service operations that completed without an infrastructure error.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo", Name: "operation_failures_total",
			Help: "Service operations that failed with an infrastructure error.",
		}, []string{"operation", "service"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bingo", Name: "operation_duration_seconds",
			Help:    "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo", Name: "numbers_drawn_total",
			Help: "Numbers called, by mode and trigger.",
		}, []string{"mode", "auto"}),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo", Name: "games_finished_total",
			Help: "Finished rounds, by pattern and whether the pool ran out.",
		}, []string{"pattern", "exhausted"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo", Name: "bingo_claims_total",
			Help: "Bingo calls, by verdict.",
		}, []string{"accepted"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bingo", Name: "subscribers_dropped_total",
			Help: "Real-time subscribers dropped for falling behind.",
		}),
		publishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bingo", Name: "event_publish_failures_total",
			Help: "Events that could not be published to the bus.",
		}, []string{"topic"}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bingo", Name: "active_rooms",
			Help: "Rooms with a live actor.",
		}),
	}
	reg.MustRegister(m.attempts, m.successes, m.failures, m.durations, m.draws,
		m.games, m.claims, m.dropped, m.publishErrs, m.activeRooms)
	return m
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, d time.Duration) {
	m.durations.WithLabelValues(operation, service).Observe(d.Seconds())
}

func (m *prometheusMetrics) RecordNumberDrawn(_ context.Context, mode int, auto bool) {
	m.draws.WithLabelValues(strconv.Itoa(mode), strconv.FormatBool(auto)).Inc()
}

func (m *prometheusMetrics) RecordGameFinished(_ context.Context, pattern string, exhausted bool) {
	m.games.WithLabelValues(pattern, strconv.FormatBool(exhausted)).Inc()
}

func (m *prometheusMetrics) RecordBingoClaim(_ context.Context, accepted bool) {
	m.claims.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

func (m *prometheusMetrics) RecordSubscriberDropped(context.Context) { m.dropped.Inc() }

func (m *prometheusMetrics) RecordEventPublishFailure(_ context.Context, topic string) {
	m.publishErrs.WithLabelValues(topic).Inc()
}

func (m *prometheusMetrics) SetActiveRooms(n int) { m.activeRooms.Set(float64(n)) }

// NoOp discards everything.
type NoOp struct{}

func (NoOp) RecordOperationAttempt(context.Context, string, string)                 {}
func (NoOp) RecordOperationSuccess(context.Context, string, string)                 {}
func (NoOp) RecordOperationFailure(context.Context, string, string)                 {}
func (NoOp) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoOp) RecordNumberDrawn(context.Context, int, bool)                           {}
func (NoOp) RecordGameFinished(context.Context, string, bool)                       {}
func (NoOp) RecordBingoClaim(context.Context, bool)                                 {}
func (NoOp) RecordSubscriberDropped(context.Context)                                {}
func (NoOp) RecordEventPublishFailure(context.Context, string)                      {}
func (NoOp) SetActiveRooms(int)                                                     {}
