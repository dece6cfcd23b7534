package bingorouter

import (
	"context"
	"log/slog"
	"os"
	"time"

	bingoevents "github.com/Black-And-White-Club/mundo-bingo/pkg/events/bingo"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	TestEnvironmentFlag  = "APP_ENV"
	TestEnvironmentValue = "test"
)

// Handlers consumes the integration events the bingo module subscribes to.
type Handlers interface {
	HandleWalletSettled(msg *message.Message) error
}

type BingoRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	subscriber     message.Subscriber
	tracer         trace.Tracer
	metricsBuilder *metrics.PrometheusMetricsBuilder
	metricsEnabled bool
}

// NewBingoRouter creates the router. Prometheus router metrics are skipped
// when no registry is given or APP_ENV=test.
func NewBingoRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	tracer trace.Tracer,
	prometheusRegistry *prometheus.Registry,
) *BingoRouter {
	inTestEnv := os.Getenv(TestEnvironmentFlag) == TestEnvironmentValue

	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if prometheusRegistry != nil && !inTestEnv {
		builder := metrics.NewPrometheusMetricsBuilder(prometheusRegistry, "bingo", "")
		metricsBuilder = &builder
	}

	return &BingoRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		tracer:         tracer,
		metricsBuilder: metricsBuilder,
		metricsEnabled: metricsBuilder != nil,
	}
}

// Configure sets up the middlewares and registers the event handlers.
func (r *BingoRouter) Configure(ctx context.Context, handlers Handlers) error {
	if r.metricsEnabled {
		r.logger.InfoContext(ctx, "Adding Prometheus router metrics middleware for Bingo")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			Multiplier:      2,
		}.Middleware,
		traceHandler(r.tracer),
	)

	r.registerHandlers(ctx, handlers)
	return nil
}

func (r *BingoRouter) registerHandlers(ctx context.Context, handlers Handlers) {
	r.logger.InfoContext(ctx, "Registering Bingo Event Handlers")

	r.Router.AddNoPublisherHandler(
		"bingo."+bingoevents.WalletSettledV1,
		bingoevents.WalletSettledV1,
		r.subscriber,
		handlers.HandleWalletSettled,
	)
}

// Close stops the router and cleans up resources.
func (r *BingoRouter) Close() error {
	return r.Router.Close()
}

// traceHandler wraps each consumed message in a consumer span.
func traceHandler(tracer trace.Tracer) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx, span := tracer.Start(msg.Context(), "bingo.consume "+message.SubscribeTopicFromCtx(msg.Context()),
				trace.WithSpanKind(trace.SpanKindConsumer),
			)
			defer span.End()

			msg.SetContext(ctx)
			out, err := h(msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return out, err
		}
	}
}
