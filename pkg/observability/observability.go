// Package observability builds the logger, metrics registry and tracer the
// service shares across modules.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the logging output and names the service.
type Config struct {
	Environment string
	LogLevel    string
	ServiceName string
}

// Provider bundles the observability handles.
type Provider struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Tracer   trace.Tracer
}

// Init creates the provider. Development uses colored tint output, every
// other environment logs JSON.
func Init(cfg Config) *Provider {
	return initWithWriter(cfg, os.Stdout)
}

func initWithWriter(cfg Config, w io.Writer) *Provider {
	level := ParseLevel(cfg.LogLevel)

	var handler slog.Handler
	if cfg.Environment == "" || cfg.Environment == "development" || cfg.Environment == "dev" {
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Provider{
		Logger:   logger,
		Registry: registry,
		Tracer:   otel.Tracer(cfg.ServiceName),
	}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Shutdown is a hook for flushing exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.Logger.InfoContext(ctx, "Observability shut down")
	return nil
}
