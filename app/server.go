package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newHTTPRouter builds the root router with the health and metrics endpoints.
// Modules mount their own routes on it.
func newHTTPRouter(registry *prometheus.Registry, ready func(context.Context) error) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return r
}

// serveHTTP runs the listener until ctx is done, then drains connections.
func (app *App) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.Config.HTTP.Address,
		Handler:           app.HTTPRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.InfoContext(ctx, "Starting HTTP server", attr.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.logger.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}
