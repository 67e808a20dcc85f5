package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ValentinKolb/lkv/lib/store/actor"
	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics holds the connection metrics of a server
type serverMetrics struct {
	set *metrics.Set

	accepted        *metrics.Counter
	protocolErrors  *metrics.Counter
	transportErrors *metrics.Counter
	storeErrors     *metrics.Counter
	otherErrors     *metrics.Counter
	timeouts        *metrics.Counter
	duration        *metrics.Histogram
}

func newServerMetrics(active func() int) *serverMetrics {
	set := metrics.NewSet()
	m := &serverMetrics{
		set:             set,
		accepted:        set.NewCounter(`lkv_connections_accepted_total`),
		protocolErrors:  set.NewCounter(`lkv_connection_errors_total{kind="protocol"}`),
		transportErrors: set.NewCounter(`lkv_connection_errors_total{kind="transport"}`),
		storeErrors:     set.NewCounter(`lkv_connection_errors_total{kind="store"}`),
		otherErrors:     set.NewCounter(`lkv_connection_errors_total{kind="other"}`),
		timeouts:        set.NewCounter(`lkv_connection_timeouts_total`),
		duration:        set.NewHistogram(`lkv_connection_duration_seconds`),
	}
	set.NewGauge(`lkv_connections_active`, func() float64 {
		return float64(active())
	})
	return m
}

// WritePrometheus writes the server, store and process metrics in Prometheus text format to w.
func (s *Server) WritePrometheus(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
	s.actor.Metrics().WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

// Handler returns the http handler of the metrics endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.config.LogLevel == "debug" {
		mux.HandleFunc("GET /metrics", loggerMiddleware(s.handleMetrics))
		mux.HandleFunc("GET /healthz", loggerMiddleware(s.handleHealth))
	} else {
		mux.HandleFunc("GET /metrics", s.handleMetrics)
		mux.HandleFunc("GET /healthz", s.handleHealth)
	}

	return mux
}

// serveMetrics runs the metrics endpoint until ctx is done
func (s *Server) serveMetrics(ctx context.Context) {
	srv := &http.Server{
		Addr:              s.config.MetricsEndpoint,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	Logger.Infof("Starting metrics endpoint on http://%s/metrics", s.config.MetricsEndpoint)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Logger.Errorf("Metrics endpoint failed: %v", err)
	}
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.WritePrometheus(w)
}

// handleHealth reports whether the store actor still accepts commands
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.actor.State() != actor.StateRunning {
		http.Error(w, "store stopped", http.StatusServiceUnavailable)
		return
	}
	_, _ = io.WriteString(w, "ok\n")
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}
