// Package telemetry provides Glance's ambient observability surface:
// Prometheus metrics, an OpenTelemetry tracer provider, and an opt-in
// debug HTTP server. None of this is part of the core
// spec — it mirrors the teacher's own metrics/tracing packages so the
// binary has the same operability story in miniature.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Metrics are the counters and histograms exposed at /metrics when the
// debug server is enabled.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	SafetyLevel     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glance_requests_total",
			Help: "Total requests processed by the orchestrator, labeled by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "glance_request_duration_seconds",
			Help: "Request duration in seconds, labeled by kind.",
		}, []string{"kind"}),
		SafetyLevel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glance_safety_level_total",
			Help: "Count of classified statements by safety level.",
		}, []string{"level"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.SafetyLevel)
	return m
}

// InitTracing configures the global OpenTelemetry tracer provider. With
// stdout disabled it installs a no-op provider so spans started
// elsewhere in the codebase are cheap and harmless by default.
func InitTracing(stdoutEnabled bool) (shutdown func(context.Context) error, err error) {
	if !stdoutEnabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := trace.NewTracerProvider(trace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Server is the debug/metrics HTTP server. It is never constructed
// unless the operator opts in by setting GLANCE_DEBUG_ADDR.
type Server struct {
	addr     string
	registry *prometheus.Registry
	status   func() (string, error)
	httpSrv  *http.Server
}

func NewServer(addr string, registry *prometheus.Registry, status func() (string, error)) *Server {
	return &Server{addr: addr, registry: registry, status: status}
}

// Start binds to addr and serves /metrics and /debugz until ctx is
// cancelled. Start binds whatever addr it is given; neither it nor the
// CLI wiring, which passes GLANCE_DEBUG_ADDR through unchanged,
// restricts addr to a loopback address.
func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"http://localhost:*"}}))
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/debugz", func(w http.ResponseWriter, req *http.Request) {
		snapshot, err := s.status()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(snapshot))
	})

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.httpSrv = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.Serve(listener) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
