// Package metrics exports bus and layout activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/1broseidon/tiletree/internal/bus"
	"github.com/1broseidon/tiletree/internal/layout"
	"github.com/1broseidon/tiletree/internal/wm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Bus metrics
	CommandsTotal *prometheus.CounterVec
	CommandDepth  prometheus.Histogram
	EventsTotal   *prometheus.CounterVec

	// Layout metrics
	RedrawsTotal   *prometheus.CounterVec
	RedrawDuration prometheus.Histogram
	BatchWindows   prometheus.Histogram

	FocusChanges prometheus.Counter
}

// New creates a metrics collector with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiletree_commands_total",
				Help: "Commands dispatched on the bus",
			},
			[]string{"command", "status"},
		),
		CommandDepth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tiletree_command_depth",
				Help:    "Nesting depth at which commands were dispatched",
				Buckets: []float64{1, 2, 3, 4, 6, 8},
			},
		),
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiletree_events_total",
				Help: "Events published on the bus",
			},
			[]string{"event"},
		),
		RedrawsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiletree_redraws_total",
				Help: "Layout passes run by the coordinator",
			},
			[]string{"status"},
		),
		RedrawDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tiletree_redraw_duration_seconds",
				Help:    "Layout pass duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
		),
		BatchWindows: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tiletree_batch_windows",
				Help:    "Window updates pushed per native batch",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
		),
		FocusChanges: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tiletree_focus_changes_total",
				Help: "Focus changes applied to the tree",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Register installs m as the bus observer and subscribes to layout and
// focus events.
func (m *Metrics) Register(b *bus.Bus) {
	b.SetObserver(m)
	bus.Subscribe(b, "metrics.redraw", func(_ context.Context, ev layout.Redrawn) error {
		m.ObserveRedraw(ev)
		return nil
	})
	bus.Subscribe(b, "metrics.focus", func(context.Context, wm.FocusChanged) error {
		m.FocusChanges.Inc()
		return nil
	})
}

// CommandDispatched implements bus.Observer.
func (m *Metrics) CommandDispatched(name string, depth int, err error) {
	m.CommandsTotal.WithLabelValues(name, status(err)).Inc()
	m.CommandDepth.Observe(float64(depth))
}

// EventPublished implements bus.Observer.
func (m *Metrics) EventPublished(name string, _ int) {
	m.EventsTotal.WithLabelValues(name).Inc()
}

// ObserveRedraw records one coordinator pass.
func (m *Metrics) ObserveRedraw(ev layout.Redrawn) {
	m.RedrawsTotal.WithLabelValues(status(ev.Err)).Inc()
	m.RedrawDuration.Observe(ev.Duration.Seconds())
	m.BatchWindows.Observe(float64(ev.Windows))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics over HTTP.
type Server struct {
	addr    string
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates a metrics endpoint on addr.
func NewServer(addr string, m *Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, metrics: m, logger: logger.With("component", "metrics")}
}

func (s *Server) String() string {
	return "metrics.Server"
}

// Serve runs the HTTP server until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errC := make(chan error, 1)
	go func() { errC <- srv.ListenAndServe() }()
	s.logger.Info("metrics listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return ctx.Err()
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
