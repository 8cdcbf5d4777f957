// Package metrics exposes live session metrics for Prometheus scraping.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pageswarm/internal/runner"
)

const Namespace = "pageswarm"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// LoadTimeBuckets covers fast pages up to the default navigation timeout.
var LoadTimeBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30}

// Exporter owns a private registry so several runs in one process never
// collide on metric names.
type Exporter struct {
	registry *prometheus.Registry

	sessionsTotal *prometheus.CounterVec
	loadTime      prometheus.Histogram
	hops          prometheus.Histogram
	active        prometheus.Gauge
}

func NewExporter() *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_total",
			Help:      "Completed sessions by outcome.",
		},
		[]string{"outcome"},
	)
	e.loadTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "initial_load_seconds",
		Help:      "Initial page load time of successful sessions.",
		Buckets:   LoadTimeBuckets,
	})
	e.hops = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "navigation_hops",
		Help:      "Link navigations performed per session after the initial load.",
		Buckets:   prometheus.LinearBuckets(0, 1, 6),
	})
	e.active = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "active_sessions",
		Help:      "Sessions currently holding a browser.",
	})

	e.registry.MustRegister(e.sessionsTotal, e.loadTime, e.hops, e.active)
	return e
}

// Registry is exposed for tests and for callers that add their own collectors.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe records one finished session.
func (e *Exporter) Observe(res runner.Result) {
	if !res.Success {
		e.sessionsTotal.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	e.sessionsTotal.WithLabelValues(OutcomeSuccess).Inc()
	e.loadTime.Observe(res.LoadTime.Seconds())
	e.hops.Observe(float64(res.Hops))
}

// Instrument wraps a session so it is counted as active while it runs.
// Outcomes are recorded by Observe, not here, so crashed sessions that the
// runner synthesizes are counted too.
func (e *Exporter) Instrument(fn runner.SessionFunc) runner.SessionFunc {
	return func(ctx context.Context, userID int, rng *rand.Rand) runner.Result {
		e.active.Inc()
		defer e.active.Dec()
		return fn(ctx, userID, rng)
	}
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. It returns once the
// listener is bound; serving continues in the background.
func (e *Exporter) Serve(ctx context.Context, addr string, logger *zap.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	logger.Info("metrics endpoint listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}
