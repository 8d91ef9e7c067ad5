// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OnboardingTotal counts onboarding attempts by outcome ("success" or an
	// error kind) and the stage that ended them.
	OnboardingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hoa_onboarding_total",
			Help: "Total number of HOA onboarding attempts",
		},
		[]string{"outcome", "stage"},
	)

	OnboardingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hoa_onboarding_duration_seconds",
			Help:    "Duration of HOA onboarding attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SlugConflicts counts tenant writes that lost a race for their slug.
	SlugConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hoa_slug_conflicts_total",
			Help: "Total number of slug conflicts detected on tenant creation",
		},
	)

	ViolationsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hoa_violations_submitted_total",
			Help: "Total number of violation reports submitted",
		},
	)

	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Register adds every collector to reg. Already registered collectors are
// skipped so tests can build several routers.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		OnboardingTotal, OnboardingDuration, SlugConflicts, ViolationsSubmitted,
		RequestCounter, RequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

func ObserveOnboarding(outcome, stage string, d time.Duration) {
	OnboardingTotal.WithLabelValues(outcome, stage).Inc()
	OnboardingDuration.Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by chi route
// pattern, keeping path cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, path, strconv.Itoa(status)}
		RequestCounter.WithLabelValues(labels...).Inc()
		RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}
