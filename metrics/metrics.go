// Package metrics exposes sort statistics to Prometheus.
package metrics

import (
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/toolkits/pkg/logger"
)

const namespace = "pradix"

var (
	SortDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sort_duration_seconds",
			Help:      "Sort latencies in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"mode"},
	)

	CounterSortedElements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sorted_elements_total",
		Help:      "Number of elements sorted.",
	}, []string{"mode"})

	CounterDigitPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "digit_passes_total",
		Help:      "Number of counting-sort passes run.",
	}, []string{"mode"})

	CounterVerificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_failures_total",
		Help:      "Number of sorted outputs that failed verification.",
	}, []string{"mode"})
)

func init() {
	prometheus.MustRegister(
		SortDuration,
		CounterSortedElements,
		CounterDigitPasses,
		CounterVerificationFailures,
	)
}

// ObserveSort records one finished sort.
func ObserveSort(mode string, n int, elapsed time.Duration, passes int) {
	SortDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	CounterSortedElements.WithLabelValues(mode).Add(float64(n))
	CounterDigitPasses.WithLabelValues(mode).Add(float64(passes))
}

// VerificationFailed counts an output that was not sorted.
func VerificationFailed(mode string) {
	CounterVerificationFailures.WithLabelValues(mode).Inc()
}

// Handler serves /metrics from the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes /metrics on addr until the returned server is closed.
func Serve(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	srv := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server on %s: %v", addr, err)
		}
	}()
	logger.Infof("serving metrics on http://%s/metrics", ln.Addr())
	return srv, nil
}
