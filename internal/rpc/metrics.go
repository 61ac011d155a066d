package rpc

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts calls per operation and outcome.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the RPC collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clanboard",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Backend calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clanboard",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Backend call latency by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op Operation, took time.Duration, err error) {
	m.calls.WithLabelValues(string(op), outcome(err)).Inc()
	m.duration.WithLabelValues(string(op)).Observe(took.Seconds())
}

func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr):
		return "error"
	case errors.Is(err, ErrUnknownOperation):
		return "unknown"
	default:
		return "transport"
	}
}
