package crag

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crag",
			Subsystem: "sdk",
			Name:      "runs_total",
			Help:      "Total SDK pipeline runs by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crag",
			Subsystem: "sdk",
			Name:      "run_duration_seconds",
			Help:      "SDK pipeline run duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.runs); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("crag: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("crag: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK runs.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// outcome is the answer kind on success and the error kind on failure.
func outcome(ans Answer, err error) string {
	if err != nil {
		return string(KindOf(err))
	}
	return string(ans.Kind)
}

func (o *observer) observe(op string, start time.Time, ans Answer, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	result := outcome(ans, err)

	if o.metrics != nil {
		o.metrics.runs.WithLabelValues(op, result).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("run failed",
			"op", op,
			"kind", result,
			"duration", dur,
			"error", err,
		)
		return
	}
	o.logger.Debug("run completed",
		"op", op,
		"answer_kind", result,
		"fragments", len(ans.Fragments),
		"duration", dur,
	)
}
