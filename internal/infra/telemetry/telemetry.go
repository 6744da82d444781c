package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cred"

// RecoveryMetrics counts verification code lifecycle events. A nil *RecoveryMetrics is a no-op.
type RecoveryMetrics struct {
	Issued      *prometheus.CounterVec
	RateLimited *prometheus.CounterVec
	Consumed    *prometheus.CounterVec
	Swept       prometheus.Counter
}

// NewRecoveryMetrics registers the recovery collectors with reg, or the default registerer.
func NewRecoveryMetrics(reg prometheus.Registerer) (*RecoveryMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recovery",
		Name:      "codes_issued_total",
		Help:      "Verification codes handed out, partitioned by kind and whether an active code was reused.",
	}, []string{"kind", "reused"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recovery",
		Name:      "rate_limited_total",
		Help:      "Issuance requests rejected by the per-user limit.",
	}, []string{"kind"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recovery",
		Name:      "codes_consumed_total",
		Help:      "Consume attempts partitioned by kind and outcome.",
	}, []string{"kind", "outcome"})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recovery",
		Name:      "codes_swept_total",
		Help:      "Expired verification codes deleted by the sweeper.",
	})

	var err error
	if issued, err = Register(reg, issued); err != nil {
		return nil, err
	}
	if rateLimited, err = Register(reg, rateLimited); err != nil {
		return nil, err
	}
	if consumed, err = Register(reg, consumed); err != nil {
		return nil, err
	}
	if swept, err = Register(reg, swept); err != nil {
		return nil, err
	}

	return &RecoveryMetrics{
		Issued:      issued,
		RateLimited: rateLimited,
		Consumed:    consumed,
		Swept:       swept,
	}, nil
}

// Register adds c to reg, returning the already registered collector when one with the same descriptor exists.
func Register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// CodeIssued records a handed-out code. reused is true when an active code was sent again.
func (m *RecoveryMetrics) CodeIssued(kind string, reused bool) {
	if m == nil {
		return
	}
	r := "false"
	if reused {
		r = "true"
	}
	m.Issued.WithLabelValues(kind, r).Inc()
}

// RateLimitHit records a code request refused by the per-user issuance window.
func (m *RecoveryMetrics) RateLimitHit(kind string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(kind).Inc()
}

// CodeConsumed records a consume attempt. outcome is one of "verified", "not_found" or "expired".
func (m *RecoveryMetrics) CodeConsumed(kind, outcome string) {
	if m == nil {
		return
	}
	m.Consumed.WithLabelValues(kind, outcome).Inc()
}

// CodesSwept adds n expired codes removed by a sweep.
func (m *RecoveryMetrics) CodesSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Swept.Add(float64(n))
}
