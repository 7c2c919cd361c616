// Package uniqueness Prometheus 指标
package uniqueness

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 唯一性评估指标
type Metrics struct {
	// 评估指标
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// 占用指标
	ClaimAttemptsTotal    *prometheus.CounterVec
	VerifierRejectsTotal  prometheus.Counter
	RollbackReleasesTotal prometheus.Counter
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total uniqueness evaluations by outcome",
			},
			[]string{"outcome"},
		),
		EvaluationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Uniqueness evaluation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		ClaimAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "claim_attempts_total",
				Help:      "Total claim attempts by result",
			},
			[]string{"result"},
		),
		VerifierRejectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifier_rejects_total",
				Help:      "Claims released after external verifier rejection",
			},
		),
		RollbackReleasesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollback_releases_total",
				Help:      "Compensating releases issued during evaluation rollback",
			},
		),
	}
}

// nil 安全的记录方法：未挂载指标时全部为空操作

func (m *Metrics) evaluation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(outcome).Inc()
	m.EvaluationDuration.Observe(d.Seconds())
}

func (m *Metrics) claimAttempt(result string) {
	if m == nil {
		return
	}
	m.ClaimAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) verifierReject() {
	if m == nil {
		return
	}
	m.VerifierRejectsTotal.Inc()
}

func (m *Metrics) rollbackRelease() {
	if m == nil {
		return
	}
	m.RollbackReleasesTotal.Inc()
}
