package report

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"opstool/types"
)

// Metrics 以 prometheus 指标统计求解过程
type Metrics struct {
	attempts     *prometheus.CounterVec // 按层级与结果统计求解次数
	steps        *prometheus.CounterVec // 按类型与结果统计子步
	stepAttempts prometheus.Histogram   // 每个子步的求解次数
	stepSize     *prometheus.GaugeVec   // 最近一个子步的步长
	elapsed      prometheus.Gauge       // 分析耗时
}

// NewMetrics 在 reg 上注册指标，重复注册时 panic
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "opstool_attempts_total",
			Help: "Total solve attempts by fallback tier and result",
		}, []string{"tier", "result"}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "opstool_steps_total",
			Help: "Total sub-steps by analysis mode and result",
		}, []string{"mode", "result"}),
		stepAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "opstool_step_attempts",
			Help:    "Solve attempts needed per sub-step",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 ~ 128
		}),
		stepSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opstool_step_size",
			Help: "Size of the most recent sub-step",
		}, []string{"mode"}),
		elapsed: f.NewGauge(prometheus.GaugeOpts{
			Name: "opstool_elapsed_seconds",
			Help: "Wall time since the controller was created",
		}),
	}
}

func result(code int) string {
	if code >= 0 {
		return "ok"
	}
	return "fail"
}

func (m *Metrics) AttemptStart(types.Attempt) {}

func (m *Metrics) AttemptResult(a types.Attempt, code int) {
	m.attempts.WithLabelValues(a.Tier.String(), result(code)).Inc()
}

func (m *Metrics) StepDone(o types.Outcome) { m.step(o) }

func (m *Metrics) StepFailed(o types.Outcome) { m.step(o) }

func (m *Metrics) step(o types.Outcome) {
	mode := o.Mode.String()
	m.steps.WithLabelValues(mode, result(o.Code)).Inc()
	m.stepAttempts.Observe(float64(o.Attempts))
	m.stepSize.WithLabelValues(mode).Set(o.Size)
	m.elapsed.Set(o.Elapsed.Seconds())
}

func (m *Metrics) Close() error { return nil }

// WriteText 以文本格式输出 g 中的全部指标
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
