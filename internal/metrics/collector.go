// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 运行指标
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
	runsActive  prometheus.Gauge

	// 阶段指标
	stageInvocationsTotal *prometheus.CounterVec
	stageDuration         *prometheus.HistogramVec

	// 任务指标
	tasksCreatedTotal prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为空时使用默认注册表；
// 测试应传入独立的 prometheus.NewRegistry()。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	factory := newFactory(reg)

	c.runsTotal = factory.counterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total number of agent runs by terminal status",
	}, []string{"status"})

	c.runDuration = factory.histogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Agent run duration in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	c.runsActive = factory.gauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "runs_active",
		Help:      "Number of agent runs currently in flight",
	})

	c.stageInvocationsTotal = factory.counterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_invocations_total",
		Help:      "Total number of stage invocations by stage and status",
	}, []string{"stage", "status"})

	c.stageDuration = factory.histogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Stage invocation duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"stage"})

	c.tasksCreatedTotal = factory.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_created_total",
		Help:      "Total number of tasks created",
	})

	return c
}

// TaskCreated 记录任务创建
func (c *Collector) TaskCreated() {
	c.tasksCreatedTotal.Inc()
}

// RunStarted 记录运行开始
func (c *Collector) RunStarted() {
	c.runsActive.Inc()
}

// RunFinished 记录运行结束
func (c *Collector) RunFinished(status string, duration time.Duration) {
	c.runsActive.Dec()
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// ObserveStage 记录单个阶段调用
func (c *Collector) ObserveStage(stage string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.stageInvocationsTotal.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// --- registerer-bound 构造辅助 ---

type factory struct{ reg prometheus.Registerer }

func newFactory(reg prometheus.Registerer) factory { return factory{reg: reg} }

func (f factory) counter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	f.reg.MustRegister(c)
	return c
}

func (f factory) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.reg.MustRegister(c)
	return c
}

func (f factory) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.reg.MustRegister(g)
	return g
}

func (f factory) histogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	f.reg.MustRegister(h)
	return h
}

func (f factory) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.reg.MustRegister(h)
	return h
}
