package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 数据摄入指标
	rowsIngested   prometheus.Counter
	malformedRows  prometheus.Counter
	ticksGenerated prometheus.Counter

	// 流水线指标
	stageDuration *prometheus.HistogramVec
	stageRuns     *prometheus.CounterVec
	stageErrors   *prometheus.CounterVec

	// 信号指标
	alertsTotal *prometheus.CounterVec

	// 回测指标
	meanReturnBps prometheus.Gauge
	pctAlerts     prometheus.Gauge
	evalSamples   prometheus.Gauge

	// 面板指标
	wsClients    prometheus.Gauge
	apiRequests  *prometheus.CounterVec
	apiErrors    *prometheus.CounterVec
	reloadsTotal prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "ma",
		Subsystem: "pipeline",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()

	// 创建factory
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		// 数据摄入指标
		rowsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rows_ingested_total",
			Help:      "读取的行情行总数",
		}),
		malformedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "malformed_rows_total",
			Help:      "拒绝的非法输入行总数",
		}),
		ticksGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ticks_generated_total",
			Help:      "模拟器生成的tick总数",
		}),

		// 流水线指标
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stage_duration_seconds",
			Help:      "各阶段执行耗时分布",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage"}),
		stageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stage_runs_total",
			Help:      "各阶段执行次数",
		}, []string{"stage"}),
		stageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stage_errors_total",
			Help:      "各阶段失败次数",
		}, []string{"stage"}),

		// 信号指标
		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "alerts_total",
			Help:      "按规则分类的告警总数",
		}, []string{"rule"}),

		// 回测指标
		meanReturnBps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "mean_return_bps",
			Help:      "告警后平均前向收益(基点)",
		}),
		pctAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "pct_alerts",
			Help:      "告警行占总行数的比例",
		}),
		evalSamples: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "eval_samples",
			Help:      "参与收益评估的告警样本数",
		}),

		// 面板指标
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_clients",
			Help:      "当前WebSocket连接数",
		}),
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "api_requests_total",
			Help:      "API请求总数",
		}, []string{"endpoint"}),
		apiErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "api_errors_total",
			Help:      "API错误总数",
		}, []string{"endpoint"}),
		reloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "config_reloads_total",
			Help:      "配置热加载次数",
		}),
	}

	return m
}

// 摄入相关方法
func (m *Monitor) RecordRowsIngested(n int) {
	m.rowsIngested.Add(float64(n))
}

func (m *Monitor) RecordMalformedRow() {
	m.malformedRows.Inc()
}

func (m *Monitor) RecordTicksGenerated(n int) {
	m.ticksGenerated.Add(float64(n))
}

// 流水线相关方法
func (m *Monitor) RecordStage(stage string, seconds float64) {
	m.stageRuns.WithLabelValues(stage).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Monitor) RecordStageError(stage string) {
	m.stageErrors.WithLabelValues(stage).Inc()
}

// 信号相关方法
func (m *Monitor) RecordAlert(rule string) {
	m.alertsTotal.WithLabelValues(rule).Inc()
}

// 回测相关方法
func (m *Monitor) UpdateSummary(meanReturnBps, pctAlerts float64, samples int) {
	m.meanReturnBps.Set(meanReturnBps)
	m.pctAlerts.Set(pctAlerts)
	m.evalSamples.Set(float64(samples))
}

// 面板相关方法
func (m *Monitor) WSClientConnected() {
	m.wsClients.Inc()
}

func (m *Monitor) WSClientDisconnected() {
	m.wsClients.Dec()
}

func (m *Monitor) RecordAPIRequest(endpoint string) {
	m.apiRequests.WithLabelValues(endpoint).Inc()
}

func (m *Monitor) RecordAPIError(endpoint string) {
	m.apiErrors.WithLabelValues(endpoint).Inc()
}

func (m *Monitor) RecordConfigReload() {
	m.reloadsTotal.Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
