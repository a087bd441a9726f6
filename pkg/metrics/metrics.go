package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 扫描相关的 Prometheus 指标
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil
type Metrics struct {
	registry        *prometheus.Registry
	scansTotal      *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	anomaliesTotal  *prometheus.CounterVec
	scannedEntries  prometheus.Counter
	resolutionTotal *prometheus.CounterVec
}

// New 创建并注册指标到独立的 Registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_scans_total",
			Help: "Total number of anomaly scans by result.",
		}, []string{"result"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_scan_duration_seconds",
			Help:    "Histogram of anomaly scan durations.",
			Buckets: prometheus.DefBuckets,
		}),
		anomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_anomalies_total",
			Help: "Total anomalies recorded by severity and action.",
		}, []string{"severity", "action"}),
		scannedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payguard_scanned_entries_total",
			Help: "Total number of completed time entries scored.",
		}),
		resolutionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_resolutions_total",
			Help: "Total anomaly resolutions by outcome.",
		}, []string{"resolution"}),
	}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.scansTotal,
		m.scanDuration,
		m.anomaliesTotal,
		m.scannedEntries,
		m.resolutionTotal,
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 测试中读取指标
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ScanFinished 记录一次扫描
func (m *Metrics) ScanFinished(duration time.Duration, entries int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.scansTotal.WithLabelValues(result).Inc()
	m.scanDuration.Observe(duration.Seconds())
	m.scannedEntries.Add(float64(entries))
}

// AnomalyRecorded 记录一条新异常
func (m *Metrics) AnomalyRecorded(severity, action string) {
	if m == nil {
		return
	}
	m.anomaliesTotal.WithLabelValues(severity, action).Inc()
}

// AnomalyResolved 记录一次人工处理
func (m *Metrics) AnomalyResolved(resolution string) {
	if m == nil {
		return
	}
	m.resolutionTotal.WithLabelValues(resolution).Inc()
}
