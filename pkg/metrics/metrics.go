package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ==================== 重抓对账指标 ====================

// RecrawlMetrics 对账运行指标
// 所有方法对 nil 接收者安全，测试里可以直接传 nil
type RecrawlMetrics struct {
	operations  *prometheus.CounterVec
	issues      *prometheus.CounterVec
	runs        *prometheus.CounterVec
	batches     *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewRecrawlMetrics 创建并注册对账指标
func NewRecrawlMetrics(reg prometheus.Registerer) *RecrawlMetrics {
	m := &RecrawlMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recrawl_operations_total",
				Help: "Reconciled records by level and operation type",
			},
			[]string{"store", "level", "operation"},
		),
		issues: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recrawl_issues_total",
				Help: "Skipped items and warnings by kind",
			},
			[]string{"store", "kind"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recrawl_runs_total",
				Help: "Recrawl runs by final status",
			},
			[]string{"store", "status"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recrawl_batches_committed_total",
				Help: "Committed reconciliation batches",
			},
			[]string{"store"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recrawl_run_duration_seconds",
				Help:    "Duration of recrawl runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
			},
			[]string{"store"},
		),
	}
	reg.MustRegister(m.operations, m.issues, m.runs, m.batches, m.runDuration)
	return m
}

// ObserveOperation 记录一条对账结果
func (m *RecrawlMetrics) ObserveOperation(store, level, operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.operations.WithLabelValues(store, level, operation).Add(float64(n))
}

// ObserveIssue 记录一个跳过或告警
func (m *RecrawlMetrics) ObserveIssue(store, kind string) {
	if m == nil {
		return
	}
	m.issues.WithLabelValues(store, kind).Inc()
}

// ObserveBatch 记录一个已提交批次
func (m *RecrawlMetrics) ObserveBatch(store string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(store).Inc()
}

// ObserveRun 记录一次运行结束
func (m *RecrawlMetrics) ObserveRun(store, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(store, status).Inc()
	m.runDuration.WithLabelValues(store).Observe(d.Seconds())
}

// ==================== HTTP 指标 ====================

// HTTPMetrics HTTP 请求指标
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics 创建并注册 HTTP 指标
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// Middleware gin 中间件
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requests.WithLabelValues(c.Request.Method, path, status).Inc()
		m.duration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露指标
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
