package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"method", "route"},
	)
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_fetch_requests_total",
			Help: "Outbound catalog fetches by kind (page/detail) and result.",
		},
		[]string{"kind", "result"},
	)
	itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_items_total",
			Help: "Items handled per job by outcome.",
		},
		[]string{"job", "outcome"},
	)
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_jobs_total",
			Help: "Finished crawl jobs by status.",
		},
		[]string{"status"},
	)
	upsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_upserts_total",
			Help: "Upsert pipeline writes by entity and result (inserted/existing/appended).",
		},
		[]string{"entity", "result"},
	)
	proxyChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_proxy_checks_total",
			Help: "Proxy connectivity probes by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		fetchTotal,
		itemsTotal,
		jobsTotal,
		upsertsTotal,
		proxyChecksTotal,
	)
}

// 条目结果
const (
	OutcomeStored           = "stored"
	OutcomeSkippedFetch     = "skipped_fetch"
	OutcomeSkippedNormalize = "skipped_normalize"
)

// RecordRequest 记录一次 HTTP 请求
func RecordRequest(method, route string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordFetch 记录一次出站抓取
func RecordFetch(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	fetchTotal.WithLabelValues(kind, result).Inc()
}

// RecordItem 记录单个条目的处理结果
func RecordItem(job, outcome string) {
	itemsTotal.WithLabelValues(job, outcome).Inc()
}

// RecordJob 记录任务结束状态
func RecordJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// RecordUpsert 记录流水线写入
func RecordUpsert(entity, result string) {
	upsertsTotal.WithLabelValues(entity, result).Inc()
}

// RecordProxyCheck 记录代理探测结果
func RecordProxyCheck(alive bool) {
	if alive {
		proxyChecksTotal.WithLabelValues("alive").Inc()
		return
	}
	proxyChecksTotal.WithLabelValues("failed").Inc()
}

// Handler 返回 Prometheus 指标导出 Handler
func Handler() http.Handler {
	return promhttp.Handler()
}
