// internal/utils/metrics.go
package utils

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "scriptcraft"

// Metrics collects application metrics
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	aiRequests     *prometheus.CounterVec
	aiDuration     *prometheus.HistogramVec
	generations    *prometheus.CounterVec
	mergeFallbacks prometheus.Counter
	activeAICalls  prometheus.Gauge
}

// NewMetrics 创建独立注册表下的指标集合
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ai_requests_total",
			Help:      "Completion calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Completion call latency.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"provider"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "script_generations_total",
			Help:      "Script generation and regeneration outcomes.",
		}, []string{"kind", "outcome"}),
		mergeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "merge_fallbacks_total",
			Help:      "Regenerations whose scene count changed so locks were discarded.",
		}),
		activeAICalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ai_requests_in_flight",
			Help:      "Completion calls currently in flight.",
		}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.aiRequests, m.aiDuration,
		m.generations, m.mergeFallbacks, m.activeAICalls)
	return m
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP 记录一次HTTP请求
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TrackAICall 标记一次AI调用开始，返回的函数在调用结束时记录结果
func (m *Metrics) TrackAICall(provider string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.activeAICalls.Inc()
	return func(outcome string) {
		m.activeAICalls.Dec()
		m.aiRequests.WithLabelValues(provider, outcome).Inc()
		m.aiDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}
}

// RecordGeneration 记录生成结果，kind 为 generate 或 regenerate
func (m *Metrics) RecordGeneration(kind, outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(kind, outcome).Inc()
}

// RecordMergeFallback 记录一次合并回退
func (m *Metrics) RecordMergeFallback() {
	if m == nil {
		return
	}
	m.mergeFallbacks.Inc()
}
