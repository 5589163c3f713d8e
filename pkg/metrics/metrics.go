// Package metrics 定义保护区的 Prometheus 指标
//
// 所有标签值都是有限集合（类别、视图名、路由模式），不使用实体ID作为标签。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// 放置与布局
	placementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sanctuary_placements_total",
		Help: "Entities placed on the grid",
	}, []string{"category"}) // animal, marker

	placementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sanctuary_placement_failures_total",
		Help: "Unlock requests that did not place an entity",
	}, []string{"reason"}) // unknown, exhausted, duplicate

	gridGrowths = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sanctuary_grid_growths_total",
		Help: "Grid expansions triggered by placement",
	})

	reflowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sanctuary_reflows_total",
		Help: "Layout reflows per view window",
	}, []string{"view"})

	gridSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sanctuary_grid_size",
		Help: "Current grid side length",
	})

	visibleEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sanctuary_visible_entities",
		Help: "Entities visible in the current view",
	})

	registeredEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sanctuary_registered_entities",
		Help: "Entities in the registry",
	})

	hatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sanctuary_hatches_total",
		Help: "Fresh animal unlocks recorded in hatch statistics",
	})

	// HTTP
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint 为路由模式

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // rate_limit, origin

	// WebSocket
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPlacement 记录一次成功放置及其触发的扩张次数
func RecordPlacement(category string, growths int) {
	placementsTotal.WithLabelValues(category).Inc()
	if growths > 0 {
		gridGrowths.Add(float64(growths))
	}
}

// RecordPlacementFailure 记录放置失败
// reason 必须是 "unknown"、"exhausted" 或 "duplicate"
func RecordPlacementFailure(reason string) {
	placementFailures.WithLabelValues(reason).Inc()
}

// RecordReflow 记录一次重排
func RecordReflow(view string) {
	reflowsTotal.WithLabelValues(view).Inc()
}

// RecordHatch 记录一次孵化
func RecordHatch() {
	hatchesTotal.Inc()
}

// UpdateLayout 更新布局相关的仪表
func UpdateLayout(size, visible, total int) {
	gridSize.Set(float64(size))
	visibleEntities.Set(float64(visible))
	registeredEntities.Set(float64(total))
}

// RecordRequest 记录 HTTP 请求
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// RecordConnectionRejected 记录被拒绝的连接
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// UpdateWSConnections 更新 WebSocket 连接数
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages 增加 WebSocket 消息计数
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
