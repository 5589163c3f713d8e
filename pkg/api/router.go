// Package api 提供保护区的 HTTP 和 WebSocket 接口
//
// 路由只调用 Service 接口，不直接接触布局引擎，
// 所有修改都经过 SanctuaryService 的互斥锁，与查看器主循环串行执行。
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/decker502/sanctuary/pkg/config"
	"github.com/decker502/sanctuary/pkg/game"
	"github.com/decker502/sanctuary/pkg/metrics"
	"github.com/decker502/sanctuary/pkg/sanctuary"
	"github.com/decker502/sanctuary/pkg/utils"
)

// Service API 使用的保护区操作，*game.SanctuaryService 实现了该接口
type Service interface {
	Layout() game.LayoutState
	Stats() game.StatsState
	Catalog() *config.Catalog
	Projection() utils.IsoProjection
	IsUnlocked(id string) bool

	UnlockAnimal(id string) (sanctuary.Placement, error)
	HatchRandom() (string, sanctuary.Placement, error)
	AddGrave() (string, sanctuary.Placement, error)
	SetPendingAnimal(id string) error
	SetView(w sanctuary.ViewWindow) (sanctuary.ReflowResult, bool)
	Refresh() sanctuary.ReflowResult

	Subscribe(fn game.LayoutListener) func()
}

// RouterConfig 构建路由所需的依赖
//
// 测试中的典型用法：
//
//	router := api.NewRouter(api.RouterConfig{
//	    Service:         svc,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	    DisableLogging:  true,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Service 保护区服务（必需）
	Service Service

	// Hub 为 nil 时不挂载 /ws
	Hub *WebSocketHub

	// RateLimiter 为 nil 时按 RateLimitConfig 创建（都为 nil 时使用默认配置）
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins 为 nil 时只允许本机来源
	CORSOrigins []string

	DisableLogging bool
}

type routerHandlers struct {
	service Service
}

// NewRouter 构建路由和中间件
// 除了按需创建的限流器外不启动任何 goroutine，也不监听端口
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rlCfg)
	}
	r.Use(rateLimiter.Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{service: cfg.Service}

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// 布局
		r.Get("/layout", h.handleGetLayout)
		r.Get("/layout.png", h.handleGetLayoutPNG)
		r.Put("/view", h.handleSetView)
		r.Post("/refresh", h.handleRefresh)

		// 收集物
		r.Get("/catalog", h.handleGetCatalog)
		r.Post("/animals", h.handleUnlockAnimal)
		r.Post("/animals/random", h.handleHatchRandom)
		r.Post("/graves", h.handleAddGrave)
		r.Post("/pending", h.handleSetPending)

		r.Get("/stats", h.handleGetStats)
	})

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.HandleWebSocket)
	}

	return r
}

// metricsMiddleware 按路由模式记录请求耗时和状态码
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
