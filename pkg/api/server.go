package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/decker502/sanctuary/pkg/config"
)

// shutdownTimeout 优雅关闭等待进行中请求的时间
const shutdownTimeout = 5 * time.Second

// Server HTTP API 服务器，包含 WebSocket 推送
//
// 构造时不启动任何后台任务，Run 之前可以通过 Router() 在测试中使用。
type Server struct {
	router      *chi.Mux
	hub         *WebSocketHub
	rateLimiter *IPRateLimiter
	addr        string
}

// NewServer 按服务器配置创建 API 服务器
func NewServer(service Service, cfg config.ServerConfig, verbose bool) *Server {
	rl := NewIPRateLimiter(RateLimitConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
	hub := NewWebSocketHub(service, cfg.CORSOrigins)

	return &Server{
		router: NewRouter(RouterConfig{
			Service:        service,
			Hub:            hub,
			RateLimiter:    rl,
			CORSOrigins:    cfg.CORSOrigins,
			DisableLogging: !verbose,
		}),
		hub:         hub,
		rateLimiter: rl,
		addr:        cfg.ListenAddr,
	}
}

// Router 返回 HTTP 处理器
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub 返回 WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.hub
}

// Run 启动 WebSocket hub 并监听端口，直到 ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go s.hub.Run(hubCtx)
	defer s.rateLimiter.Stop()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// 被劫持的 WebSocket 连接不受 Shutdown 管理，由 hub 在 ctx 取消后关闭
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
