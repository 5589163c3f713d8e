package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/decker502/sanctuary/pkg/game"
	"github.com/decker502/sanctuary/pkg/metrics"
	"github.com/decker502/sanctuary/pkg/sanctuary"
)

const (
	// MaxWSConnections WebSocket 连接总数上限
	MaxWSConnections = 256

	wsSendBuffer = 16
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 1024
)

// 推送给客户端的事件
const (
	EventLayout = "layout"
	EventError  = "error"
)

// wsMessage 客户端和服务端之间的消息
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
}

// WebSocketHub 向所有连接的客户端推送布局变化
//
// 客户端可以发送 {"event":"view","data":"Week"} 切换视图，
// 结果通过下一次 layout 事件推送给所有客户端。
type WebSocketHub struct {
	service  Service
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]bool

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{} // Run 退出时关闭
}

// NewWebSocketHub 创建 hub，需要调用 Run 后才会处理连接
//
// 参数：
//   - service: 保护区服务
//   - origins: 允许的 Origin，支持 "*" 和 "http://localhost:*" 形式的端口通配
func NewWebSocketHub(service Service, origins []string) *WebSocketHub {
	h := &WebSocketHub{
		service:    service,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || originAllowed(origin, origins) {
				return true
			}
			log.Printf("[WebSocket] Rejected origin: %s", origin)
			metrics.RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run 处理注册、注销和广播，直到 ctx 取消
func (h *WebSocketHub) Run(ctx context.Context) {
	unsubscribe := h.service.Subscribe(func(layout game.LayoutState) {
		h.Broadcast(EventLayout, layout)
	})
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.UpdateWSConnections(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WebSocket] Client connected from %s (%d total)", c.ip, count)
			metrics.UpdateWSConnections(count)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WebSocket] Client disconnected (%d remaining)", count)
			metrics.UpdateWSConnections(count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 客户端跟不上，断开
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
			metrics.IncrementWSMessages()
		}
	}
}

// Broadcast 向所有客户端发送事件，队列满时丢弃
func (h *WebSocketHub) Broadcast(event string, data any) {
	msg, err := encodeMessage(event, data)
	if err != nil {
		log.Printf("[WebSocket] Failed to encode %s event: %v", event, err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount 当前连接数
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket 升级连接，先推送当前布局，然后开始读写
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= MaxWSConnections {
		metrics.RecordConnectionRejected("ws_limit")
		writeError(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade error: %v", err)
		return
	}

	c := &wsClient{conn: conn, ip: GetClientIP(r), send: make(chan []byte, wsSendBuffer)}
	if msg, err := encodeMessage(EventLayout, h.service.Layout()); err == nil {
		c.send <- msg
	}

	go h.writePump(c)
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
		return
	}
	go h.readPump(c)
}

// readPump 读取客户端命令，连接断开时注销
func (h *WebSocketHub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleCommand(c, data)
	}
}

// writePump 串行写出 send 队列中的消息并定期发送 ping
func (h *WebSocketHub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHub) handleCommand(c *wsClient, data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.reply(c, EventError, "invalid message")
		return
	}

	switch msg.Event {
	case "view":
		var name string
		if err := json.Unmarshal(msg.Data, &name); err != nil {
			h.reply(c, EventError, "view expects a window name")
			return
		}
		w, err := sanctuary.ParseViewWindow(name)
		if err != nil {
			h.reply(c, EventError, err.Error())
			return
		}
		if _, changed := h.service.SetView(w); !changed {
			// 视图未变化时不会触发广播，单独回复当前布局
			h.reply(c, EventLayout, h.service.Layout())
		}
	default:
		h.reply(c, EventError, "unknown event "+msg.Event)
	}
}

// reply 只发给一个客户端
func (h *WebSocketHub) reply(c *wsClient, event string, data any) {
	msg, err := encodeMessage(event, data)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func encodeMessage(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wsMessage{Event: event, Data: raw})
}

// originAllowed 判断 Origin 是否在允许列表中
// "http://localhost:*" 匹配 localhost 的任意端口
func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		switch {
		case a == "*" || a == origin:
			return true
		case strings.HasSuffix(a, ":*"):
			prefix := strings.TrimSuffix(a, "*")
			if strings.HasPrefix(origin, prefix) || origin == strings.TrimSuffix(prefix, ":") {
				return true
			}
		}
	}
	return false
}
