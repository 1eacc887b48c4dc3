package internal

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Hub 連接接受器
//
// 職責：升級入站的 WebSocket 連接，為每條連接分配單調遞增的
// 唯一 ID 並構造對應的連接 worker。單一連接的失敗被隔離，
// 不影響其他連接與接受迴圈；只有監聽端口綁定失敗是致命的
// （由 cmd/server 的 http.Server 啟動路徑處理）。
type Hub struct {
	registry *Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// 每條被接受的連接在握手前就拿到 ID
	nextID atomic.Int64

	mu    sync.Mutex
	conns map[int64]*Conn
}

// NewHub 創建連接接受器
func NewHub(registry *Registry, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 生產環境應檢查來源
				return true
			},
		},
		conns: make(map[int64]*Conn),
	}
}

// ServeWS 接受一條新連接
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// 單一連接的失敗不影響接受迴圈
		h.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	id := h.nextID.Add(1)

	conn := NewConn(ws, id, h.registry, h.logger,
		func(s *Session) {
			// 握手完成：進入大廳，開始接受遊戲動作
			h.registry.AdmitSession(s)
		},
		func() {
			// 連接關閉：停止追蹤，避免連接表無上限增長
			h.untrack(id)
		})

	h.track(id, conn)
	conn.Start()

	h.logger.Info("連接已接受", "client_id", id, "remote", r.RemoteAddr)
}

// track 記錄存活連接（供關閉時清理）
func (h *Hub) track(id int64, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = c
}

// untrack 移除已關閉連接的追蹤
func (h *Hub) untrack(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// ConnectionCount 當前存活連接數
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, c := range h.conns {
		if c.State() != StateClosed {
			n++
		}
	}
	return n
}

// Stop 關閉所有連接
func (h *Hub) Stop() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[int64]*Conn)
	h.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}

	h.logger.Info("連接接受器已停止", "closed", len(conns))
}
