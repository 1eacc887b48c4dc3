package internal

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   每條客戶端連接如何獨立驅動，又能安全地寫入共享的房間狀態？
//
// 設計方案：
//   - 每條連接一個 worker：readPump 阻塞式接收並分派，
//     writePump 從緩衝 channel 送出（含 Ping 心跳）
//   - 握手優先：client_connect 之前拒絕一切遊戲動作
//   - 發送是盡力而為：傳輸失敗即關閉連接並回報呼叫端，
//     由呼叫端把會話視為隱式斷線移出房間

// ConnState 連接 worker 的生命週期狀態
type ConnState int32

const (
	// StateUninitialized 已構造、尚未啟動
	StateUninitialized ConnState = iota
	// StateAwaitingHandshake 等待 client_connect
	StateAwaitingHandshake
	// StateActive 握手完成，可處理遊戲動作
	StateActive
	// StateClosed 終態：任何狀態遇傳輸錯誤或主動退出都到這裡
	StateClosed
)

const (
	// 出站緩衝：緩衝滿代表消費端已死或嚴重落後，直接斷線
	sendBufferSize = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // 在 pongWait 前送出 Ping，留 6 秒余量
)

// Conn 連接 worker
//
// 擁有恰好一條 WebSocket 連接的接收迴圈與出站路徑。
type Conn struct {
	ws       *websocket.Conn
	registry *Registry
	logger   *slog.Logger

	session *Session
	state   atomic.Int32

	sendCh    chan Payload
	done      chan struct{}
	closeOnce sync.Once

	// 握手完成後回調（接受器用它把會話掛進大廳與監控）
	onReady func(s *Session)

	// 連接關閉後回調（接受器用它移除對此連接的追蹤）
	onClose func()
}

// NewConn 創建連接 worker（尚未啟動泵）
func NewConn(ws *websocket.Conn, id int64, registry *Registry, logger *slog.Logger, onReady func(s *Session), onClose func()) *Conn {
	c := &Conn{
		ws:       ws,
		registry: registry,
		logger:   logger.With("client_id", id),
		sendCh:   make(chan Payload, sendBufferSize),
		done:     make(chan struct{}),
		onReady:  onReady,
		onClose:  onClose,
	}
	c.session = NewSession(id, c)
	c.state.Store(int32(StateUninitialized))
	return c
}

// Session 此連接的會話
func (c *Conn) Session() *Session {
	return c.session
}

// State 當前生命週期狀態
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// Start 啟動讀寫泵
func (c *Conn) Start() {
	c.state.Store(int32(StateAwaitingHandshake))
	go c.writePump()
	go c.readPump()
}

// Send 盡力而為的發送
//
// 傳輸已死或緩衝已滿時回傳 false 並關閉連接（不重試），
// 讓呼叫端把這個會話從房間成員中移除。
func (c *Conn) Send(p Payload) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.sendCh <- p:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("出站緩衝已滿，關閉連接")
		c.shutdown()
		return false
	}
}

// readPump 接收迴圈
//
// 阻塞等待下一則入站訊息；EOF 或格式錯誤時記錄並終止迴圈。
// 迴圈結束後執行斷線清理：會話被移出所在房間與註冊表。
func (c *Conn) readPump() {
	defer func() {
		c.shutdown()
		c.registry.Evict(c.session)
		c.logger.Info("連接已關閉")
	}()

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var p Payload
		if err := c.ws.ReadJSON(&p); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("讀取訊息失敗", "error", err)
			}
			return
		}

		if done := c.dispatch(p); done {
			return
		}
	}
}

// writePump 發送迴圈（含 Ping 心跳）
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case p := <-c.sendCh:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.ws.WriteJSON(p); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// 立即關閉：不保證出站緩衝送達對端
			deadline := time.Now().Add(time.Second)
			if err := c.ws.SetWriteDeadline(deadline); err == nil {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return
		}
	}
}

// dispatch 依訊息種類分派（回傳 true 表示接收迴圈應結束）
//
// 握手契約：client_connect 必須先處理；握手完成前
// worker 沒有當前房間，一切遊戲動作都被拒絕。
func (c *Conn) dispatch(p Payload) bool {
	if c.State() != StateActive {
		if p.Type == TypeClientConnect {
			c.handleHandshake(p)
			return false
		}
		c.Send(Payload{Type: TypeError, Message: "請先發送 client_connect 完成名稱握手"})
		c.logger.Debug("握手前收到訊息", "type", p.Type)
		return false
	}

	switch p.Type {
	case TypeClientConnect:
		// 名稱只能在首次房間動作前宣告一次
		c.Send(Payload{Type: TypeError, Message: "已完成握手"})

	case TypeMessage:
		c.withRoom(func(room Room) { room.HandleMessage(c.session, p.Message) })

	case TypeRoomCreate:
		_ = c.registry.CreateRoom(p.Name, c.session)

	case TypeRoomJoin:
		_ = c.registry.JoinRoom(p.Name, c.session)

	case TypeRoomLeave:
		_ = c.registry.LeaveRoom(c.session)

	case TypeRoomList:
		c.registry.ListRooms(c.session)

	case TypeReady:
		c.withRoom(func(room Room) { room.HandleReady(c.session) })

	case TypePick:
		c.withRoom(func(room Room) { room.HandlePick(c.session, p.Choice) })

	case TypeDisconnect:
		return true

	default:
		c.logger.Warn("不支援的訊息種類", "type", p.Type)
		c.Send(Payload{Type: TypeError, Message: "不支援的動作：" + string(p.Type)})
	}

	return false
}

// handleHandshake 處理名稱握手
func (c *Conn) handleHandshake(p Payload) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		c.Send(Payload{Type: TypeError, Message: "顯示名稱不能為空"})
		return
	}

	c.session.Name = name
	c.state.Store(int32(StateActive))

	c.Send(Payload{
		Type:     TypeClientID,
		ClientID: c.session.ID,
		Name:     name,
	})

	c.logger.Info("握手完成", "name", name)

	// 回調把會話掛進大廳（見 Hub.ServeWS）
	if c.onReady != nil {
		c.onReady(c.session)
	}
}

// withRoom 把動作轉給會話的當前房間
func (c *Conn) withRoom(fn func(room Room)) {
	room := c.registry.RoomOf(c.session.ID)
	if room == nil {
		c.Send(Payload{Type: TypeError, Message: "尚未加入任何房間"})
		return
	}
	fn(room)
}

// shutdown 立即關閉連接（冪等）
func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		_ = c.ws.Close()

		if c.onClose != nil {
			c.onClose()
		}
	})
}
