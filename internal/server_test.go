package internal_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-game-server/internal"
)

// newTestServer 啟動完整的服務器（WebSocket + 監控端點）
func newTestServer(t *testing.T) (*httptest.Server, *internal.Hub) {
	t.Helper()

	reg := newTestRegistry()
	hub := internal.NewHub(reg, testLogger())
	handler := internal.NewHandler(reg, hub, testLogger())

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("GET /ws", hub.ServeWS)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return srv, hub
}

// dialWS 建立客戶端連接
func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// sendPayload 發送一則訊息
func sendPayload(t *testing.T, ws *websocket.Conn, p internal.Payload) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(p))
}

// readUntil 讀取訊息直到謂詞成立（跳過不相關的廣播）
func readUntil(t *testing.T, ws *websocket.Conn, match func(internal.Payload) bool) internal.Payload {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, ws.SetReadDeadline(deadline))

	for {
		var p internal.Payload
		require.NoError(t, ws.ReadJSON(&p), "等待訊息逾時")
		if match(p) {
			return p
		}
	}
}

// handshake 完成名稱握手並回傳分配到的 ID
func handshake(t *testing.T, ws *websocket.Conn, name string) int64 {
	t.Helper()

	sendPayload(t, ws, internal.Payload{Type: internal.TypeClientConnect, Name: name})
	p := readUntil(t, ws, func(p internal.Payload) bool {
		return p.Type == internal.TypeClientID
	})
	assert.Equal(t, name, p.Name)
	return p.ClientID
}

// TestServer_Handshake 測試名稱握手契約
func TestServer_Handshake(t *testing.T) {
	t.Run("assigns unique incrementing ids", func(t *testing.T) {
		srv, _ := newTestServer(t)

		ws1 := dialWS(t, srv)
		ws2 := dialWS(t, srv)

		id1 := handshake(t, ws1, "小明")
		id2 := handshake(t, ws2, "小華")

		assert.NotEqual(t, id1, id2)
		assert.Greater(t, id2, int64(0))
	})

	t.Run("actions before handshake rejected", func(t *testing.T) {
		srv, _ := newTestServer(t)
		ws := dialWS(t, srv)

		sendPayload(t, ws, internal.Payload{Type: internal.TypeReady})

		p := readUntil(t, ws, func(p internal.Payload) bool {
			return p.Type == internal.TypeError
		})
		assert.Contains(t, p.Message, "client_connect")
	})

	t.Run("empty name rejected", func(t *testing.T) {
		srv, _ := newTestServer(t)
		ws := dialWS(t, srv)

		sendPayload(t, ws, internal.Payload{Type: internal.TypeClientConnect, Name: "  "})

		p := readUntil(t, ws, func(p internal.Payload) bool {
			return p.Type == internal.TypeError
		})
		assert.Contains(t, p.Message, "顯示名稱不能為空")
	})
}

// TestServer_FullGame 端到端：握手、開房、準備、出拳、結算
func TestServer_FullGame(t *testing.T) {
	srv, _ := newTestServer(t)

	ws1 := dialWS(t, srv)
	ws2 := dialWS(t, srv)

	id1 := handshake(t, ws1, "小明")
	handshake(t, ws2, "小華")

	// 小明開房，小華加入
	sendPayload(t, ws1, internal.Payload{Type: internal.TypeRoomCreate, Name: "arena"})
	readUntil(t, ws1, func(p internal.Payload) bool {
		return p.Type == internal.TypeMessage && strings.Contains(p.Message, "已創建房間：arena")
	})

	sendPayload(t, ws2, internal.Payload{Type: internal.TypeRoomJoin, Name: "arena"})
	readUntil(t, ws1, func(p internal.Payload) bool {
		return p.Type == internal.TypeMessage && strings.Contains(p.Message, "加入了 arena")
	})

	// 雙方準備，等計時器到期進入 TURN
	sendPayload(t, ws1, internal.Payload{Type: internal.TypeReady})
	sendPayload(t, ws2, internal.Payload{Type: internal.TypeReady})

	readUntil(t, ws1, func(p internal.Payload) bool {
		return p.Type == internal.TypePhase && p.Name == "TURN"
	})
	readUntil(t, ws2, func(p internal.Payload) bool {
		return p.Type == internal.TypePhase && p.Name == "TURN"
	})

	// 石頭對剪刀
	sendPayload(t, ws1, internal.Payload{Type: internal.TypePick, Choice: "r"})
	sendPayload(t, ws2, internal.Payload{Type: internal.TypePick, Choice: "s"})

	result := readUntil(t, ws2, func(p internal.Payload) bool {
		return p.Type == internal.TypeMessage && strings.Contains(p.Message, "回合結果")
	})
	assert.Contains(t, result.Message, "勝出拳：石頭")

	points := readUntil(t, ws2, func(p internal.Payload) bool {
		return p.Type == internal.TypePoints
	})
	assert.Equal(t, id1, points.ClientID)
	assert.Equal(t, 1, points.Points)

	// 對局自動進入下一回合
	readUntil(t, ws1, func(p internal.Payload) bool {
		return p.Type == internal.TypeMessage && strings.Contains(p.Message, "新回合開始")
	})
}

// TestServer_DisconnectCleanup 測試斷線後的房間清理
func TestServer_DisconnectCleanup(t *testing.T) {
	srv, hub := newTestServer(t)

	ws1 := dialWS(t, srv)
	ws2 := dialWS(t, srv)

	handshake(t, ws1, "小明")
	handshake(t, ws2, "小華")

	// 在大廳互相可見
	readUntil(t, ws1, func(p internal.Payload) bool {
		return p.Type == internal.TypeMessage && strings.Contains(p.Message, "加入了 lobby")
	})

	// 小華主動離線
	sendPayload(t, ws2, internal.Payload{Type: internal.TypeDisconnect})

	p := readUntil(t, ws1, func(p internal.Payload) bool {
		return p.Type == internal.TypeMessage && strings.Contains(p.Message, "離開了 lobby")
	})
	assert.Contains(t, p.Message, "小華")

	require.Eventually(t, func() bool {
		return hub.ConnectionCount() == 1
	}, 2*time.Second, 20*time.Millisecond)
}

// TestServer_RoomList 測試房間清單查詢
func TestServer_RoomList(t *testing.T) {
	srv, _ := newTestServer(t)

	ws := dialWS(t, srv)
	handshake(t, ws, "小明")

	sendPayload(t, ws, internal.Payload{Type: internal.TypeRoomCreate, Name: "arena"})
	sendPayload(t, ws, internal.Payload{Type: internal.TypeRoomList})

	p := readUntil(t, ws, func(p internal.Payload) bool {
		return p.Type == internal.TypeRoomListResult
	})
	assert.Equal(t, []string{"arena", "lobby"}, p.Rooms)
}
