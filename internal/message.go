package internal

// 系統設計問題：
//   客戶端與服務器之間如何交換邏輯訊息？
//
// 設計方案：
//   - 單一 Payload 結構 + type 欄位作為訊息種類的判別標籤
//   - JSON 編碼走 WebSocket 文字幀（編碼細節與遊戲邏輯解耦）
//   - 省略為零值的欄位不序列化，保持線上訊息精簡

// PayloadType 訊息種類
type PayloadType string

// 客戶端 → 服務器
const (
	// TypeClientConnect 名稱握手：宣告顯示名稱，必須是第一則訊息
	TypeClientConnect PayloadType = "client_connect"
	// TypeMessage 聊天訊息（雙向：客戶端發送、服務器廣播）
	TypeMessage PayloadType = "message"
	// TypeRoomCreate 創建房間並自動加入
	TypeRoomCreate PayloadType = "room_create"
	// TypeRoomJoin 加入既有房間
	TypeRoomJoin PayloadType = "room_join"
	// TypeRoomLeave 離開當前房間回到大廳
	TypeRoomLeave PayloadType = "room_leave"
	// TypeRoomList 查詢所有房間名稱（只回覆請求者）
	TypeRoomList PayloadType = "room_list"
	// TypeReady 準備訊號（無額外內容）
	TypeReady PayloadType = "ready"
	// TypePick 出拳：choice 為 r/p/s（不分大小寫）
	TypePick PayloadType = "pick"
	// TypeDisconnect 客戶端主動告知離線
	TypeDisconnect PayloadType = "disconnect"
)

// 服務器 → 客戶端
const (
	// TypeClientID 握手回覆：分配到的唯一 ID
	TypeClientID PayloadType = "client_id"
	// TypeRoomListResult 房間名稱清單
	TypeRoomListResult PayloadType = "room_list_result"
	// TypePhase 房間階段通知
	TypePhase PayloadType = "phase"
	// TypeReadyStatus 某成員的準備狀態（Quiet 表示同步訊息而非即時變更）
	TypeReadyStatus PayloadType = "ready_status"
	// TypeTurnStatus 某成員的出拳狀態
	TypeTurnStatus PayloadType = "turn_status"
	// TypeResetReady 全員準備狀態歸零
	TypeResetReady PayloadType = "reset_ready"
	// TypeResetTurn 全員出拳狀態歸零
	TypeResetTurn PayloadType = "reset_turn"
	// TypePoints 某成員的累積積分
	TypePoints PayloadType = "points"
	// TypeError 動作被拒絕的說明（只發給出錯的連接）
	TypeError PayloadType = "error"
)

// ServerID 服務器廣播訊息使用的來源標記
const ServerID int64 = -1

// Payload 線上訊息
//
// 欄位依訊息種類選用：
//   - ClientID：訊息來源或狀態所屬的成員
//   - Name：握手的顯示名稱、房間名稱或階段名稱
//   - Message：聊天內容或人類可讀的說明
//   - Choice：出拳（r/p/s）
//   - Rooms：房間清單
//   - Ready / TookTurn：狀態旗標
//   - Quiet：true 表示這是讓新成員補齊狀態的同步訊息，
//     而非即時的狀態變更公告
type Payload struct {
	Type     PayloadType `json:"type"`
	ClientID int64       `json:"client_id,omitempty"`
	Name     string      `json:"name,omitempty"`
	Message  string      `json:"message,omitempty"`
	Choice   string      `json:"choice,omitempty"`
	Rooms    []string    `json:"rooms,omitempty"`
	Ready    bool        `json:"ready,omitempty"`
	TookTurn bool        `json:"took_turn,omitempty"`
	Points   int         `json:"points,omitempty"`
	Quiet    bool        `json:"quiet,omitempty"`
}
