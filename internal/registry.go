package internal

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// LobbyName 大廳房間的固定名稱（永遠存在的預設房間）
const LobbyName = "lobby"

// Config 遊戲行為配置
type Config struct {
	// ReadyTimerDuration 準備倒數時長
	ReadyTimerDuration time.Duration

	// MinimumToStart 開局所需的最少準備人數
	MinimumToStart int

	// AllowToggleReady 是否允許取消準備（目前策略關閉：
	// 準備只能 false→true）
	AllowToggleReady bool
}

// DefaultConfig 預設配置（30 秒倒數、至少 2 人）
func DefaultConfig() Config {
	return Config{
		ReadyTimerDuration: 30 * time.Second,
		MinimumToStart:     2,
		AllowToggleReady:   false,
	}
}

// Registry 房間註冊表
//
// 系統設計考量：
//
//  1. 明確的上下文物件：
//     註冊表在啟動時構造、以參照傳給需要它的元件
//     （接受器、連接 worker、監控 handler），而非行程級
//     單例，每個測試案例都能構造隔離的註冊表。
//
//  2. 鎖順序：
//     註冊表鎖 → 房間鎖，房間程式碼絕不回呼註冊表，
//     因此不存在反向取鎖、不會死鎖。成員換房（先加後離）
//     整段持有註冊表寫鎖，外界觀察不到雙重成員身份。
//
//  3. 空房回收：
//     非大廳房間在最後一名成員離開時立即從註冊表移除，
//     避免房間表無上限增長。
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.RWMutex
	rooms       map[string]Room // 名稱（小寫）-> 房間
	sessionRoom map[int64]Room  // clientID -> 所在房間
}

// NewRegistry 創建註冊表並建立大廳
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	reg := &Registry{
		cfg:         cfg,
		logger:      logger,
		rooms:       make(map[string]Room),
		sessionRoom: make(map[int64]Room),
	}
	reg.rooms[LobbyName] = NewChatRoom(LobbyName, logger)
	return reg
}

// AdmitSession 握手完成後讓會話進入大廳
func (reg *Registry) AdmitSession(s *Session) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	lobby := reg.rooms[LobbyName]
	lobby.AddSession(s)
	reg.sessionRoom[s.ID] = lobby

	reg.logger.Info("會話進入大廳",
		"client_id", s.ID,
		"name", s.Name)
}

// CreateRoom 創建房間並讓請求者立即加入
//
// 名稱不分大小寫；已存在時向請求者回報、不做任何變更。
func (reg *Registry) CreateRoom(name string, requester *Session) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		requester.Send(Payload{Type: TypeError, Message: ErrInvalidRoomName.Error()})
		return ErrInvalidRoomName
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rooms[name]; exists {
		requester.Send(Payload{
			Type:    TypeError,
			Message: fmt.Sprintf("%s: %s", ErrRoomExists, name),
		})
		return ErrRoomExists
	}

	room := NewGameRoom(name, reg.cfg, reg.logger)
	reg.rooms[name] = room

	reg.logger.Info("房間已創建",
		"room", name,
		"client_id", requester.ID)

	requester.Send(Payload{Type: TypeMessage, ClientID: ServerID,
		Message: fmt.Sprintf("已創建房間：%s", name)})

	reg.moveLocked(requester, room)
	return nil
}

// JoinRoom 加入既有房間
func (reg *Registry) JoinRoom(name string, requester *Session) error {
	name = strings.ToLower(strings.TrimSpace(name))

	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, exists := reg.rooms[name]
	if !exists {
		requester.Send(Payload{
			Type:    TypeError,
			Message: fmt.Sprintf("%s: %s", ErrRoomNotFound, name),
		})
		return ErrRoomNotFound
	}

	if reg.sessionRoom[requester.ID] == room {
		requester.Send(Payload{Type: TypeMessage, ClientID: ServerID,
			Message: fmt.Sprintf("你已在 %s 中", name)})
		return nil
	}

	reg.moveLocked(requester, room)
	return nil
}

// LeaveRoom 離開當前房間回到大廳
func (reg *Registry) LeaveRoom(requester *Session) error {
	return reg.JoinRoom(LobbyName, requester)
}

// ListRooms 回覆所有房間名稱（只給請求者，不廣播）
func (reg *Registry) ListRooms(requester *Session) {
	reg.mu.RLock()
	names := make([]string, 0, len(reg.rooms))
	for name := range reg.rooms {
		names = append(names, name)
	}
	reg.mu.RUnlock()

	sort.Strings(names)
	requester.Send(Payload{Type: TypeRoomListResult, Rooms: names})
}

// RoomOf 會話當前所在的房間（握手前為 nil）
func (reg *Registry) RoomOf(clientID int64) Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.sessionRoom[clientID]
}

// Evict 會話斷線清理：移出所在房間並遺忘該會話
func (reg *Registry) Evict(s *Session) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.sessionRoom[s.ID]
	if !ok {
		return
	}
	delete(reg.sessionRoom, s.ID)

	room.RemoveSession(s)
	reg.gcLocked(room)

	reg.logger.Info("會話已清理",
		"client_id", s.ID,
		"room", room.Name())
}

// moveLocked 換房：先加入新房、再離開舊房（需要持有寫鎖）
//
// 整段在註冊表寫鎖內完成，任何透過註冊表的查詢都不會
// 觀察到中間狀態（會話短暫同屬兩房）。
func (reg *Registry) moveLocked(s *Session, target Room) {
	old := reg.sessionRoom[s.ID]

	target.AddSession(s)
	reg.sessionRoom[s.ID] = target

	if old != nil {
		old.RemoveSession(s)
		reg.gcLocked(old)
	}

	reg.logger.Info("會話換房",
		"client_id", s.ID,
		"room", target.Name())
}

// gcLocked 回收空的非大廳房間（需要持有寫鎖）
func (reg *Registry) gcLocked(room Room) {
	if room.Name() == LobbyName || room.Size() > 0 {
		return
	}
	delete(reg.rooms, room.Name())
	reg.logger.Info("空房間已回收", "room", room.Name())
}

// RoomCount 當前房間數（含大廳）
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// HasRoom 房間是否存在（不分大小寫）
func (reg *Registry) HasRoom(name string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.rooms[strings.ToLower(name)]
	return ok
}

// Stats 統計資訊（供監控端點使用）
func (reg *Registry) Stats() map[string]any {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	perRoom := make(map[string]int, len(reg.rooms))
	for name, room := range reg.rooms {
		perRoom[name] = room.Size()
	}

	return map[string]any{
		"total_rooms":    len(reg.rooms),
		"total_sessions": len(reg.sessionRoom),
		"by_room":        perRoom,
	}
}
