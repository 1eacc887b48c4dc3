package internal

import (
	"fmt"
	"log/slog"
	"sync"
)

// 系統設計問題：
//   多個獨立驅動的連接如何安全地共享同一個房間的可變狀態？
//
// 核心挑戰：
//   1. 成員管理：加入、離開與斷線可能來自任意 goroutine
//   2. 廣播：發送途中某成員的傳輸可能已經死亡
//   3. 分派：不同種類的房間支援不同的動作集合
//
// 設計方案：
//   - Room 介面作為明確的能力集合，取代執行期的反射查找：
//     不支援的動作成為介面實現中的明確分支，而非查找失敗
//   - 每個房間實例一把互斥鎖，所有成員/狀態變更都在鎖內完成
//   - 廣播採「先收集、後移除」模式，避免遍歷時修改成員表

// Room 房間的能力集合
//
// 所有房間變體（大廳、遊戲房）都實現這組操作。動作處理方法
// 自行驗證發送者資格，驗證失敗只回覆給發送者、不改變共享狀態。
type Room interface {
	Name() string

	// AddSession / RemoveSession 更新成員表並觸發對應的
	// 加入／離開副作用（廣播通知、狀態同步）
	AddSession(s *Session)
	RemoveSession(s *Session)

	// HandleMessage 聊天訊息，廣播給所有成員
	HandleMessage(sender *Session, text string)

	// HandleReady / HandlePick 遊戲動作；非遊戲房間回覆
	// 不支援的說明
	HandleReady(sender *Session)
	HandlePick(sender *Session, choice string)

	Size() int
}

// deliver 將訊息發給所有成員，回傳發送失敗的成員
//
// 失敗的發送視為隱式斷線：呼叫端負責在同一把鎖內把這些
// 成員移出成員表（先收集、後移除，避免遍歷時修改 map）。
func deliver(sessions map[int64]*Session, p Payload) []*Session {
	var dead []*Session
	for _, s := range sessions {
		if !s.Send(p) {
			dead = append(dead, s)
		}
	}
	return dead
}

// ChatRoom 純聊天房間（大廳）
//
// 只有成員管理與廣播，沒有遊戲狀態機。
type ChatRoom struct {
	name     string
	mu       sync.Mutex
	sessions map[int64]*Session
	logger   *slog.Logger
}

// NewChatRoom 創建聊天房間
func NewChatRoom(name string, logger *slog.Logger) *ChatRoom {
	return &ChatRoom{
		name:     name,
		sessions: make(map[int64]*Session),
		logger:   logger,
	}
}

// Name 房間名稱（創建後不變）
func (r *ChatRoom) Name() string {
	return r.name
}

// AddSession 加入成員並廣播通知
func (r *ChatRoom) AddSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s
	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  fmt.Sprintf("%s 加入了 %s", s.DisplayName(), r.name),
	})
}

// RemoveSession 移除成員並廣播通知
//
// 移除不存在的成員是 no-op（斷線清理可能與廣播淘汰重疊）。
func (r *ChatRoom) RemoveSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return
	}
	delete(r.sessions, s.ID)

	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  fmt.Sprintf("%s 離開了 %s", s.DisplayName(), r.name),
	})
}

// HandleMessage 廣播聊天訊息（附上服務器端認定的來源）
func (r *ChatRoom) HandleMessage(sender *Session, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sender.ID]; !ok {
		sender.Send(Payload{Type: TypeError, Message: ErrPlayerNotFound.Error()})
		return
	}

	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: sender.ID,
		Message:  fmt.Sprintf("%s: %s", sender.DisplayName(), text),
	})
}

// HandleReady 聊天房間不支援準備動作
func (r *ChatRoom) HandleReady(sender *Session) {
	sender.Send(Payload{Type: TypeError, Message: "此房間不支援該動作：ready"})
}

// HandlePick 聊天房間不支援出拳動作
func (r *ChatRoom) HandlePick(sender *Session, choice string) {
	sender.Send(Payload{Type: TypeError, Message: "此房間不支援該動作：pick"})
}

// Size 當前成員數量
func (r *ChatRoom) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// broadcastLocked 廣播（需要持有鎖）
func (r *ChatRoom) broadcastLocked(p Payload) {
	for _, s := range deliver(r.sessions, p) {
		delete(r.sessions, s.ID)
		r.logger.Warn("廣播發送失敗，移除成員",
			"room", r.name,
			"client_id", s.ID)
	}
}
