package internal

import "errors"

// 遊戲動作的錯誤分類
//
// 設計方案：
//   - 使用明確的 sentinel error 取代例外式控制流
//   - 驗證函式回傳錯誤值，呼叫端以 errors.Is 分支處理
//   - 全部屬於「局部可恢復」：拒絕該次動作、共享狀態不變、
//     只回覆給出錯的那一條連接
var (
	// ErrPlayerNotFound 動作發起者不是目標房間的成員
	ErrPlayerNotFound = errors.New("玩家不在房間內")

	// ErrNotReady 尚未按下準備就嘗試出拳
	ErrNotReady = errors.New("尚未準備")

	// ErrPhaseMismatch 在錯誤的階段發送動作（如非 TURN 階段出拳）
	ErrPhaseMismatch = errors.New("當前階段不允許此動作")

	// ErrInvalidPick 出拳不是 r/p/s 三者之一
	ErrInvalidPick = errors.New("無效的出拳")

	// ErrInvalidRoomName 創建房間時名稱為空白
	ErrInvalidRoomName = errors.New("房間名稱不能為空")

	// ErrRoomExists 創建房間時名稱已被使用（不分大小寫）
	ErrRoomExists = errors.New("房間已存在")

	// ErrRoomNotFound 加入的房間不存在
	ErrRoomNotFound = errors.New("房間不存在")
)
