package internal

import (
	"sync"
	"time"
)

// 系統設計問題：
//   如何實現一個可取消的單次延遲回調，並附帶每秒的進度通知？
//
// 核心挑戰：
//   1. 取消必須冪等（取消已取消或已觸發的計時器是 no-op）
//   2. 取消後回調絕不能再觀察或修改房間狀態
//   3. 每個遊戲房間同一時間至多一個存活實例
//
// 設計方案：
//   - 獨立 goroutine + time.Ticker 逐秒倒數
//   - stop channel + sync.Once 實現冪等取消
//   - 「是否仍是現任計時器」的檢查交給持有房間鎖的呼叫端
//     （見 GameRoom.readyTimerExpired）

// ReadyTimer 準備倒數計時器
//
// 單次觸發：倒數歸零時呼叫 expire 回調；期間每秒呼叫一次
// tick 回調（僅用於進度顯示，可為 nil）。
type ReadyTimer struct {
	duration time.Duration
	tick     func(remaining int)
	expire   func()

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReadyTimer 創建並立即啟動計時器
func NewReadyTimer(duration time.Duration, tick func(remaining int), expire func()) *ReadyTimer {
	t := &ReadyTimer{
		duration: duration,
		tick:     tick,
		expire:   expire,
		stopCh:   make(chan struct{}),
	}

	go t.run()
	return t
}

// run 倒數迴圈
func (t *ReadyTimer) run() {
	// 進度通知以秒為單位；不足一秒的時長只剩最後的到期觸發
	remaining := int(t.duration / time.Second)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	deadline := time.NewTimer(t.duration)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.C:
			remaining--
			if t.tick != nil && remaining > 0 {
				t.tick(remaining)
			}
		case <-deadline.C:
			t.expire()
			return
		case <-t.stopCh:
			return
		}
	}
}

// Cancel 取消計時器（冪等）
//
// 取消只保證 expire 回調不會「開始」執行；與正在觸發中的
// 回調之間的競態由呼叫端在自己的鎖內判定（檢查自己是否
// 仍是現任計時器）。
func (t *ReadyTimer) Cancel() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}
