package internal

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// 系統設計問題：
//   如何讓多個連接同時驅動同一個回合制遊戲的狀態機？
//
// 有限狀態機設計：
//
//	READY → STARTED → ROUND → TURN ─┬→ ROUND（新回合）
//	  ↑                             └→ READY（對局結束）
//
// 狀態轉換規則：
//   - READY → STARTED：準備計時器到期且準備人數 ≥ 2
//   - STARTED → ROUND → TURN：立即連續轉換
//   - TURN 結束：所有已準備成員都出拳，或成員數跌破下限
//   - 任何非 READY 狀態 → READY：對局取消（人數不足）
//
// 併發控制：
//   - 單一互斥鎖保護成員表、出拳表與階段欄位
//   - 整個轉換（含所有廣播）在鎖內完成：同一次轉換產生的
//     訊息一定先於下一則入站訊息被處理
//   - 計時器回調先取鎖、再確認自己仍是現任計時器，
//     確保取消後的回調不會觀察或修改房間狀態

// Phase 遊戲房間的當前階段
type Phase string

const (
	PhaseReady   Phase = "READY"   // 等待成員準備
	PhaseStarted Phase = "STARTED" // 對局剛開始（瞬時）
	PhaseRound   Phase = "ROUND"   // 回合開始（瞬時）
	PhaseTurn    Phase = "TURN"    // 收集出拳中
)

// 出拳選項（單一小寫字母）
const (
	PickRock     = "r"
	PickPaper    = "p"
	PickScissors = "s"
)

// GameRoom 執行準備/回合/出拳狀態機的房間
//
// 生命週期回調（onSessionStart、onRoundStart、onTurnStart、
// onTurnEnd、onRoundEnd、onSessionEnd、onSessionAdded、
// onSessionRemoved）全部是持鎖呼叫的內部方法：以單一具體型別
// 取代多層繼承，同時保留以回調為擴展點的結構。
type GameRoom struct {
	name   string
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	sessions  map[int64]*Session
	picks     map[int64]string // clientID -> r/p/s，每回合開始時清空
	phase     Phase
	resolving bool // 結算進行中，抑制廣播淘汰引發的再次結算

	// 至多一個存活實例；回調觸發時與此欄位比對判定是否已被取消
	readyTimer *ReadyTimer
}

// NewGameRoom 創建遊戲房間（初始階段 READY）
func NewGameRoom(name string, cfg Config, logger *slog.Logger) *GameRoom {
	return &GameRoom{
		name:     name,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[int64]*Session),
		picks:    make(map[int64]string),
		phase:    PhaseReady,
	}
}

// Name 房間名稱（創建後不變）
func (r *GameRoom) Name() string {
	return r.name
}

// Phase 當前階段
func (r *GameRoom) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Size 當前成員數量
func (r *GameRoom) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// PickCount 當前回合已記錄的出拳數
func (r *GameRoom) PickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.picks)
}

// HasPick 某成員本回合是否已有出拳紀錄
func (r *GameRoom) HasPick(clientID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.picks[clientID]
	return ok
}

// -------------------------------------------------------
// 成員進出
// -------------------------------------------------------

// AddSession 加入成員
//
// 新成員在處理任何後續訊息之前，一定先被同步當前階段與
// 既有成員的準備/出拳/積分狀態（整個流程在鎖內完成）。
func (r *GameRoom) AddSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s
	r.onSessionAdded(s)
}

// RemoveSession 移除成員
func (r *GameRoom) RemoveSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(s)
}

// removeLocked 移除成員並觸發離開副作用（需要持有鎖）
func (r *GameRoom) removeLocked(s *Session) {
	if _, ok := r.sessions[s.ID]; !ok {
		return
	}
	delete(r.sessions, s.ID)
	r.onSessionRemoved(s)
}

// onSessionAdded 加入副作用：廣播通知 + 對新成員做狀態同步
func (r *GameRoom) onSessionAdded(s *Session) {
	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  fmt.Sprintf("%s 加入了 %s", s.DisplayName(), r.name),
	})

	// 新成員從乾淨狀態開始
	s.IsReady = false
	s.TookTurn = false

	// 同步當前階段與既有成員狀態（quiet 標記區分同步與即時公告）。
	// 先組好再發送：發送失敗要移除新成員，不能在遍歷成員表時做。
	sync := []Payload{{Type: TypePhase, Name: string(r.phase)}}
	for _, member := range r.sessions {
		if member.ID == s.ID {
			continue
		}
		sync = append(sync,
			Payload{Type: TypeReadyStatus, ClientID: member.ID, Ready: member.IsReady, Quiet: true},
			Payload{Type: TypeTurnStatus, ClientID: member.ID, TookTurn: member.TookTurn, Quiet: true})
		if member.Points > 0 {
			sync = append(sync,
				Payload{Type: TypePoints, ClientID: member.ID, Points: member.Points, Quiet: true})
		}
	}
	for _, p := range sync {
		if !s.Send(p) {
			r.removeLocked(s)
			return
		}
	}
}

// onSessionRemoved 離開副作用：清掉待決出拳、檢查對局是否要收尾
func (r *GameRoom) onSessionRemoved(s *Session) {
	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  fmt.Sprintf("%s 離開了 %s", s.DisplayName(), r.name),
	})

	delete(r.picks, s.ID)

	// 人數跌破下限且對局進行中 → 立即結束對局
	if len(r.sessions) < r.cfg.MinimumToStart && r.phase != PhaseReady {
		r.onSessionEnd()
		return
	}

	// 離開者可能正是大家在等的那一位
	if r.phase == PhaseTurn && r.allPickedLocked() {
		r.onTurnEnd()
	}
}

// -------------------------------------------------------
// 聊天
// -------------------------------------------------------

// HandleMessage 廣播聊天訊息
func (r *GameRoom) HandleMessage(sender *Session, text string) {
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

// -------------------------------------------------------
// 準備處理
// -------------------------------------------------------

// HandleReady 準備訊號
//
// 只在 READY 階段、且發送者是成員時接受。切換準備被策略
// 關閉：準備只能 false→true，重複準備是冪等操作，不會
// 重新武裝計時器。
func (r *GameRoom) HandleReady(sender *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkInRoomLocked(sender); err != nil {
		r.rejectLocked(sender, "無法準備", err)
		return
	}
	if err := r.checkPhaseLocked(PhaseReady); err != nil {
		r.rejectLocked(sender, "無法準備", err)
		return
	}

	if sender.IsReady && !r.cfg.AllowToggleReady {
		// 冪等：保持 true，也不重置計時器
		return
	}

	if r.cfg.AllowToggleReady {
		sender.IsReady = !sender.IsReady
	} else {
		sender.IsReady = true
	}

	r.broadcastLocked(Payload{
		Type:     TypeReadyStatus,
		ClientID: sender.ID,
		Ready:    sender.IsReady,
	})
	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  fmt.Sprintf("%s 已準備", sender.DisplayName()),
	})

	r.armReadyTimerLocked()
}

// armReadyTimerLocked 武裝準備計時器（需要持有鎖）
//
// 已有存活實例時是 no-op：先解除才能重新武裝，任何時刻
// 至多一個待決回調。
func (r *GameRoom) armReadyTimerLocked() {
	if r.readyTimer != nil {
		return
	}

	var t *ReadyTimer
	t = NewReadyTimer(
		r.cfg.ReadyTimerDuration,
		func(remaining int) {
			r.logger.Debug("準備倒數",
				"room", r.name,
				"remaining", remaining)
		},
		func() {
			r.readyTimerExpired(t)
		},
	)
	r.readyTimer = t

	r.logger.Info("準備計時器啟動",
		"room", r.name,
		"duration", r.cfg.ReadyTimerDuration)
}

// resetReadyTimerLocked 解除準備計時器（需要持有鎖）
func (r *GameRoom) resetReadyTimerLocked() {
	if r.readyTimer != nil {
		r.readyTimer.Cancel()
		r.readyTimer = nil
	}
}

// readyTimerExpired 計時器到期回調（在計時器自己的 goroutine 上）
//
// 取鎖後先確認自己仍是現任計時器：若期間已被解除，
// 這個回調不得觀察或修改任何房間狀態。
func (r *GameRoom) readyTimerExpired(t *ReadyTimer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.readyTimer != t {
		return
	}
	r.readyTimer = nil

	numReady := 0
	for _, s := range r.sessions {
		if s.IsReady {
			numReady++
		}
	}

	r.logger.Info("準備計時器到期",
		"room", r.name,
		"ready", numReady,
		"required", r.cfg.MinimumToStart)

	if numReady >= r.cfg.MinimumToStart {
		r.onSessionStart()
	} else {
		r.onSessionEnd()
	}
}

// -------------------------------------------------------
// 對局與回合生命週期（全部需要持有鎖）
// -------------------------------------------------------

// onSessionStart 對局開始：清空出拳與回合旗標，連續推進到 TURN
//
// 準備旗標此時保留：它在對局期間代表「本局參與者」，
// 對局結束回到 READY 時才歸零。中途加入的成員因此無法出拳
// （未準備），也不會被計入回合結算的等待名單。
func (r *GameRoom) onSessionStart() {
	r.logger.Info("對局開始", "room", r.name)

	r.changePhaseLocked(PhaseStarted)
	clear(r.picks)
	r.resetTurnStatusLocked()

	r.onRoundStart()
}

// onRoundStart 回合開始
func (r *GameRoom) onRoundStart() {
	r.changePhaseLocked(PhaseRound)
	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  "新回合開始！請選擇石頭、布或剪刀。",
	})

	r.onTurnStart()
}

// onTurnStart 進入收集出拳階段
func (r *GameRoom) onTurnStart() {
	r.changePhaseLocked(PhaseTurn)
	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  "等待所有玩家出拳……",
	})
}

// onTurnEnd 出拳收齊，進行結算
//
// 結算自身的廣播可能因發送失敗移除成員，使「出拳收齊」
// 在移除路徑上再度成立；resolving 保證同一回合至多結算一次。
func (r *GameRoom) onTurnEnd() {
	if r.resolving {
		return
	}
	r.resolving = true

	r.logger.Info("回合結算", "room", r.name, "picks", len(r.picks))
	r.resolveRoundLocked()

	r.resolving = false
}

// onRoundEnd 回合收尾：清空出拳、歸零回合旗標、自動開下一回合
func (r *GameRoom) onRoundEnd() {
	// 結算廣播途中可能因成員淘汰觸發對局取消
	if r.phase == PhaseReady {
		return
	}

	clear(r.picks)
	r.resetTurnStatusLocked()
	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  "回合結束。",
	})

	r.onRoundStart()
}

// onSessionEnd 對局取消/結束：回到 READY，清空所有遊戲狀態
func (r *GameRoom) onSessionEnd() {
	r.logger.Info("對局結束", "room", r.name)

	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  "準備人數不足，對局取消。",
	})

	r.changePhaseLocked(PhaseReady)
	r.resetReadyTimerLocked()
	clear(r.picks)
	r.resetReadyStatusLocked()
	r.resetTurnStatusLocked()
}

// -------------------------------------------------------
// 出拳處理與勝負結算
// -------------------------------------------------------

// HandlePick 出拳
//
// 驗證鏈：房間成員 → 已準備 → TURN 階段 → 合法選項。
// 任一步失敗只回覆發送者，共享狀態不變。
func (r *GameRoom) HandlePick(sender *Session, choice string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkInRoomLocked(sender); err != nil {
		r.rejectLocked(sender, "無法出拳", err)
		return
	}
	if !sender.IsReady {
		r.rejectLocked(sender, "無法出拳", ErrNotReady)
		return
	}
	if err := r.checkPhaseLocked(PhaseTurn); err != nil {
		r.rejectLocked(sender, "無法出拳", err)
		return
	}

	choice = strings.ToLower(strings.TrimSpace(choice))
	if choice != PickRock && choice != PickPaper && choice != PickScissors {
		r.rejectLocked(sender, "無法出拳", ErrInvalidPick)
		return
	}

	r.picks[sender.ID] = choice
	sender.TookTurn = true

	r.broadcastLocked(Payload{
		Type:     TypeTurnStatus,
		ClientID: sender.ID,
		TookTurn: true,
	})
	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  fmt.Sprintf("%s 已出拳。", sender.DisplayName()),
	})

	// 全員到齊立即結算，不等計時器
	if r.allPickedLocked() {
		r.onTurnEnd()
	}
}

// allPickedLocked 本局所有參與者（已準備成員）是否都已出拳
func (r *GameRoom) allPickedLocked() bool {
	waiting := 0
	for _, s := range r.sessions {
		if s.IsReady {
			waiting++
		}
	}
	return waiting > 0 && len(r.picks) >= waiting
}

// resolveRoundLocked 結算當前回合（需要持有鎖）
//
// 出拳不足 2 個時取消回合、不計算勝者；否則依循環規則
// 判定：石頭勝剪刀、剪刀勝布、布勝石頭。
func (r *GameRoom) resolveRoundLocked() {
	if len(r.picks) < 2 {
		r.broadcastLocked(Payload{
			Type:     TypeMessage,
			ClientID: ServerID,
			Message:  "出拳人數不足，回合取消。",
		})
		r.onRoundEnd()
		return
	}

	var sb strings.Builder
	sb.WriteString("=== 回合結果 ===\n")

	// 固定順序輸出，避免 map 遍歷順序造成的雜訊
	ids := make([]int64, 0, len(r.picks))
	for id := range r.picks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		name := fmt.Sprintf("#%d", id)
		if s, ok := r.sessions[id]; ok {
			name = s.DisplayName()
		}
		sb.WriteString(fmt.Sprintf("%s → %s\n", name, fullPickName(r.picks[id])))
	}

	winning, winners := determineWinner(r.picks)
	if winning == "" {
		sb.WriteString("結果：平手，所有出拳互相抵消！")
	} else {
		sb.WriteString(fmt.Sprintf("勝出拳：%s\n勝者：", fullPickName(winning)))
		for i, id := range winners {
			if i > 0 {
				sb.WriteString("、")
			}
			if s, ok := r.sessions[id]; ok {
				sb.WriteString(s.DisplayName())
			} else {
				sb.WriteString(fmt.Sprintf("#%d", id))
			}
		}

		// 勝者累積積分並廣播更新
		for _, id := range winners {
			if s, ok := r.sessions[id]; ok {
				s.Points++
				r.broadcastLocked(Payload{
					Type:     TypePoints,
					ClientID: s.ID,
					Points:   s.Points,
				})
			}
		}
	}

	r.broadcastLocked(Payload{
		Type:     TypeMessage,
		ClientID: ServerID,
		Message:  sb.String(),
	})

	r.onRoundEnd()
}

// determineWinner 從出拳集合判定勝出拳與勝者名單
//
// 勝負只取決於出拳的多重集合、與玩家身份無關：
//   - 三種拳同時出現，或所有出拳相同 → 平手（回傳空字串）
//   - 否則恰好兩種拳，依循環規則取勝出拳，
//     所有出該拳的玩家都是勝者
func determineWinner(picks map[int64]string) (winning string, winners []int64) {
	var rc, pc, sc int
	for _, ch := range picks {
		switch ch {
		case PickRock:
			rc++
		case PickPaper:
			pc++
		case PickScissors:
			sc++
		}
	}

	total := len(picks)
	if (rc > 0 && pc > 0 && sc > 0) || rc == total || pc == total || sc == total {
		return "", nil
	}

	switch {
	case rc > 0 && sc > 0 && pc == 0:
		winning = PickRock
	case pc > 0 && rc > 0 && sc == 0:
		winning = PickPaper
	case sc > 0 && pc > 0 && rc == 0:
		winning = PickScissors
	}

	for id, ch := range picks {
		if ch == winning {
			winners = append(winners, id)
		}
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i] < winners[j] })
	return winning, winners
}

// fullPickName 單字母選項的完整名稱
func fullPickName(ch string) string {
	switch ch {
	case PickRock:
		return "石頭"
	case PickPaper:
		return "布"
	case PickScissors:
		return "剪刀"
	default:
		return ch
	}
}

// -------------------------------------------------------
// 狀態同步與重置（全部需要持有鎖）
// -------------------------------------------------------

// changePhaseLocked 轉換階段並廣播（相同階段為 no-op）
func (r *GameRoom) changePhaseLocked(p Phase) {
	if r.phase == p {
		return
	}
	r.phase = p
	r.broadcastLocked(Payload{Type: TypePhase, Name: string(p)})
}

// resetReadyStatusLocked 全員準備旗標歸零並廣播重置
func (r *GameRoom) resetReadyStatusLocked() {
	for _, s := range r.sessions {
		s.IsReady = false
	}
	r.broadcastLocked(Payload{Type: TypeResetReady})
}

// resetTurnStatusLocked 全員回合旗標歸零並廣播重置
func (r *GameRoom) resetTurnStatusLocked() {
	for _, s := range r.sessions {
		s.TookTurn = false
	}
	r.broadcastLocked(Payload{Type: TypeResetTurn})
}

// -------------------------------------------------------
// 驗證與單播
// -------------------------------------------------------

// checkInRoomLocked 發送者必須是房間成員
func (r *GameRoom) checkInRoomLocked(s *Session) error {
	if _, ok := r.sessions[s.ID]; !ok {
		return ErrPlayerNotFound
	}
	return nil
}

// checkPhaseLocked 當前階段必須符合要求
func (r *GameRoom) checkPhaseLocked(required Phase) error {
	if r.phase != required {
		return ErrPhaseMismatch
	}
	return nil
}

// rejectLocked 拒絕動作：只回覆發送者，附上當前階段方便除錯
func (r *GameRoom) rejectLocked(s *Session, action string, err error) {
	r.logger.Debug("動作被拒絕",
		"room", r.name,
		"client_id", s.ID,
		"action", action,
		"reason", err)

	r.sendToLocked(s, Payload{
		Type:    TypeError,
		Message: fmt.Sprintf("%s：%s（當前階段 %s）", action, err, r.phase),
	})
}

// sendToLocked 單播，失敗視為隱式斷線並移除（需要持有鎖）
func (r *GameRoom) sendToLocked(s *Session, p Payload) {
	if !s.Send(p) {
		r.removeLocked(s)
	}
}

// broadcastLocked 廣播，發送失敗的成員安全移除（需要持有鎖）
func (r *GameRoom) broadcastLocked(p Payload) {
	for _, s := range deliver(r.sessions, p) {
		r.logger.Warn("廣播發送失敗，移除成員",
			"room", r.name,
			"client_id", s.ID)
		r.removeLocked(s)
	}
}
