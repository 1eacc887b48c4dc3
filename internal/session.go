package internal

import "fmt"

// Sender 會話的出站發送能力
//
// 由 WebSocket 連接 worker 實現；測試中以假實現替代，
// 讓每個測試案例都能在不建立真實連接的情況下驅動房間邏輯。
// 回傳 false 表示傳輸已死，呼叫端應將該會話視為隱式斷線。
type Sender interface {
	Send(p Payload) bool
}

// Session 一個已連接參與者的服務器端紀錄
//
// 生命週期：
//   - 連接被接受時創建（ID 由服務器單調遞增分配，連接存活期間不變）
//   - 顯示名稱由 client_connect 握手提供
//   - 連接關閉時銷毀（從所在房間與註冊表移除）
//
// 併發規約：
//   - ID 與 conn 在創建後不再變動，可自由讀取
//   - Name 在握手完成前由 worker 寫入一次，之後只讀
//   - IsReady / TookTurn / Points 只在持有所屬房間鎖時讀寫，
//     會話本身不帶鎖（鎖的粒度屬於房間，見 GameRoom）
type Session struct {
	ID   int64
	Name string
	conn Sender

	IsReady  bool
	TookTurn bool
	Points   int
}

// NewSession 創建會話
func NewSession(id int64, conn Sender) *Session {
	return &Session{ID: id, conn: conn}
}

// Send 盡力而為的發送，失敗代表傳輸已死
func (s *Session) Send(p Payload) bool {
	return s.conn.Send(p)
}

// DisplayName 顯示名稱（含 ID 以避免重名混淆）
func (s *Session) DisplayName() string {
	return fmt.Sprintf("%s#%d", s.Name, s.ID)
}
