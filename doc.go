// Package gameserver 提供了一個多房間、回合制的多人遊戲伺服器。
//
// 實現了一個以「剪刀、石頭、布」為核心玩法的即時遊戲服務器，
// 客戶端透過持久連接進入大廳，可以創建或加入命名房間，
// 並在房間內參與由準備計時器把關的回合制對局。
//
// 會話與房間生命週期
//
// 這是本系統最核心的工程問題：
//   - 連接接受迴圈為每個連接分配遞增的唯一 ID
//   - 每個連接由獨立的 worker goroutine 驅動（阻塞式接收迴圈）
//   - 房間註冊表維護名稱到房間的映射（大廳永遠存在）
//   - 客戶端可能在任何時刻斷線，必須安全地從房間成員中移除
//
// 遊戲狀態機
//
// 遊戲房間執行嚴格排序的階段轉換：
//
//	READY → STARTED → ROUND → TURN → (回到 ROUND 或結束回 READY)
//
// 核心規則：
//   - 準備階段由 30 秒倒數計時器把關（至少 2 人準備才開局）
//   - TURN 階段收集所有成員的出拳（r/p/s）
//   - 全員出拳後立即結算：石頭勝剪刀、剪刀勝布、布勝石頭
//   - 三種拳同時出現或全部相同為平手
//   - 結算後自動開始下一回合，勝者累積積分
//
// 併發安全設計
//
// 採用了多層次的併發控制策略：
//   - 每個房間一把互斥鎖，保護成員表、出拳表與階段欄位
//   - 整個階段轉換（含廣播）在鎖內完成，保證訊息順序
//   - 廣播時對發送失敗的成員採用安全移除模式（先收集後替換）
//   - 準備計時器的回調在鎖內檢查自己是否仍是現任計時器
//
// 使用範例
//
// 啟動服務器：
//
//	registry := internal.NewRegistry(internal.DefaultConfig(), logger)
//	hub := internal.NewHub(registry, logger)
//	handler := internal.NewHandler(registry, hub, logger)
//
//	mux := http.NewServeMux()
//	mux.Handle("/", handler.Routes())
//	mux.HandleFunc("GET /ws", hub.ServeWS)
//	log.Fatal(http.ListenAndServe(":3000", mux))
//
// 客戶端連接後必須先發送 client_connect 宣告顯示名稱，
// 之後才能發送聊天、房間與遊戲相關的訊息。
//
// 配置選項
//
// 支援多種運行時配置（flag 優先於 .env）：
//   - -port：服務監聽端口（預設 3000）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
//   - -ready-timer：準備倒數秒數（預設 30）
package gameserver
