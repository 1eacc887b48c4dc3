package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/koopa0/system-design/14-game-server/internal"
)

func main() {
	// .env 提供預設值，命令行參數優先
	_ = godotenv.Load()

	var (
		port      = flag.Int("port", envInt("PORT", 3000), "服務器端口")
		logLevel  = flag.String("log-level", envStr("LOG_LEVEL", "info"), "日誌級別 (debug, info, warn, error)")
		logFormat = flag.String("log-format", envStr("LOG_FORMAT", "text"), "日誌格式 (text, json)")
		readySecs = flag.Int("ready-timer", envInt("READY_TIMER", 30), "準備倒數秒數")
	)
	flag.Parse()

	logger := setupLogger(*logLevel, *logFormat)

	cfg := internal.DefaultConfig()
	cfg.ReadyTimerDuration = time.Duration(*readySecs) * time.Second

	// 明確構造並傳遞，不使用行程級單例
	registry := internal.NewRegistry(cfg, logger)
	hub := internal.NewHub(registry, logger)
	handler := internal.NewHandler(registry, hub, logger)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("GET /ws", hub.ServeWS)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", *port),
		Handler:     mux,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("遊戲服務器啟動",
			"port", *port,
			"ready_timer", cfg.ReadyTimerDuration,
			"log_level", *logLevel)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		// 綁定失敗是唯一的致命條件
		logger.Error("服務器啟動失敗", "error", err)
		os.Exit(1)
	case <-sigChan:
	}

	logger.Info("收到關閉信號，開始優雅關閉...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	hub.Stop()

	logger.Info("服務器已關閉")
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug", // debug 模式顯示源碼位置
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// envStr 讀取環境變數字串（未設置時用預設值）
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt 讀取環境變數整數（未設置或無效時用預設值）
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
