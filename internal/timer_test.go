package internal_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-game-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadyTimer_Expire 測試到期觸發
func TestReadyTimer_Expire(t *testing.T) {
	var fired atomic.Int32

	internal.NewReadyTimer(30*time.Millisecond, nil, func() {
		fired.Add(1)
	})

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond, "計時器應該到期觸發")

	// 單次觸發：之後不會再觸發
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

// TestReadyTimer_Cancel 測試取消
func TestReadyTimer_Cancel(t *testing.T) {
	t.Run("cancel prevents expiry", func(t *testing.T) {
		var fired atomic.Int32

		timer := internal.NewReadyTimer(50*time.Millisecond, nil, func() {
			fired.Add(1)
		})
		timer.Cancel()

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load(), "取消後回調不應觸發")
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		timer := internal.NewReadyTimer(50*time.Millisecond, nil, func() {})

		// 重複取消不應 panic
		timer.Cancel()
		timer.Cancel()
		timer.Cancel()
	})

	t.Run("cancel after expiry is a no-op", func(t *testing.T) {
		var fired atomic.Int32

		timer := internal.NewReadyTimer(10*time.Millisecond, nil, func() {
			fired.Add(1)
		})

		require.Eventually(t, func() bool {
			return fired.Load() == 1
		}, time.Second, 5*time.Millisecond)

		timer.Cancel()
		assert.Equal(t, int32(1), fired.Load())
	})
}

// TestReadyTimer_Tick 測試進度通知
func TestReadyTimer_Tick(t *testing.T) {
	var (
		ticks atomic.Int32
		fired atomic.Int32
	)

	timer := internal.NewReadyTimer(3*time.Second,
		func(remaining int) {
			ticks.Add(1)
		},
		func() {
			fired.Add(1)
		})
	defer timer.Cancel()

	// 至少觀察到一次每秒進度通知
	require.Eventually(t, func() bool {
		return ticks.Load() >= 1
	}, 2*time.Second, 50*time.Millisecond, "應該收到進度通知")

	assert.Equal(t, int32(0), fired.Load(), "倒數未結束不應觸發")
}
