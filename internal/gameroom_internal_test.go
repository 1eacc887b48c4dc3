package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDetermineWinner 測試勝負判定的純函式
//
// 勝負只取決於出拳的多重集合：三種拳同現或全部相同為平手，
// 否則依循環規則（石頭勝剪刀、剪刀勝布、布勝石頭）取勝出拳。
func TestDetermineWinner(t *testing.T) {
	tests := []struct {
		name        string
		picks       map[int64]string
		wantWinning string
		wantWinners []int64
	}{
		{
			name:        "rock beats scissors",
			picks:       map[int64]string{1: PickRock, 2: PickScissors},
			wantWinning: PickRock,
			wantWinners: []int64{1},
		},
		{
			name:        "scissors beats paper",
			picks:       map[int64]string{1: PickScissors, 2: PickPaper},
			wantWinning: PickScissors,
			wantWinners: []int64{1},
		},
		{
			name:        "paper beats rock",
			picks:       map[int64]string{1: PickRock, 2: PickPaper},
			wantWinning: PickPaper,
			wantWinners: []int64{2},
		},
		{
			name:        "all same is a draw",
			picks:       map[int64]string{1: PickRock, 2: PickRock, 3: PickRock},
			wantWinning: "",
			wantWinners: nil,
		},
		{
			name:        "all three present is a draw",
			picks:       map[int64]string{1: PickRock, 2: PickPaper, 3: PickScissors},
			wantWinning: "",
			wantWinners: nil,
		},
		{
			name:        "multiple winners share the winning pick",
			picks:       map[int64]string{1: PickRock, 2: PickRock, 3: PickScissors, 4: PickScissors},
			wantWinning: PickRock,
			wantWinners: []int64{1, 2},
		},
		{
			name:        "majority does not matter",
			picks:       map[int64]string{1: PickScissors, 2: PickScissors, 3: PickScissors, 4: PickRock},
			wantWinning: PickRock,
			wantWinners: []int64{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winning, winners := determineWinner(tt.picks)

			assert.Equal(t, tt.wantWinning, winning)
			assert.Equal(t, tt.wantWinners, winners)
		})
	}
}

// TestFullPickName 測試選項全名對照
func TestFullPickName(t *testing.T) {
	assert.Equal(t, "石頭", fullPickName(PickRock))
	assert.Equal(t, "布", fullPickName(PickPaper))
	assert.Equal(t, "剪刀", fullPickName(PickScissors))
	assert.Equal(t, "z", fullPickName("z"))
}
