package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"informer/internal/store/model"
	"informer/internal/types"
)

func tradeRow(runID, symbol string) *model.ForwardTestModel {
	return &model.ForwardTestModel{
		RunID:       runID,
		TradeDateNY: "2025-03-14",
		Action:      string(types.ActionTrade),
		Symbol:      symbol,
		Entry:       100,
		Stop:        98,
		Shares:      25,
	}
}

func TestGradeOutcome(t *testing.T) {
	now := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	fill := 99.5
	dur := int64(45)
	cases := []struct {
		name     string
		in       OutcomeInput
		outcome  string
		r        float64
		fill     float64
		warnings int
	}{
		{"planned entry win warns without duration", OutcomeInput{Exit: 103}, OutcomeWin, 1.5, 100, 1},
		{"win with duration", OutcomeInput{Exit: 103, DurationSeconds: &dur}, OutcomeWin, 1.5, 100, 0},
		{"stopped out", OutcomeInput{Exit: 98}, OutcomeLoss, -1, 100, 0},
		{"explicit fill", OutcomeInput{Exit: 99.5, Entry: &fill}, OutcomeFlat, 0, 99.5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := tradeRow("run-1", "AAPL")
			warnings, err := GradeOutcome(row, tc.in, now)
			require.NoError(t, err)
			assert.Len(t, warnings, tc.warnings)
			assert.Equal(t, tc.outcome, row.Outcome)
			require.NotNil(t, row.RealizedR)
			assert.Equal(t, tc.r, *row.RealizedR)
			require.NotNil(t, row.FillEntry)
			assert.Equal(t, tc.fill, *row.FillEntry)
			assert.Equal(t, now.Unix(), row.OutcomeAt)
		})
	}
}

func TestGradeOutcomeRejects(t *testing.T) {
	now := time.Now()
	row := tradeRow("run-1", "AAPL")
	row.Action = string(types.ActionNoTrade)
	_, err := GradeOutcome(row, OutcomeInput{Exit: 101}, now)
	assert.ErrorIs(t, err, ErrNotTrade)

	_, err = GradeOutcome(tradeRow("run-1", "AAPL"), OutcomeInput{Exit: 0}, now)
	assert.Error(t, err)

	noEntry := tradeRow("run-1", "AAPL")
	noEntry.Entry = 0
	_, err = GradeOutcome(noEntry, OutcomeInput{Exit: 101}, now)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	win := tradeRow("run-1", "AAPL")
	_, err := GradeOutcome(win, OutcomeInput{Exit: 103}, now)
	require.NoError(t, err)
	loss := tradeRow("run-2", "MSFT")
	_, err = GradeOutcome(loss, OutcomeInput{Exit: 98}, now)
	require.NoError(t, err)
	open := tradeRow("run-3", "AAPL")
	skipped := &model.ForwardTestModel{RunID: "run-4", Action: string(types.ActionNoTrade)}

	rep := Summarize(ForwardTestQuery{From: "2025-03-01"}, []model.ForwardTestModel{*win, *loss, *open, *skipped})
	assert.Equal(t, 4, rep.TotalRuns)
	assert.Equal(t, map[string]int{"TRADE": 3, "NO_TRADE": 1}, rep.ByAction)
	assert.Equal(t, map[string]int{"AAPL": 2, "MSFT": 1}, rep.BySymbol)
	assert.Equal(t, 2, rep.Graded)
	assert.Equal(t, 1, rep.Wins)
	assert.Equal(t, 1, rep.Losses)
	assert.Equal(t, 0.5, rep.TotalR)
	require.NotNil(t, rep.AvgR)
	assert.Equal(t, 0.25, *rep.AvgR)
	assert.Equal(t, []string{"run-3"}, rep.Ungraded)
}
