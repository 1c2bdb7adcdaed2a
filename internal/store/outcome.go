package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"informer/internal/store/model"
	"informer/internal/types"
)

// Outcome labels written by GradeOutcome.
const (
	OutcomeWin  = "WIN"
	OutcomeLoss = "LOSS"
	OutcomeFlat = "FLAT"
)

var ErrNotTrade = errors.New("forward test run is not a TRADE")

// OutcomeInput is what the operator reports after trading a decision by hand.
// Entry defaults to the planned entry.
type OutcomeInput struct {
	Exit            float64
	Entry           *float64
	DurationSeconds *int64
	Notes           string
}

// GradeOutcome fills the outcome columns of row. Realized R is measured
// against the planned stop. The returned warnings do not block the write.
func GradeOutcome(row *model.ForwardTestModel, in OutcomeInput, now time.Time) ([]string, error) {
	if row == nil {
		return nil, errors.New("forward test row cannot be nil")
	}
	if row.Action != string(types.ActionTrade) {
		return nil, fmt.Errorf("%w: run %s is %s", ErrNotTrade, row.RunID, row.Action)
	}
	if in.Exit <= 0 {
		return nil, fmt.Errorf("exit price must be positive, got %v", in.Exit)
	}
	entry := row.Entry
	if in.Entry != nil {
		entry = *in.Entry
	}
	if entry <= 0 {
		return nil, fmt.Errorf("run %s has no entry price; pass one explicitly", row.RunID)
	}
	if in.DurationSeconds != nil && *in.DurationSeconds < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}

	fill := decimal.NewFromFloat(entry)
	exit := decimal.NewFromFloat(in.Exit)
	move := exit.Sub(fill)
	switch move.Sign() {
	case 1:
		row.Outcome = OutcomeWin
	case -1:
		row.Outcome = OutcomeLoss
	default:
		row.Outcome = OutcomeFlat
	}
	row.RealizedR = nil
	if risk := fill.Sub(decimal.NewFromFloat(row.Stop)); row.Stop > 0 && risk.IsPositive() {
		r, _ := move.DivRound(risk, 4).Float64()
		row.RealizedR = &r
	}
	fillF, _ := fill.Float64()
	exitF := in.Exit
	row.FillEntry = &fillF
	row.ExitPrice = &exitF
	row.DurationSeconds = in.DurationSeconds
	row.Notes = in.Notes
	row.OutcomeAt = now.Unix()

	var warnings []string
	if row.Outcome == OutcomeWin && in.DurationSeconds == nil {
		warnings = append(warnings, "profitable outcome logged without a duration; min hold cannot be checked")
	}
	return warnings, nil
}

// ForwardTestReport aggregates forward-test rows over a date range.
type ForwardTestReport struct {
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	TotalRuns int            `json:"total_runs"`
	ByAction  map[string]int `json:"by_action"`
	BySymbol  map[string]int `json:"by_symbol"`
	Graded    int            `json:"graded"`
	Wins      int            `json:"wins"`
	Losses    int            `json:"losses"`
	Flats     int            `json:"flats"`
	TotalR    float64        `json:"total_r"`
	AvgR      *float64       `json:"avg_r,omitempty"`
	Ungraded  []string       `json:"ungraded_trades,omitempty"`
}

// Summarize builds the report for rows. Only TRADE rows count toward the
// symbol and outcome tallies.
func Summarize(q ForwardTestQuery, rows []model.ForwardTestModel) ForwardTestReport {
	rep := ForwardTestReport{
		From:      q.From,
		To:        q.To,
		TotalRuns: len(rows),
		ByAction:  map[string]int{},
		BySymbol:  map[string]int{},
	}
	total := decimal.Zero
	withR := 0
	for _, row := range rows {
		rep.ByAction[row.Action]++
		if row.Action != string(types.ActionTrade) {
			continue
		}
		rep.BySymbol[row.Symbol]++
		switch row.Outcome {
		case OutcomeWin:
			rep.Wins++
		case OutcomeLoss:
			rep.Losses++
		case OutcomeFlat:
			rep.Flats++
		default:
			rep.Ungraded = append(rep.Ungraded, row.RunID)
			continue
		}
		rep.Graded++
		if row.RealizedR != nil {
			total = total.Add(decimal.NewFromFloat(*row.RealizedR))
			withR++
		}
	}
	rep.TotalR, _ = total.Round(4).Float64()
	if withR > 0 {
		avg, _ := total.DivRound(decimal.NewFromInt(int64(withR)), 4).Float64()
		rep.AvgR = &avg
	}
	sort.Strings(rep.Ungraded)
	return rep
}
