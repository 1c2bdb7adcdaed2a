package types

import (
	"time"
	_ "time/tzdata"
)

var newYork = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// TradeDateNY is the exchange calendar date of t (YYYY-MM-DD, America/New_York).
func TradeDateNY(t time.Time) string {
	return t.In(newYork).Format("2006-01-02")
}

// StageOutcome mirrors the three stage result variants for persistence.
type StageOutcome string

const (
	OutcomeAccepted    StageOutcome = "ACCEPTED"
	OutcomeRejected    StageOutcome = "REJECTED"
	OutcomeUnavailable StageOutcome = "UNAVAILABLE"
)

// StageTrace records one stage invocation. Timing is deliberately absent so a
// replayed run serialises identically.
type StageTrace struct {
	Stage    string       `json:"stage"`
	Symbol   string       `json:"symbol,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Outcome  StageOutcome `json:"outcome"`
	Reason   string       `json:"reason,omitempty"`
}

// RunRecord is the artifact written once per run id.
type RunRecord struct {
	RunID       string       `json:"run_id"`
	AsOf        time.Time    `json:"as_of"`
	TradeDateNY string       `json:"trade_date_ny"`
	Profile     string       `json:"profile,omitempty"`
	Symbols     []string     `json:"symbols"`
	Decision    Decision     `json:"decision"`
	Trace       []StageTrace `json:"trace"`
}
