package types

import (
	"fmt"
	"math"
)

// Action is the terminal outcome of one decision run.
type Action string

const (
	ActionTrade    Action = "TRADE"
	ActionNoTrade  Action = "NO_TRADE"
	ActionNotReady Action = "NOT_READY"
)

// ReasonCode explains why a run ended the way it did.
type ReasonCode string

const (
	ReasonApproved             ReasonCode = "APPROVED"
	ReasonNoCandidates         ReasonCode = "NO_CANDIDATES"
	ReasonCriticUnavailable    ReasonCode = "CRITIC_UNAVAILABLE"
	ReasonArbiterUnavailable   ReasonCode = "ARBITER_UNAVAILABLE"
	ReasonNoTradeSelected      ReasonCode = "NO_TRADE_SELECTED"
	ReasonInvalidStop          ReasonCode = "INVALID_STOP"
	ReasonInvalidTargets       ReasonCode = "INVALID_TARGETS"
	ReasonRiskTooTight         ReasonCode = "RISK_TOO_TIGHT"
	ReasonInsufficientCash     ReasonCode = "INSUFFICIENT_CASH"
	ReasonMinProfitPerShare    ReasonCode = "MIN_PROFIT_PER_SHARE"
	ReasonProfitCapUnreachable ReasonCode = "PROFIT_CAP_UNREACHABLE"
	ReasonOneTradePerDay       ReasonCode = "ONE_TRADE_PER_DAY_LOCKED"
	ReasonInvalidResponse      ReasonCode = "INVALID_RESPONSE"
)

// Proposal is the analyst's long-only trade plan for one candidate.
type Proposal struct {
	Entry      float64   `json:"entry"`
	Stop       float64   `json:"stop"`
	Targets    []float64 `json:"targets"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale,omitempty"`
}

// Validate enforces stop < entry < targets[0] < targets[1] < ...
func (p Proposal) Validate() error {
	for _, v := range append([]float64{p.Entry, p.Stop, p.Confidence}, p.Targets...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("proposal contains non-finite value")
		}
	}
	if p.Entry <= 0 {
		return fmt.Errorf("entry must be > 0, got %v", p.Entry)
	}
	if p.Stop >= p.Entry {
		return fmt.Errorf("stop %v must be below entry %v", p.Stop, p.Entry)
	}
	if len(p.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	prev := p.Entry
	for i, t := range p.Targets {
		if t <= prev {
			return fmt.Errorf("target#%d %v must be above %v", i+1, t, prev)
		}
		prev = t
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %v", p.Confidence)
	}
	return nil
}

// Clone returns a deep copy so callers can never alias the targets slice.
func (p Proposal) Clone() Proposal {
	out := p
	out.Targets = append([]float64(nil), p.Targets...)
	return out
}

// AuditEntry records one adjustment the validator made, before and after.
type AuditEntry struct {
	Step   int       `json:"step"`
	Rule   string    `json:"rule"`
	Field  string    `json:"field"`
	Before []float64 `json:"before"`
	After  []float64 `json:"after"`
	Note   string    `json:"note,omitempty"`
}

// PropSummary is the resolved risk profile echoed into a decision.
type PropSummary struct {
	Profile                 string  `json:"profile"`
	AccountSizeUSD          float64 `json:"account_size_usd"`
	RiskBudgetUSD           float64 `json:"risk_budget_usd"`
	ProfitCapUSD            float64 `json:"profit_cap_usd"`
	MinProfitPerShareUSD    float64 `json:"min_profit_per_share_usd"`
	DefaultTakeProfitR      float64 `json:"default_take_profit_r,omitempty"`
	MinTradeDurationSeconds int64   `json:"min_trade_duration_seconds"`
}

// Decision is the terminal, immutable output of the risk validator.
type Decision struct {
	Action      Action       `json:"action"`
	Reason      ReasonCode   `json:"reason"`
	Symbol      string       `json:"symbol,omitempty"`
	Shares      int64        `json:"shares"`
	Entry       float64      `json:"entry,omitempty"`
	Stop        float64      `json:"stop,omitempty"`
	Targets     []float64    `json:"targets"`
	RiskUSD     float64      `json:"risk_usd,omitempty"`
	RMultiple   float64      `json:"r_multiple,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
	MaxRiskUSD  float64      `json:"max_risk_usd"`
	CashUSD     *float64     `json:"cash_usd,omitempty"`
	ReasonCodes []string     `json:"reason_codes,omitempty"`
	Audit       []AuditEntry `json:"audit"`
	Prop        *PropSummary `json:"prop,omitempty"`
}

func (d Decision) IsTrade() bool { return d.Action == ActionTrade }
