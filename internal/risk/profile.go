package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"informer/internal/types"
)

// Profile captures the rules of one prop-firm evaluation account.
// Percentages are expressed in percent (0.20 means 0.20%).
type Profile struct {
	Name                    string  `yaml:"name" json:"name"`
	AccountSizeUSD          float64 `yaml:"account_size_usd" json:"account_size_usd"`
	PerTradeRiskPct         float64 `yaml:"per_trade_risk_pct" json:"per_trade_risk_pct"`
	MinProfitPerShareUSD    float64 `yaml:"min_profit_per_share_usd" json:"min_profit_per_share_usd"`
	ProfitCapPct            float64 `yaml:"profit_cap_pct" json:"profit_cap_pct"`
	DefaultTakeProfitR      float64 `yaml:"default_take_profit_r" json:"default_take_profit_r,omitempty"`
	MinTradeDurationSeconds int64   `yaml:"min_trade_duration_seconds" json:"min_trade_duration_seconds"`

	// Informational evaluation rules; not enforced by the validator.
	ProfitTargetPct        float64 `yaml:"profit_target_pct" json:"profit_target_pct,omitempty"`
	DailyPausePct          float64 `yaml:"daily_pause_pct" json:"daily_pause_pct,omitempty"`
	MaxLossPct             float64 `yaml:"max_loss_pct" json:"max_loss_pct,omitempty"`
	PayoutSplitTraderPct   float64 `yaml:"payout_split_trader_pct" json:"payout_split_trader_pct,omitempty"`
	MaxPositionProfitRatio float64 `yaml:"max_position_profit_ratio" json:"max_position_profit_ratio,omitempty"`
}

const TradeThePool25kBeginner = "trade_the_pool_25k_beginner"

var builtinProfiles = map[string]Profile{
	TradeThePool25kBeginner: {
		Name:                    TradeThePool25kBeginner,
		AccountSizeUSD:          25000,
		PerTradeRiskPct:         0.20,
		MinProfitPerShareUSD:    0.10,
		ProfitCapPct:            1.5,
		DefaultTakeProfitR:      1.5,
		MinTradeDurationSeconds: 30,
		ProfitTargetPct:         6.0,
		DailyPausePct:           2.0,
		MaxLossPct:              4.0,
		PayoutSplitTraderPct:    70.0,
		MaxPositionProfitRatio:  0.30,
	},
}

// Builtin returns a copy of the compiled-in profile table.
func Builtin() map[string]Profile {
	out := make(map[string]Profile, len(builtinProfiles))
	for k, v := range builtinProfiles {
		out[k] = v
	}
	return out
}

func pctOf(pct, base float64) decimal.Decimal {
	return decFromFloat(pct).Div(decHundred).Mul(decFromFloat(base))
}

func (p Profile) riskBudget() decimal.Decimal { return pctOf(p.PerTradeRiskPct, p.AccountSizeUSD) }
func (p Profile) profitCap() decimal.Decimal  { return pctOf(p.ProfitCapPct, p.AccountSizeUSD) }

// RiskBudgetUSD is the per-trade risk allowance in dollars.
func (p Profile) RiskBudgetUSD() float64 { return decToFloat(p.riskBudget()) }

// ProfitCapUSD is the most a single trade may book at its furthest target.
func (p Profile) ProfitCapUSD() float64 { return decToFloat(p.profitCap()) }

func (p Profile) Validate() error {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		return fmt.Errorf("profile name is required")
	case p.AccountSizeUSD <= 0:
		return fmt.Errorf("profile %s: account_size_usd must be > 0", name)
	case p.PerTradeRiskPct <= 0 || p.PerTradeRiskPct > 100:
		return fmt.Errorf("profile %s: per_trade_risk_pct must be in (0,100]", name)
	case p.MinProfitPerShareUSD < 0:
		return fmt.Errorf("profile %s: min_profit_per_share_usd must be >= 0", name)
	case p.ProfitCapPct < 0 || p.ProfitCapPct > 100:
		return fmt.Errorf("profile %s: profit_cap_pct must be in [0,100]", name)
	case p.DefaultTakeProfitR < 0:
		return fmt.Errorf("profile %s: default_take_profit_r must be >= 0", name)
	case p.MinTradeDurationSeconds < 0:
		return fmt.Errorf("profile %s: min_trade_duration_seconds must be >= 0", name)
	}
	return nil
}

// Summary is the block echoed into a decision while this profile is active.
func (p Profile) Summary() *types.PropSummary {
	return &types.PropSummary{
		Profile:                 p.Name,
		AccountSizeUSD:          p.AccountSizeUSD,
		RiskBudgetUSD:           p.RiskBudgetUSD(),
		ProfitCapUSD:            p.ProfitCapUSD(),
		MinProfitPerShareUSD:    p.MinProfitPerShareUSD,
		DefaultTakeProfitR:      p.DefaultTakeProfitR,
		MinTradeDurationSeconds: p.MinTradeDurationSeconds,
	}
}
