package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"informer/internal/types"
)

const (
	RuleDefaultTakeProfit = "default_take_profit_r"
	RuleProfitCap         = "profit_cap"
)

// Input is everything the validator may look at. Nothing else is read.
type Input struct {
	Symbol   string
	Proposal *types.Proposal
	// Action and Reason are propagated verbatim when Proposal is nil.
	Action      types.Action
	Reason      types.ReasonCode
	ReasonCodes []string
	// Profile nil means no prop gating.
	Profile    *Profile
	CashUSD    *float64
	MaxRiskUSD float64
}

// Validate sizes a winning proposal and applies the profile's gates. It is a
// pure function of in: the same input always yields an identical Decision.
func Validate(in Input) types.Decision {
	base := types.Decision{
		Symbol:      in.Symbol,
		Targets:     []float64{},
		Audit:       []types.AuditEntry{},
		ReasonCodes: append([]string(nil), in.ReasonCodes...),
		MaxRiskUSD:  in.MaxRiskUSD,
	}
	if in.Profile != nil {
		base.Prop = in.Profile.Summary()
	}

	// 1. nothing to size
	if in.Proposal == nil {
		action := in.Action
		if action == "" || action == types.ActionTrade {
			action = types.ActionNoTrade
		}
		base.Action = action
		base.Reason = in.Reason
		base.Symbol = ""
		return base
	}
	p := in.Proposal.Clone()
	base.Confidence = p.Confidence
	entry := decFromFloat(p.Entry)
	stop := decFromFloat(p.Stop)

	// 2. per-share risk
	risk := entry.Sub(stop)
	if !risk.IsPositive() || !entry.IsPositive() {
		return veto(base, types.ReasonInvalidStop)
	}

	// 3. risk budget
	budget := decFromFloat(in.MaxRiskUSD)
	if in.Profile != nil {
		if pb := in.Profile.riskBudget(); pb.LessThan(budget) {
			budget = pb
		}
	}
	base.MaxRiskUSD = decToFloat(budget)

	// 4. shares
	var cash *decimal.Decimal
	switch {
	case in.CashUSD != nil:
		c := decFromFloat(*in.CashUSD)
		cash = &c
	case in.Profile != nil:
		c := decFromFloat(in.Profile.AccountSizeUSD)
		cash = &c
	}
	if cash != nil {
		f := decToFloat(*cash)
		base.CashUSD = &f
	}
	riskShares := decZero
	if budget.IsPositive() {
		riskShares = budget.Div(risk).Floor()
	}
	shares := riskShares
	if cash != nil {
		cashShares := decZero
		if cash.IsPositive() {
			cashShares = cash.Div(entry).Floor()
		}
		if cashShares.LessThan(shares) {
			shares = cashShares
		}
		if shares.IsZero() && cashShares.LessThan(riskShares) {
			return veto(base, types.ReasonInsufficientCash)
		}
	}
	if shares.IsZero() {
		return veto(base, types.ReasonRiskTooTight)
	}

	targets := decsFromFloats(p.Targets)
	step := 0
	audit := func(rule, field string, before, after []decimal.Decimal, note string) {
		step++
		base.Audit = append(base.Audit, types.AuditEntry{
			Step:   step,
			Rule:   rule,
			Field:  field,
			Before: decsToFloats(before),
			After:  decsToFloats(after),
			Note:   note,
		})
	}

	if in.Profile != nil {
		// 5. fixed take-profit multiple
		if r := decFromFloat(in.Profile.DefaultTakeProfitR); r.IsPositive() {
			locked := []decimal.Decimal{entry.Add(r.Mul(risk))}
			audit(RuleDefaultTakeProfit, "targets", targets, locked,
				fmt.Sprintf("primary target locked to %sR", r.String()))
			targets = locked
		}

		// 6. minimum profit per share
		minProfit := decFromFloat(in.Profile.MinProfitPerShareUSD)
		if allBelow(targets, entry, minProfit) {
			return veto(base, types.ReasonMinProfitPerShare)
		}

		// 7. profit cap on the furthest target
		capUSD := in.Profile.profitCap()
		if capUSD.IsPositive() {
			var ok bool
			targets, ok = applyProfitCap(targets, entry, shares, capUSD, minProfit, audit)
			if !ok {
				return veto(base, types.ReasonProfitCapUnreachable)
			}
		}
	}
	if len(targets) == 0 {
		return veto(base, types.ReasonInvalidTargets)
	}

	// 8. trade
	base.Action = types.ActionTrade
	base.Reason = types.ReasonApproved
	base.Shares = shares.IntPart()
	base.Entry = decToFloat(entry)
	base.Stop = decToFloat(stop)
	base.Targets = decsToFloats(targets)
	base.RiskUSD = decToFloat(shares.Mul(risk))
	base.RMultiple = decToFloat(targets[0].Sub(entry).Div(risk).Round(4))
	return base
}

// applyProfitCap lowers the furthest target until its total profit fits the
// cap, dropping it when the capped price would not clear the previous level
// or the per-share minimum. Reports false when no target survives.
func applyProfitCap(targets []decimal.Decimal, entry, shares, capUSD, minProfit decimal.Decimal,
	audit func(rule, field string, before, after []decimal.Decimal, note string)) ([]decimal.Decimal, bool) {
	for len(targets) > 0 {
		last := len(targets) - 1
		furthest := targets[last]
		profit := furthest.Sub(entry).Mul(shares)
		if profit.LessThanOrEqual(capUSD) {
			return targets, true
		}
		floor := entry
		if last > 0 {
			floor = targets[last-1]
		}
		capped := entry.Add(capUSD.Div(shares)).RoundFloor(2)
		if capped.GreaterThan(floor) && capped.Sub(entry).GreaterThanOrEqual(minProfit) {
			out := append(append([]decimal.Decimal(nil), targets[:last]...), capped)
			audit(RuleProfitCap, fmt.Sprintf("targets[%d]", last),
				[]decimal.Decimal{furthest}, []decimal.Decimal{capped},
				fmt.Sprintf("profit %s > cap %s", profit.StringFixed(2), capUSD.StringFixed(2)))
			return out, true
		}
		audit(RuleProfitCap, fmt.Sprintf("targets[%d]", last),
			[]decimal.Decimal{furthest}, []decimal.Decimal{},
			fmt.Sprintf("dropped: capped price %s does not clear %s", capped.StringFixed(2), floor.String()))
		targets = targets[:last]
	}
	return nil, false
}

func allBelow(targets []decimal.Decimal, entry, minProfit decimal.Decimal) bool {
	for _, t := range targets {
		if t.Sub(entry).GreaterThanOrEqual(minProfit) {
			return false
		}
	}
	return true
}

// withAudit normalises a nil audit slice so vetoes always serialise "[]".
func withAudit(d types.Decision) types.Decision {
	if d.Audit == nil {
		d.Audit = []types.AuditEntry{}
	}
	return d
}

// LockedOut replaces a trade with NO_TRADE / ONE_TRADE_PER_DAY_LOCKED. The
// symbol and audit trail are kept so the blocked trade stays inspectable.
func LockedOut(d types.Decision) types.Decision {
	if !d.IsTrade() {
		return d
	}
	return veto(d, types.ReasonOneTradePerDay)
}

func veto(d types.Decision, reason types.ReasonCode) types.Decision {
	d.Action = types.ActionNoTrade
	d.Reason = reason
	d.Shares = 0
	d.Entry = 0
	d.Stop = 0
	d.Targets = []float64{}
	d.RiskUSD = 0
	d.RMultiple = 0
	return withAudit(d)
}
