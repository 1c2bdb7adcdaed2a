package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"informer/internal/types"
)

// DecisionMessage renders a trade decision.
func DecisionMessage(rec types.RunRecord) StructuredMessage {
	d := rec.Decision
	targets := make([]string, 0, len(d.Targets))
	for _, t := range d.Targets {
		targets = append(targets, strconv.FormatFloat(t, 'f', 2, 64))
	}
	order := []string{
		fmt.Sprintf("symbol: %s", d.Symbol),
		fmt.Sprintf("shares: %d", d.Shares),
		fmt.Sprintf("entry: %.2f", d.Entry),
		fmt.Sprintf("stop: %.2f", d.Stop),
		fmt.Sprintf("targets: %s", strings.Join(targets, ", ")),
	}
	risk := []string{
		fmt.Sprintf("risk: $%.2f (max $%.2f)", d.RiskUSD, d.MaxRiskUSD),
		fmt.Sprintf("R multiple: %.2f", d.RMultiple),
		fmt.Sprintf("confidence: %.2f", d.Confidence),
	}
	if d.Prop != nil {
		risk = append(risk, fmt.Sprintf("profile: %s", d.Prop.Profile))
	}
	var audit []string
	for _, a := range d.Audit {
		audit = append(audit, fmt.Sprintf("%d. %s %s %v -> %v", a.Step, a.Rule, a.Field, a.Before, a.After))
	}
	return StructuredMessage{
		Icon:  "📈",
		Title: fmt.Sprintf("TRADE %s", d.Symbol),
		Sections: []MessageSection{
			{Title: "Order", Lines: order},
			{Title: "Risk", Lines: risk},
			{Title: "Adjustments", Lines: audit},
		},
		Footer:    fmt.Sprintf("run %s · trade date %s", rec.RunID, rec.TradeDateNY),
		Timestamp: rec.AsOf,
	}
}

// NotifyDecision sends rec only when it is a trade. It reports whether a
// message went out.
func NotifyDecision(ctx context.Context, n TextNotifier, rec types.RunRecord) (bool, error) {
	if n == nil || !rec.Decision.IsTrade() {
		return false, nil
	}
	if err := n.SendText(ctx, DecisionMessage(rec).RenderMarkdown()); err != nil {
		return false, err
	}
	return true, nil
}
