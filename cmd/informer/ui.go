package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"informer/internal/app"
	"informer/internal/store/model"
	"informer/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(12)

	tradeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	noTradeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func actionStyle(a types.Action) lipgloss.Style {
	switch a {
	case types.ActionTrade:
		return tradeStyle
	case types.ActionNotReady:
		return errorStyle
	default:
		return noTradeStyle
	}
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func renderDecision(res app.DecideResult) string {
	rec := res.Record
	d := rec.Decision
	lines := []string{
		row("action", actionStyle(d.Action).Render(string(d.Action))),
		row("reason", string(d.Reason)),
	}
	if d.Symbol != "" {
		lines = append(lines, row("symbol", d.Symbol))
	}
	if d.IsTrade() {
		lines = append(lines,
			row("shares", fmt.Sprintf("%d", d.Shares)),
			row("entry", fmt.Sprintf("%.2f", d.Entry)),
			row("stop", fmt.Sprintf("%.2f", d.Stop)),
			row("targets", formatPrices(d.Targets)),
			row("risk", fmt.Sprintf("$%.2f (%.2fR)", d.RiskUSD, d.RMultiple)),
		)
	}
	if d.Prop != nil {
		lines = append(lines, row("profile", d.Prop.Profile))
	}
	if len(d.Audit) > 0 {
		rules := make([]string, 0, len(d.Audit))
		for _, a := range d.Audit {
			rules = append(rules, a.Rule)
		}
		lines = append(lines, row("audit", strings.Join(rules, ", ")))
	}
	lines = append(lines, "", dimStyle.Render(renderTrace(rec.Trace)))
	lines = append(lines, "", dimStyle.Render(fmt.Sprintf("run %s · %s · %s", rec.RunID, rec.TradeDateNY, res.ArtifactPath)))

	title := titleStyle.Render("Decision")
	return lipgloss.JoinVertical(lipgloss.Left, title, boxStyle.Render(strings.Join(lines, "\n")))
}

func renderTrace(trace []types.StageTrace) string {
	var b strings.Builder
	for i, t := range trace {
		if i > 0 {
			b.WriteByte('\n')
		}
		subject := t.Symbol
		if subject == "" {
			subject = "-"
		}
		fmt.Fprintf(&b, "%-8s %-6s %-7s %-11s %s", t.Stage, subject, t.Provider, t.Outcome, t.Reason)
	}
	return b.String()
}

func renderRuns(rows []model.RunModel) string {
	if len(rows) == 0 {
		return dimStyle.Render("no runs")
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, dimStyle.Render(fmt.Sprintf("%-36s  %-20s  %-9s  %-28s  %-6s  %s", "RUN", "AS OF (UTC)", "ACTION", "REASON", "SYMBOL", "SHARES")))
	for _, r := range rows {
		action := fmt.Sprintf("%-9s", r.Action)
		lines = append(lines, fmt.Sprintf("%-36s  %-20s  %s  %-28s  %-6s  %d",
			r.RunID,
			time.Unix(r.AsOfUnix, 0).UTC().Format("2006-01-02 15:04:05"),
			actionStyle(types.Action(r.Action)).Render(action),
			r.Reason, r.Symbol, r.Shares))
	}
	return strings.Join(lines, "\n")
}

func renderForwardTests(rows []model.ForwardTestModel) string {
	if len(rows) == 0 {
		return dimStyle.Render("no forward-test rows")
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, dimStyle.Render(fmt.Sprintf("%-10s  %-36s  %-9s  %-6s  %-8s  %-8s  %-7s  %s", "DATE", "RUN", "ACTION", "SYMBOL", "ENTRY", "EXIT", "OUTCOME", "R")))
	for _, r := range rows {
		action := fmt.Sprintf("%-9s", r.Action)
		symbol := r.Symbol
		if symbol == "" {
			symbol = "-"
		}
		entry := "-"
		if r.Entry > 0 {
			entry = fmt.Sprintf("%.2f", r.Entry)
		}
		if r.FillEntry != nil {
			entry = fmt.Sprintf("%.2f", *r.FillEntry)
		}
		exit, rr := "-", "-"
		if r.ExitPrice != nil {
			exit = fmt.Sprintf("%.2f", *r.ExitPrice)
		}
		if r.RealizedR != nil {
			rr = fmt.Sprintf("%+.2f", *r.RealizedR)
		}
		outcome := r.Outcome
		if outcome == "" {
			outcome = "-"
		}
		lines = append(lines, fmt.Sprintf("%-10s  %-36s  %s  %-6s  %-8s  %-8s  %-7s  %s",
			r.TradeDateNY, r.RunID, actionStyle(types.Action(r.Action)).Render(action), symbol, entry, exit, outcome, rr))
	}
	return strings.Join(lines, "\n")
}

func renderSummary(s *app.StartupSummary) string {
	rows := s.Rows()
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, row(r[0], r[1]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Configuration OK"), boxStyle.Render(strings.Join(lines, "\n")))
}

func formatPrices(ps []float64) string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, fmt.Sprintf("%.2f", p))
	}
	return strings.Join(out, ", ")
}
