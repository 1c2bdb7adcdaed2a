package decision

import (
	"strings"

	"informer/internal/types"
)

const (
	VerdictPass    = "PASS"
	VerdictReject  = "REJECT"
	VerdictApprove = "APPROVE"

	ActionProposeTrade = "PROPOSE_TRADE"
	ActionArbiterTrade = "TRADE"
	ActionArbiterNone  = "NO_TRADE"
)

type ScreenerVerdict struct {
	Verdict     string   `json:"verdict"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

type AnalystPlan struct {
	Action      string    `json:"action"`
	Entry       *float64  `json:"entry,omitempty"`
	Stop        *float64  `json:"stop,omitempty"`
	Targets     []float64 `json:"targets,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	ReasonCodes []string  `json:"reason_codes,omitempty"`
	Rationale   string    `json:"rationale,omitempty"`
}

// Proposal converts a PROPOSE_TRADE plan; ok is false for anything else.
func (p AnalystPlan) Proposal() (types.Proposal, bool) {
	if p.Action != ActionProposeTrade || p.Entry == nil || p.Stop == nil || p.Confidence == nil {
		return types.Proposal{}, false
	}
	return types.Proposal{
		Entry:      *p.Entry,
		Stop:       *p.Stop,
		Targets:    append([]float64(nil), p.Targets...),
		Confidence: *p.Confidence,
		Rationale:  strings.TrimSpace(p.Rationale),
	}, true
}

type CriticReview struct {
	Verdict              string   `json:"verdict"`
	ConfidenceAdjustment float64  `json:"confidence_adjustment"`
	Issues               []string `json:"issues,omitempty"`
	ReasonCodes          []string `json:"reason_codes,omitempty"`
	Notes                string   `json:"notes,omitempty"`
}

type ArbiterChoice struct {
	Action      string   `json:"action"`
	Endorse     []string `json:"endorse,omitempty"`
	Symbol      string   `json:"symbol,omitempty"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// Endorsed returns the upper-cased symbols the arbiter is willing to trade.
func (a ArbiterChoice) Endorsed() map[string]bool {
	out := make(map[string]bool, len(a.Endorse)+1)
	if a.Action != ActionArbiterTrade {
		return out
	}
	for _, s := range a.Endorse {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out[s] = true
		}
	}
	if s := strings.ToUpper(strings.TrimSpace(a.Symbol)); s != "" {
		out[s] = true
	}
	return out
}

// refusalReason names the rejection carried by a valid payload, or "" when the
// payload is affirmative.
func refusalReason(payload any) string {
	pick := func(codes []string, fallback string) string {
		for _, c := range codes {
			if c = strings.TrimSpace(c); c != "" {
				return strings.ToUpper(c)
			}
		}
		return fallback
	}
	switch p := payload.(type) {
	case *ScreenerVerdict:
		if p.Verdict == VerdictReject {
			return pick(p.ReasonCodes, "SCREENER_REJECT")
		}
	case *AnalystPlan:
		if p.Action != ActionProposeTrade {
			return pick(p.ReasonCodes, "ANALYST_REJECT")
		}
	case *CriticReview:
		if p.Verdict == VerdictReject {
			return pick(append(append([]string(nil), p.ReasonCodes...), p.Issues...), "CRITIC_REJECT")
		}
	}
	return ""
}
