package decision

import (
	"informer/internal/packet"
	"informer/internal/types"
)

// Candidate is one instrument moving through a single run. Only the
// goroutine handling the current stage for this candidate touches it.
type Candidate struct {
	Index   int
	Symbol  string
	Packet  *packet.Packet
	Summary packet.Summary

	Screener *ScreenerVerdict
	Plan     *AnalystPlan
	Proposal *types.Proposal
	Critic   *CriticReview
}

// AdjustedConfidence is the analyst confidence shifted by the critic and
// clamped to [0,1].
func (c *Candidate) AdjustedConfidence() float64 {
	if c.Proposal == nil {
		return 0
	}
	v := c.Proposal.Confidence
	if c.Critic != nil {
		v += c.Critic.ConfidenceAdjustment
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// pickWinner returns the endorsed candidate with the highest adjusted
// confidence; ties go to the lowest input index.
func pickWinner(cands []*Candidate, endorsed map[string]bool) *Candidate {
	var best *Candidate
	for _, c := range cands {
		if !endorsed[c.Symbol] {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		bc, cc := best.AdjustedConfidence(), c.AdjustedConfidence()
		if cc > bc || (cc == bc && c.Index < best.Index) {
			best = c
		}
	}
	return best
}
