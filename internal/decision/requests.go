package decision

import (
	"encoding/json"
	"time"

	"informer/internal/llm/provider"
	"informer/internal/packet"
	"informer/internal/types"
)

type screenerInput struct {
	RunID   string          `json:"run_id"`
	AsOf    time.Time       `json:"as_of"`
	Symbol  string          `json:"symbol"`
	Summary packet.Summary  `json:"summary"`
	Packet  json.RawMessage `json:"packet,omitempty"`
}

type analystInput struct {
	screenerInput
	Screener *ScreenerVerdict `json:"screener,omitempty"`
}

type criticInput struct {
	RunID    string         `json:"run_id"`
	AsOf     time.Time      `json:"as_of"`
	Symbol   string         `json:"symbol"`
	Summary  packet.Summary `json:"summary"`
	Proposal types.Proposal `json:"proposal"`
}

type arbiterCandidate struct {
	Index              int            `json:"index"`
	Symbol             string         `json:"symbol"`
	Proposal           types.Proposal `json:"proposal"`
	Critic             *CriticReview  `json:"critic"`
	AdjustedConfidence float64        `json:"adjusted_confidence"`
}

type arbiterInput struct {
	RunID      string             `json:"run_id"`
	AsOf       time.Time          `json:"as_of"`
	Candidates []arbiterCandidate `json:"candidates"`
}

func (p *Pipeline) request(role provider.Role, runID, symbol string, body any) provider.Request {
	user, err := json.Marshal(body)
	if err != nil {
		// every input type above is plain data
		user = []byte("{}")
	}
	return provider.Request{
		RunID:     runID,
		Role:      role,
		Symbol:    symbol,
		System:    p.prompts[string(role)],
		User:      string(user),
		MaxTokens: p.cfg.MaxTokens,
	}
}

func (p *Pipeline) screenerRequest(r *run, c *Candidate) provider.Request {
	return p.request(provider.RoleScreener, r.id, c.Symbol, p.baseInput(r, c))
}

func (p *Pipeline) analystRequest(r *run, c *Candidate) provider.Request {
	return p.request(provider.RoleAnalyst, r.id, c.Symbol, analystInput{
		screenerInput: p.baseInput(r, c),
		Screener:      c.Screener,
	})
}

func (p *Pipeline) criticRequest(r *run, c *Candidate) provider.Request {
	return p.request(provider.RoleCritic, r.id, c.Symbol, criticInput{
		RunID:    r.id,
		AsOf:     r.asOf,
		Symbol:   c.Symbol,
		Summary:  c.Summary,
		Proposal: *c.Proposal,
	})
}

func (p *Pipeline) arbiterRequest(r *run, cands []*Candidate) provider.Request {
	in := arbiterInput{RunID: r.id, AsOf: r.asOf, Candidates: make([]arbiterCandidate, 0, len(cands))}
	for _, c := range cands {
		in.Candidates = append(in.Candidates, arbiterCandidate{
			Index:              c.Index,
			Symbol:             c.Symbol,
			Proposal:           *c.Proposal,
			Critic:             c.Critic,
			AdjustedConfidence: c.AdjustedConfidence(),
		})
	}
	return p.request(provider.RoleArbiter, r.id, "", in)
}

func (p *Pipeline) baseInput(r *run, c *Candidate) screenerInput {
	in := screenerInput{RunID: r.id, AsOf: r.asOf, Symbol: c.Symbol, Summary: c.Summary}
	if p.cfg.IncludePacket && c.Packet != nil {
		in.Packet = c.Packet.Raw
	}
	return in
}
