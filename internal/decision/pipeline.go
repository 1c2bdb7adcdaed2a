package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"informer/internal/llm/provider"
	"informer/internal/logger"
	"informer/internal/packet"
	"informer/internal/risk"
	"informer/internal/types"
)

// State is a step of the decision state machine.
type State int

const (
	StateScreening State = iota
	StateAnalyzing
	StateCritiquing
	StateArbitrating
	StateValidating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateScreening:
		return "screening"
	case StateAnalyzing:
		return "analyzing"
	case StateCritiquing:
		return "critiquing"
	case StateArbitrating:
		return "arbitrating"
	case StateValidating:
		return "validating"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	MaxCandidates    int
	MaxConcurrency   int
	MaxTokens        int
	PrimaryTimeframe string
	IncludePacket    bool
	MaxRiskUSD       float64
	CashUSD          *float64
}

// RunInput is everything one run decides over. Packets align with Symbols;
// a nil entry means the packet was missing.
type RunInput struct {
	RunID   string
	AsOf    time.Time
	Symbols []string
	Packets []*packet.Packet
	Profile *risk.Profile
}

// StageRunner is satisfied by *Runner.
type StageRunner interface {
	Run(ctx context.Context, role provider.Role, req provider.Request) StageResult
}

// Pipeline runs Screener -> Analyst -> Critic -> Arbiter -> Risk Validator.
//
// Execution rules:
//  1. Each phase fans out one call per surviving candidate, bounded by
//     MaxConcurrency, and joins before the next phase starts. Results are
//     stored by candidate index, so completion order never matters.
//  2. Screener and Analyst failures only drop the candidate.
//  3. Any critic Unavailable halts the run with CRITIC_UNAVAILABLE; the
//     runner has already tried the fallback provider if one is configured.
//  4. The arbiter is called once over all survivors. Unavailable or an
//     invalid answer halts with ARBITER_UNAVAILABLE rather than picking
//     locally.
//  5. Validation runs exactly once per run, halted or not, so every record
//     carries one terminal decision.
type Pipeline struct {
	runner  StageRunner
	prompts map[string]string
	cfg     Config
}

func NewPipeline(runner StageRunner, prompts map[string]string, cfg Config) *Pipeline {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Pipeline{runner: runner, prompts: prompts, cfg: cfg}
}

// run is the mutable state of one pipeline execution.
type run struct {
	id      string
	asOf    time.Time
	log     logger.Run
	profile *risk.Profile

	all    []*Candidate
	active []*Candidate

	haltAction  types.Action
	haltReason  types.ReasonCode
	winner      *Candidate
	reasonCodes []string
	trace       []types.StageTrace
	decision    types.Decision
}

// Run executes one decision run. Stage failures never escape; the returned
// record always holds exactly one terminal decision.
func (p *Pipeline) Run(ctx context.Context, in RunInput) types.RunRecord {
	r := &run{
		id:      in.RunID,
		asOf:    in.AsOf.UTC().Truncate(time.Second),
		log:     logger.ForRun(in.RunID),
		profile: in.Profile,
		trace:   []types.StageTrace{},
	}
	for i, sym := range in.Symbols {
		c := &Candidate{Index: i, Symbol: strings.ToUpper(strings.TrimSpace(sym))}
		if i < len(in.Packets) && in.Packets[i] != nil {
			c.Packet = in.Packets[i]
			c.Summary = c.Packet.Summarize(p.cfg.PrimaryTimeframe)
		}
		r.all = append(r.all, c)
	}

	state := StateScreening
	for state != StateDone {
		next := p.step(ctx, r, state)
		r.log.Debugf("[pipeline] %s -> %s", state, next)
		state = next
	}

	rec := types.RunRecord{
		RunID:       r.id,
		AsOf:        r.asOf,
		TradeDateNY: types.TradeDateNY(r.asOf),
		Symbols:     make([]string, 0, len(r.all)),
		Decision:    r.decision,
		Trace:       r.trace,
	}
	if in.Profile != nil {
		rec.Profile = in.Profile.Name
	}
	for _, c := range r.all {
		rec.Symbols = append(rec.Symbols, c.Symbol)
	}
	r.log.Infof("[pipeline] decision action=%s reason=%s symbol=%s shares=%d",
		rec.Decision.Action, rec.Decision.Reason, rec.Decision.Symbol, rec.Decision.Shares)
	return rec
}

func (p *Pipeline) step(ctx context.Context, r *run, state State) State {
	switch state {
	case StateScreening:
		return p.screen(ctx, r)
	case StateAnalyzing:
		return p.analyse(ctx, r)
	case StateCritiquing:
		return p.critique(ctx, r)
	case StateArbitrating:
		return p.arbitrate(ctx, r)
	case StateValidating:
		p.validate(r)
		return StateDone
	default:
		return StateDone
	}
}

func (r *run) stop(action types.Action, reason types.ReasonCode) State {
	r.haltAction, r.haltReason = action, reason
	r.active = nil
	r.log.Infof("[pipeline] stop: %s/%s", action, reason)
	return StateValidating
}

func (r *run) record(role provider.Role, symbol string, res StageResult) {
	r.trace = append(r.trace, types.StageTrace{
		Stage:    string(role),
		Symbol:   symbol,
		Provider: string(res.ProviderName()),
		Outcome:  res.Outcome(),
		Reason:   describe(res),
	})
	if u, ok := res.(Unavailable); ok {
		r.log.Warnf("[pipeline] %s %s: %v", role, symbol, u.Cause)
	}
}

// fanOut calls role once per candidate, at most MaxConcurrency at a time,
// and returns results in candidate order.
func (p *Pipeline) fanOut(ctx context.Context, role provider.Role, cands []*Candidate, build func(*Candidate) provider.Request) []StageResult {
	results := make([]StageResult, len(cands))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.MaxConcurrency)
	for i, c := range cands {
		i, c := i, c
		eg.Go(func() error {
			results[i] = p.runner.Run(egCtx, role, build(c))
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (p *Pipeline) screen(ctx context.Context, r *run) State {
	ready := make([]*Candidate, 0, len(r.all))
	for _, c := range r.all {
		if c.Packet.Ready() {
			ready = append(ready, c)
			continue
		}
		r.log.Infof("[pipeline] %s skipped: packet not ready", c.Symbol)
	}
	if len(ready) == 0 {
		return r.stop(types.ActionNotReady, types.ReasonNoCandidates)
	}
	results := p.fanOut(ctx, provider.RoleScreener, ready, func(c *Candidate) provider.Request {
		return p.screenerRequest(r, c)
	})
	shortlist := make([]*Candidate, 0, len(ready))
	for i, res := range results {
		c := ready[i]
		r.record(provider.RoleScreener, c.Symbol, res)
		if acc, ok := res.(Accepted); ok {
			c.Screener = acc.Payload.(*ScreenerVerdict)
			shortlist = append(shortlist, c)
		}
	}
	if p.cfg.MaxCandidates > 0 && len(shortlist) > p.cfg.MaxCandidates {
		shortlist = shortlist[:p.cfg.MaxCandidates]
	}
	if len(shortlist) == 0 {
		return r.stop(types.ActionNoTrade, types.ReasonNoCandidates)
	}
	r.active = shortlist
	return StateAnalyzing
}

func (p *Pipeline) analyse(ctx context.Context, r *run) State {
	results := p.fanOut(ctx, provider.RoleAnalyst, r.active, func(c *Candidate) provider.Request {
		return p.analystRequest(r, c)
	})
	kept := make([]*Candidate, 0, len(r.active))
	for i, res := range results {
		c := r.active[i]
		r.record(provider.RoleAnalyst, c.Symbol, res)
		acc, ok := res.(Accepted)
		if !ok {
			continue
		}
		plan := acc.Payload.(*AnalystPlan)
		prop, ok := plan.Proposal()
		if !ok {
			continue
		}
		c.Plan = plan
		c.Proposal = &prop
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return r.stop(types.ActionNoTrade, types.ReasonNoTradeSelected)
	}
	r.active = kept
	return StateCritiquing
}

func (p *Pipeline) critique(ctx context.Context, r *run) State {
	results := p.fanOut(ctx, provider.RoleCritic, r.active, func(c *Candidate) provider.Request {
		return p.criticRequest(r, c)
	})
	kept := make([]*Candidate, 0, len(r.active))
	unavailable := false
	for i, res := range results {
		c := r.active[i]
		r.record(provider.RoleCritic, c.Symbol, res)
		switch v := res.(type) {
		case Unavailable:
			unavailable = true
		case Accepted:
			c.Critic = v.Payload.(*CriticReview)
			kept = append(kept, c)
		}
	}
	if unavailable {
		return r.stop(types.ActionNoTrade, types.ReasonCriticUnavailable)
	}
	if len(kept) == 0 {
		return r.stop(types.ActionNoTrade, types.ReasonNoTradeSelected)
	}
	r.active = kept
	return StateArbitrating
}

func (p *Pipeline) arbitrate(ctx context.Context, r *run) State {
	res := p.runner.Run(ctx, provider.RoleArbiter, p.arbiterRequest(r, r.active))
	r.record(provider.RoleArbiter, "", res)
	acc, ok := res.(Accepted)
	if !ok {
		return r.stop(types.ActionNoTrade, types.ReasonArbiterUnavailable)
	}
	choice := acc.Payload.(*ArbiterChoice)
	r.reasonCodes = append([]string(nil), choice.ReasonCodes...)
	if choice.Action != ActionArbiterTrade {
		return r.stop(types.ActionNoTrade, types.ReasonNoTradeSelected)
	}
	winner := pickWinner(r.active, choice.Endorsed())
	if winner == nil {
		return r.stop(types.ActionNoTrade, types.ReasonNoTradeSelected)
	}
	r.winner = winner
	r.log.Infof("[pipeline] arbiter selected %s (adjusted confidence %.3f)", winner.Symbol, winner.AdjustedConfidence())
	return StateValidating
}

func (p *Pipeline) validate(r *run) {
	in := risk.Input{
		Action:      r.haltAction,
		Reason:      r.haltReason,
		ReasonCodes: r.reasonCodes,
		Profile:     r.profile,
		CashUSD:     p.cfg.CashUSD,
		MaxRiskUSD:  p.cfg.MaxRiskUSD,
	}
	if r.winner != nil {
		prop := r.winner.Proposal.Clone()
		prop.Confidence = r.winner.AdjustedConfidence()
		in.Symbol = r.winner.Symbol
		in.Proposal = &prop
	}
	r.decision = risk.Validate(in)
}
