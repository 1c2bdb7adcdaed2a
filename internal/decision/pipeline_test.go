package decision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"informer/internal/llm/provider"
	"informer/internal/packet"
	"informer/internal/risk"
	"informer/internal/types"
)

var testAsOf = time.Date(2025, 3, 14, 14, 30, 0, 0, time.UTC)

func testPacket(t *testing.T, symbol, status string, close, atr float64, trend, vol string) *packet.Packet {
	t.Helper()
	raw := fmt.Sprintf(`{"symbol":%q,"as_of":"2025-03-14T14:30:00Z","status":%q,"timeframes":{"1d":{"latest_bar":{"close":%v},"latest_features":{"atr14":%v,"trend_regime":%q,"vol_regime":%q},"qa":{"passed":true}}}}`,
		symbol, status, close, atr, trend, vol)
	p, err := packet.Parse([]byte(raw))
	require.NoError(t, err)
	return p
}

func f64(v float64) *float64 { return &v }

// scriptedRunner answers from a per role/symbol script and records calls.
type scriptedRunner struct {
	mu     sync.Mutex
	script func(role provider.Role, symbol string, req provider.Request) StageResult
	calls  []string
}

func (s *scriptedRunner) Run(_ context.Context, role provider.Role, req provider.Request) StageResult {
	s.mu.Lock()
	s.calls = append(s.calls, string(role)+":"+req.Symbol)
	s.mu.Unlock()
	return s.script(role, req.Symbol, req)
}

func (s *scriptedRunner) count(role provider.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	prefix := string(role) + ":"
	for _, c := range s.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func plan(entry, stop, target, conf float64) *AnalystPlan {
	return &AnalystPlan{
		Action:     ActionProposeTrade,
		Entry:      f64(entry),
		Stop:       f64(stop),
		Targets:    []float64{target},
		Confidence: f64(conf),
	}
}

// happyScript passes every stage and endorses every candidate.
func happyScript(plans map[string]*AnalystPlan, adj map[string]float64) func(provider.Role, string, provider.Request) StageResult {
	return func(role provider.Role, symbol string, _ provider.Request) StageResult {
		switch role {
		case provider.RoleScreener:
			return Accepted{Provider: provider.OpenAI, Payload: &ScreenerVerdict{Verdict: VerdictPass}}
		case provider.RoleAnalyst:
			return Accepted{Provider: provider.OpenAI, Payload: plans[symbol]}
		case provider.RoleCritic:
			return Accepted{Provider: provider.Google, Payload: &CriticReview{Verdict: VerdictApprove, ConfidenceAdjustment: adj[symbol]}}
		default:
			endorse := make([]string, 0, len(plans))
			for s := range plans {
				endorse = append(endorse, s)
			}
			return Accepted{Provider: provider.OpenAI, Payload: &ArbiterChoice{Action: ActionArbiterTrade, Endorse: endorse, ReasonCodes: []string{"BEST_SETUP"}}}
		}
	}
}

func runInput(t *testing.T, symbols ...string) RunInput {
	in := RunInput{RunID: "run-test", AsOf: testAsOf, Symbols: symbols}
	for _, s := range symbols {
		in.Packets = append(in.Packets, testPacket(t, s, "OK", 100, 2, "uptrend", "normal"))
	}
	return in
}

func TestPipelineAllPacketsNotReady(t *testing.T) {
	runner := &scriptedRunner{script: func(provider.Role, string, provider.Request) StageResult {
		t.Fatal("no stage may run")
		return nil
	}}
	p := NewPipeline(runner, nil, Config{MaxRiskUSD: 50})
	in := RunInput{
		RunID:   "run-nr",
		AsOf:    testAsOf,
		Symbols: []string{"aapl", "msft"},
		Packets: []*packet.Packet{nil, testPacket(t, "MSFT", "STALE", 100, 2, "uptrend", "normal")},
	}
	rec := p.Run(context.Background(), in)
	assert.Equal(t, types.ActionNotReady, rec.Decision.Action)
	assert.Equal(t, types.ReasonNoCandidates, rec.Decision.Reason)
	assert.Equal(t, []string{"AAPL", "MSFT"}, rec.Symbols)
	assert.Empty(t, rec.Trace)
	assert.Equal(t, "2025-03-14", rec.TradeDateNY)
}

func TestPipelineScreenerRejectsAllSkipsDownstream(t *testing.T) {
	runner := &scriptedRunner{script: func(role provider.Role, _ string, _ provider.Request) StageResult {
		return Rejected{Provider: provider.OpenAI, Reason: "NOT_UPTREND"}
	}}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "AAPL", "MSFT"))

	assert.Equal(t, types.ActionNoTrade, rec.Decision.Action)
	assert.Equal(t, types.ReasonNoCandidates, rec.Decision.Reason)
	assert.Equal(t, 2, runner.count(provider.RoleScreener))
	assert.Zero(t, runner.count(provider.RoleAnalyst))
	assert.Zero(t, runner.count(provider.RoleCritic))
	assert.Zero(t, runner.count(provider.RoleArbiter))
	require.Len(t, rec.Trace, 2)
	assert.Equal(t, types.OutcomeRejected, rec.Trace[0].Outcome)
	assert.Equal(t, "NOT_UPTREND", rec.Trace[0].Reason)
}

func TestPipelineScreenerUnavailableIsNotFatal(t *testing.T) {
	plans := map[string]*AnalystPlan{"MSFT": plan(100, 98, 104, 0.6)}
	happy := happyScript(plans, nil)
	runner := &scriptedRunner{script: func(role provider.Role, symbol string, req provider.Request) StageResult {
		if role == provider.RoleScreener && symbol == "AAPL" {
			return Unavailable{Provider: provider.OpenAI, Kind: provider.KindTimeout, Cause: context.DeadlineExceeded}
		}
		return happy(role, symbol, req)
	}}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "AAPL", "MSFT"))

	assert.Equal(t, types.ActionTrade, rec.Decision.Action)
	assert.Equal(t, "MSFT", rec.Decision.Symbol)
	assert.Equal(t, 1, runner.count(provider.RoleAnalyst))
	assert.Equal(t, types.OutcomeUnavailable, rec.Trace[0].Outcome)
	assert.Equal(t, "timeout", rec.Trace[0].Reason)
}

func TestPipelineMaxCandidatesKeepsInputOrder(t *testing.T) {
	plans := map[string]*AnalystPlan{
		"AAPL": plan(100, 98, 104, 0.6),
		"MSFT": plan(100, 98, 104, 0.6),
		"NVDA": plan(100, 98, 104, 0.9),
	}
	runner := &scriptedRunner{script: happyScript(plans, nil)}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50, MaxCandidates: 2}).Run(context.Background(), runInput(t, "AAPL", "MSFT", "NVDA"))

	assert.Equal(t, 2, runner.count(provider.RoleAnalyst))
	assert.Equal(t, "AAPL", rec.Decision.Symbol, "NVDA was cut by the shortlist cap and the tie goes to input order")
}

func TestPipelineAnalystRejectsAll(t *testing.T) {
	runner := &scriptedRunner{script: func(role provider.Role, _ string, _ provider.Request) StageResult {
		if role == provider.RoleScreener {
			return Accepted{Provider: provider.OpenAI, Payload: &ScreenerVerdict{Verdict: VerdictPass}}
		}
		return Rejected{Provider: provider.OpenAI, Reason: "NO_SETUP"}
	}}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "AAPL"))
	assert.Equal(t, types.ActionNoTrade, rec.Decision.Action)
	assert.Equal(t, types.ReasonNoTradeSelected, rec.Decision.Reason)
	assert.Zero(t, runner.count(provider.RoleCritic))
}

func TestPipelineCriticUnavailableHaltsRun(t *testing.T) {
	plans := map[string]*AnalystPlan{"AAPL": plan(100, 98, 104, 0.6), "MSFT": plan(100, 98, 104, 0.7)}
	happy := happyScript(plans, nil)
	runner := &scriptedRunner{script: func(role provider.Role, symbol string, req provider.Request) StageResult {
		if role == provider.RoleCritic && symbol == "MSFT" {
			return Unavailable{Provider: provider.Google, Kind: provider.KindTransportFailure, Cause: errors.New("503")}
		}
		return happy(role, symbol, req)
	}}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "AAPL", "MSFT"))

	assert.Equal(t, types.ActionNoTrade, rec.Decision.Action)
	assert.Equal(t, types.ReasonCriticUnavailable, rec.Decision.Reason)
	assert.Zero(t, runner.count(provider.RoleArbiter))
}

func TestPipelineCriticRejectionDropsCandidate(t *testing.T) {
	plans := map[string]*AnalystPlan{"AAPL": plan(100, 98, 104, 0.9), "MSFT": plan(100, 98, 104, 0.6)}
	happy := happyScript(plans, nil)
	runner := &scriptedRunner{script: func(role provider.Role, symbol string, req provider.Request) StageResult {
		if role == provider.RoleCritic && symbol == "AAPL" {
			return Rejected{Provider: provider.Google, Reason: "EXTENDED"}
		}
		return happy(role, symbol, req)
	}}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "AAPL", "MSFT"))

	assert.Equal(t, types.ActionTrade, rec.Decision.Action)
	assert.Equal(t, "MSFT", rec.Decision.Symbol)
}

func TestPipelineArbiterPicksHighestAdjustedConfidence(t *testing.T) {
	plans := map[string]*AnalystPlan{"AAPL": plan(100, 98, 104, 0.7), "MSFT": plan(50, 49, 52, 0.6)}
	adj := map[string]float64{"AAPL": -0.2, "MSFT": 0.1}
	runner := &scriptedRunner{script: happyScript(plans, adj)}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "AAPL", "MSFT"))

	require.Equal(t, types.ActionTrade, rec.Decision.Action)
	assert.Equal(t, "MSFT", rec.Decision.Symbol)
	assert.InDelta(t, 0.7, rec.Decision.Confidence, 1e-9)
	assert.Equal(t, int64(50), rec.Decision.Shares)
	assert.Equal(t, []string{"BEST_SETUP"}, rec.Decision.ReasonCodes)
}

func TestPipelineArbiterTieGoesToInputOrder(t *testing.T) {
	plans := map[string]*AnalystPlan{"MSFT": plan(100, 98, 104, 0.6), "AAPL": plan(100, 98, 104, 0.6)}
	runner := &scriptedRunner{script: happyScript(plans, nil)}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "MSFT", "AAPL"))
	assert.Equal(t, "MSFT", rec.Decision.Symbol)
}

func TestPipelineArbiterUnavailable(t *testing.T) {
	plans := map[string]*AnalystPlan{"AAPL": plan(100, 98, 104, 0.6)}
	happy := happyScript(plans, nil)
	for _, res := range []StageResult{
		Unavailable{Provider: provider.OpenAI, Kind: provider.KindTimeout, Cause: context.DeadlineExceeded},
		Rejected{Provider: provider.OpenAI, Reason: string(types.ReasonInvalidResponse)},
	} {
		res := res
		runner := &scriptedRunner{script: func(role provider.Role, symbol string, req provider.Request) StageResult {
			if role == provider.RoleArbiter {
				return res
			}
			return happy(role, symbol, req)
		}}
		rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "AAPL"))
		assert.Equal(t, types.ActionNoTrade, rec.Decision.Action)
		assert.Equal(t, types.ReasonArbiterUnavailable, rec.Decision.Reason)
	}
}

func TestPipelineArbiterNoTradeAndUnknownEndorsement(t *testing.T) {
	plans := map[string]*AnalystPlan{"AAPL": plan(100, 98, 104, 0.6)}
	happy := happyScript(plans, nil)
	for _, choice := range []*ArbiterChoice{
		{Action: ActionArbiterNone, ReasonCodes: []string{"CHOP"}},
		{Action: ActionArbiterTrade, Endorse: []string{"TSLA"}, ReasonCodes: []string{"CHOP"}},
	} {
		choice := choice
		runner := &scriptedRunner{script: func(role provider.Role, symbol string, req provider.Request) StageResult {
			if role == provider.RoleArbiter {
				return Accepted{Provider: provider.OpenAI, Payload: choice}
			}
			return happy(role, symbol, req)
		}}
		rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), runInput(t, "AAPL"))
		assert.Equal(t, types.ActionNoTrade, rec.Decision.Action)
		assert.Equal(t, types.ReasonNoTradeSelected, rec.Decision.Reason)
		assert.Equal(t, []string{"CHOP"}, rec.Decision.ReasonCodes)
		assert.Empty(t, rec.Decision.Symbol)
	}
}

func TestPipelineAppliesProfileGates(t *testing.T) {
	plans := map[string]*AnalystPlan{"AAPL": plan(100, 98, 110, 0.6)}
	runner := &scriptedRunner{script: happyScript(plans, nil)}
	prof := risk.Builtin()[risk.TradeThePool25kBeginner]
	in := runInput(t, "AAPL")
	in.Profile = &prof
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 500}).Run(context.Background(), in)

	require.Equal(t, types.ActionTrade, rec.Decision.Action)
	assert.Equal(t, prof.Name, rec.Profile)
	require.NotNil(t, rec.Decision.Prop)
	assert.Equal(t, 50.0, rec.Decision.MaxRiskUSD)
	assert.Equal(t, int64(25), rec.Decision.Shares)
	assert.NotEmpty(t, rec.Decision.Audit)
}

func TestPipelineRequestsCarrySummaryAndPrompt(t *testing.T) {
	plans := map[string]*AnalystPlan{"AAPL": plan(100, 98, 104, 0.6)}
	happy := happyScript(plans, nil)
	var seen []provider.Request
	var mu sync.Mutex
	runner := &scriptedRunner{script: func(role provider.Role, symbol string, req provider.Request) StageResult {
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		return happy(role, symbol, req)
	}}
	prompts := map[string]string{"screener": "SCREEN", "analyst": "ANALYSE", "critic": "CRITIC", "arbiter": "ARBITER"}
	NewPipeline(runner, prompts, Config{MaxRiskUSD: 50, MaxTokens: 256, IncludePacket: true}).Run(context.Background(), runInput(t, "AAPL"))

	require.Len(t, seen, 4)
	assert.Equal(t, "SCREEN", seen[0].System)
	assert.Equal(t, 256, seen[0].MaxTokens)
	assert.Contains(t, seen[0].User, `"latest_close":100`)
	assert.Contains(t, seen[0].User, `"packet":`)
	assert.Equal(t, "ARBITER", seen[3].System)
	assert.Contains(t, seen[3].User, `"adjusted_confidence":0.6`)
	assert.Empty(t, seen[3].Symbol)
}

func TestPipelineIsDeterministic(t *testing.T) {
	plans := map[string]*AnalystPlan{"AAPL": plan(100, 98, 104, 0.6), "MSFT": plan(50, 49, 52, 0.6)}
	p := NewPipeline(&scriptedRunner{script: happyScript(plans, nil)}, nil, Config{MaxRiskUSD: 50, MaxConcurrency: 8})
	first := p.Run(context.Background(), runInput(t, "AAPL", "MSFT"))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.Run(context.Background(), runInput(t, "AAPL", "MSFT")))
	}
}

func TestPipelineEndToEndWithFakeGateway(t *testing.T) {
	gw, err := provider.BuildGateway(provider.ModeFake, provider.DefaultRouting(), nil, time.Second)
	require.NoError(t, err)
	runner, err := NewRunner(gw, time.Second, true)
	require.NoError(t, err)

	in := RunInput{
		RunID:   "run-fake",
		AsOf:    testAsOf,
		Symbols: []string{"AAPL", "TSLA", "MSFT"},
		Packets: []*packet.Packet{
			testPacket(t, "AAPL", "OK", 100, 2, "uptrend", "normal"),
			testPacket(t, "TSLA", "OK", 200, 8, "uptrend", "high"),
			testPacket(t, "MSFT", "OK", 300, 3, "downtrend", "normal"),
		},
	}
	rec := NewPipeline(runner, nil, Config{MaxRiskUSD: 50}).Run(context.Background(), in)

	require.Equal(t, types.ActionTrade, rec.Decision.Action, "%+v", rec.Decision)
	assert.Equal(t, "AAPL", rec.Decision.Symbol)
	assert.Equal(t, 100.0, rec.Decision.Entry)
	assert.Equal(t, 98.0, rec.Decision.Stop)
	assert.Equal(t, []float64{104}, rec.Decision.Targets)
	assert.Equal(t, int64(25), rec.Decision.Shares)

	stages := make([]string, 0, len(rec.Trace))
	for _, tr := range rec.Trace {
		stages = append(stages, tr.Stage+":"+tr.Symbol+":"+string(tr.Provider))
	}
	assert.Equal(t, []string{
		"screener:AAPL:openai", "screener:TSLA:openai", "screener:MSFT:openai",
		"analyst:AAPL:openai",
		"critic:AAPL:google",
		"arbiter::openai",
	}, stages)
}
