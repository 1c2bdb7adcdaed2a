package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"informer/internal/llm/provider"
	"informer/internal/types"
)

func TestCoerceEnvelope(t *testing.T) {
	cases := map[string]string{
		`{"verdict":"PASS"}`:                      `{"verdict":"PASS"}`,
		`[{"verdict":"PASS"}]`:                    `{"verdict":"PASS"}`,
		`{"result":{"verdict":"PASS"}}`:           `{"verdict":"PASS"}`,
		`{"data":[{"verdict":"PASS"}]}`:           `{"data":[{"verdict":"PASS"}]}`,
		` {"output":{"data":{"verdict":"PASS"}}}`: `{"verdict":"PASS"}`,
	}
	for in, want := range cases {
		got, err := coerceEnvelope(in)
		require.NoError(t, err, in)
		assert.JSONEq(t, want, got, in)
	}

	for _, bad := range []string{`[]`, `[{"a":1},{"b":2}]`, `"text"`, `{broken`} {
		_, err := coerceEnvelope(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodeStage(t *testing.T) {
	s, err := compileSchemas()
	require.NoError(t, err)

	t.Run("screener", func(t *testing.T) {
		v, err := s.decodeStage(provider.RoleScreener, `{"verdict":"PASS","reason_codes":["UPTREND"],"notes":null}`)
		require.NoError(t, err)
		assert.Equal(t, &ScreenerVerdict{Verdict: VerdictPass, ReasonCodes: []string{"UPTREND"}}, v)
	})

	t.Run("screener bad verdict", func(t *testing.T) {
		_, err := s.decodeStage(provider.RoleScreener, `{"verdict":"MAYBE"}`)
		assert.Error(t, err)
	})

	t.Run("analyst string numbers", func(t *testing.T) {
		v, err := s.decodeStage(provider.RoleAnalyst, `{"action":"PROPOSE_TRADE","entry":"100","stop":"98.5","targets":["103",105],"confidence":"0.7"}`)
		require.NoError(t, err)
		prop, ok := v.(*AnalystPlan).Proposal()
		require.True(t, ok)
		assert.Equal(t, 98.5, prop.Stop)
		assert.Equal(t, []float64{103, 105}, prop.Targets)
		assert.Equal(t, 0.7, prop.Confidence)
	})

	t.Run("analyst reject needs no prices", func(t *testing.T) {
		v, err := s.decodeStage(provider.RoleAnalyst, `{"action":"REJECT","reason_codes":["CHOP"]}`)
		require.NoError(t, err)
		assert.Equal(t, "CHOP", refusalReason(v))
	})

	t.Run("analyst stop above entry", func(t *testing.T) {
		_, err := s.decodeStage(provider.RoleAnalyst, `{"action":"PROPOSE_TRADE","entry":100,"stop":101,"targets":[103],"confidence":0.7}`)
		assert.Error(t, err)
	})

	t.Run("analyst targets out of order", func(t *testing.T) {
		_, err := s.decodeStage(provider.RoleAnalyst, `{"action":"PROPOSE_TRADE","entry":100,"stop":98,"targets":[105,103],"confidence":0.7}`)
		assert.Error(t, err)
	})

	t.Run("critic adjustment range", func(t *testing.T) {
		_, err := s.decodeStage(provider.RoleCritic, `{"verdict":"APPROVE","confidence_adjustment":1.5}`)
		assert.Error(t, err)
	})

	t.Run("arbiter trade without symbols", func(t *testing.T) {
		_, err := s.decodeStage(provider.RoleArbiter, `{"action":"TRADE","endorse":[]}`)
		assert.Error(t, err)
	})

	t.Run("arbiter endorsement", func(t *testing.T) {
		v, err := s.decodeStage(provider.RoleArbiter, `{"result":{"action":"TRADE","endorse":["aapl "],"symbol":"msft"}}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"AAPL": true, "MSFT": true}, v.(*ArbiterChoice).Endorsed())
	})
}

func TestPickWinner(t *testing.T) {
	mk := func(i int, sym string, conf, adj float64) *Candidate {
		return &Candidate{
			Index:    i,
			Symbol:   sym,
			Proposal: mustProposal(plan(100, 98, 104, conf)),
			Critic:   &CriticReview{Verdict: VerdictApprove, ConfidenceAdjustment: adj},
		}
	}
	cands := []*Candidate{mk(0, "AAPL", 0.6, 0), mk(1, "MSFT", 0.6, 0), mk(2, "NVDA", 0.9, 0.5)}

	assert.Equal(t, "NVDA", pickWinner(cands, map[string]bool{"AAPL": true, "MSFT": true, "NVDA": true}).Symbol)
	assert.Equal(t, "AAPL", pickWinner(cands, map[string]bool{"AAPL": true, "MSFT": true}).Symbol)
	assert.Nil(t, pickWinner(cands, map[string]bool{"TSLA": true}))
	assert.Equal(t, 1.0, cands[2].AdjustedConfidence())
}

func mustProposal(p *AnalystPlan) *types.Proposal {
	prop, _ := p.Proposal()
	return &prop
}
