package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// FakeClient answers every role with deterministic heuristics over the
// request's summary block. It never touches the network and is used when
// llm.mode is "fake".
type FakeClient struct {
	name Name
}

func NewFakeClient(name Name) *FakeClient {
	return &FakeClient{name: name}
}

func (c *FakeClient) Name() Name { return c.name }

func (c *FakeClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	in := gjson.Parse(req.User)
	var out any
	switch req.Role {
	case RoleScreener:
		out = fakeScreen(in)
	case RoleAnalyst:
		out = fakeAnalyse(in)
	case RoleCritic:
		out = fakeCritique(in)
	case RoleArbiter:
		out = fakeArbitrate(in)
	default:
		return "", fmt.Errorf("fake client: unknown role %q", req.Role)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fakeScreen(in gjson.Result) map[string]any {
	summary := in.Get("summary")
	codes := []string{}
	if !summary.Get("qa_passed").Bool() {
		codes = append(codes, "QA_FAIL")
	}
	if summary.Get("trend_regime").String() != "uptrend" {
		codes = append(codes, "NOT_UPTREND")
	}
	if summary.Get("vol_regime").String() == "high" {
		codes = append(codes, "VOL_HIGH")
	}
	verdict := "PASS"
	if len(codes) > 0 {
		verdict = "REJECT"
	}
	return map[string]any{"verdict": verdict, "reason_codes": codes}
}

func fakeAnalyse(in gjson.Result) map[string]any {
	summary := in.Get("summary")
	closePx := summary.Get("latest_close")
	atr := summary.Get("atr14")
	if !closePx.Exists() || !atr.Exists() || atr.Float() <= 0 || closePx.Float() <= atr.Float() {
		return map[string]any{"action": "REJECT", "reason_codes": []string{"MISSING_FEATURES"}}
	}
	c, a := closePx.Float(), atr.Float()
	return map[string]any{
		"action":       "PROPOSE_TRADE",
		"entry":        c,
		"stop":         c - a,
		"targets":      []float64{c + 2*a},
		"confidence":   0.55,
		"reason_codes": []string{"ATR_BRACKET"},
		"rationale":    "entry at last close, stop one ATR below, target two ATR above",
	}
}

func fakeCritique(in gjson.Result) map[string]any {
	summary := in.Get("summary")
	issues := []string{}
	if summary.Get("vol_regime").String() == "high" {
		issues = append(issues, "VOL_HIGH")
	}
	if !summary.Get("qa_passed").Bool() {
		issues = append(issues, "QA_FAIL")
	}
	verdict := "APPROVE"
	if len(issues) > 0 {
		verdict = "REJECT"
	}
	return map[string]any{"verdict": verdict, "confidence_adjustment": 0.0, "issues": issues}
}

func fakeArbitrate(in gjson.Result) map[string]any {
	endorse := []string{}
	in.Get("candidates").ForEach(func(_, cand gjson.Result) bool {
		if cand.Get("critic.verdict").String() == "APPROVE" {
			endorse = append(endorse, cand.Get("symbol").String())
		}
		return true
	})
	if len(endorse) == 0 {
		return map[string]any{"action": "NO_TRADE", "endorse": endorse, "reason_codes": []string{"NO_APPROVED_CANDIDATE"}}
	}
	return map[string]any{"action": "TRADE", "endorse": endorse, "reason_codes": []string{"APPROVED_BY_CRITIC"}}
}
