package decision

import (
	"context"
	"time"

	"informer/internal/llm/provider"
	"informer/internal/logger"
	"informer/internal/types"
)

// Submitter is the slice of provider.Gateway the runner needs.
type Submitter interface {
	Submit(ctx context.Context, role provider.Role, req provider.Request, timeout time.Duration) provider.Result
	SubmitTo(ctx context.Context, name provider.Name, req provider.Request, timeout time.Duration) provider.Result
	Routing() provider.Routing
}

// Runner turns one provider round-trip into a StageResult.
type Runner struct {
	gw             Submitter
	schemas        schemaSet
	timeout        time.Duration
	criticFallback bool
}

func NewRunner(gw Submitter, timeout time.Duration, criticFallback bool) (*Runner, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Runner{gw: gw, schemas: schemas, timeout: timeout, criticFallback: criticFallback}, nil
}

// Run never returns an error: every failure is folded into the result.
func (r *Runner) Run(ctx context.Context, role provider.Role, req provider.Request) StageResult {
	routed, _ := r.gw.Routing().Provider(role)
	res := r.classify(role, routed, r.gw.Submit(ctx, role, req, r.timeout))
	if _, unavailable := res.(Unavailable); unavailable && role == provider.RoleCritic && r.criticFallback && routed != provider.OpenAI {
		logger.ForRun(req.RunID).Warnf("[stage] critic %s unavailable for %s, falling back to %s", routed, req.Symbol, provider.OpenAI)
		req.Role = role
		res = r.classify(role, provider.OpenAI, r.gw.SubmitTo(ctx, provider.OpenAI, req, r.timeout))
	}
	return res
}

func (r *Runner) classify(role provider.Role, name provider.Name, res provider.Result) StageResult {
	if !res.IsOk() {
		return Unavailable{Provider: name, Kind: res.Kind(), Cause: res.Err()}
	}
	resp := res.Response()
	payload, err := r.schemas.decodeStage(role, resp.JSON)
	if err != nil {
		logger.Debugf("[stage] %s response from %s rejected: %v", role, resp.Provider, err)
		return Rejected{Provider: resp.Provider, Reason: string(types.ReasonInvalidResponse)}
	}
	if reason := refusalReason(payload); reason != "" {
		return Rejected{Provider: resp.Provider, Reason: reason}
	}
	return Accepted{Provider: resp.Provider, Payload: payload}
}
