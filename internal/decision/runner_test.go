package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"informer/internal/llm/provider"
	"informer/internal/types"
)

type mockSubmitter struct {
	mock.Mock
	routing provider.Routing
}

func (m *mockSubmitter) Submit(ctx context.Context, role provider.Role, req provider.Request, timeout time.Duration) provider.Result {
	args := m.Called(role, req.Symbol)
	return args.Get(0).(provider.Result)
}

func (m *mockSubmitter) SubmitTo(ctx context.Context, name provider.Name, req provider.Request, timeout time.Duration) provider.Result {
	args := m.Called(name, req.Symbol)
	return args.Get(0).(provider.Result)
}

func (m *mockSubmitter) Routing() provider.Routing { return m.routing }

func okResult(name provider.Name, obj string) provider.Result {
	return provider.Ok(provider.Response{Provider: name, Raw: obj, JSON: obj})
}

func newTestRunner(t *testing.T, sub Submitter, fallback bool) *Runner {
	t.Helper()
	r, err := NewRunner(sub, time.Second, fallback)
	require.NoError(t, err)
	return r
}

func TestRunnerAccepted(t *testing.T) {
	sub := &mockSubmitter{routing: provider.DefaultRouting()}
	sub.On("Submit", provider.RoleAnalyst, "AAPL").
		Return(okResult(provider.OpenAI, `{"action":"PROPOSE_TRADE","entry":"100.5","stop":99,"targets":[103],"confidence":0.6}`))

	res := newTestRunner(t, sub, false).Run(context.Background(), provider.RoleAnalyst, provider.Request{Symbol: "AAPL"})
	acc, ok := res.(Accepted)
	require.True(t, ok, "%#v", res)
	assert.Equal(t, provider.OpenAI, acc.Provider)
	plan := acc.Payload.(*AnalystPlan)
	require.NotNil(t, plan.Entry)
	assert.Equal(t, 100.5, *plan.Entry)
	sub.AssertExpectations(t)
}

func TestRunnerRefusalIsRejected(t *testing.T) {
	sub := &mockSubmitter{routing: provider.DefaultRouting()}
	sub.On("Submit", provider.RoleScreener, "AAPL").
		Return(okResult(provider.OpenAI, `{"verdict":"REJECT","reason_codes":["not_uptrend"]}`))

	res := newTestRunner(t, sub, false).Run(context.Background(), provider.RoleScreener, provider.Request{Symbol: "AAPL"})
	assert.Equal(t, Rejected{Provider: provider.OpenAI, Reason: "NOT_UPTREND"}, res)
}

func TestRunnerSchemaFailureIsRejected(t *testing.T) {
	sub := &mockSubmitter{routing: provider.DefaultRouting()}
	sub.On("Submit", provider.RoleAnalyst, "AAPL").
		Return(okResult(provider.OpenAI, `{"action":"PROPOSE_TRADE","entry":100}`))

	res := newTestRunner(t, sub, false).Run(context.Background(), provider.RoleAnalyst, provider.Request{Symbol: "AAPL"})
	assert.Equal(t, types.OutcomeRejected, res.Outcome())
	assert.Equal(t, string(types.ReasonInvalidResponse), describe(res))
}

func TestRunnerUnavailableKeepsKind(t *testing.T) {
	sub := &mockSubmitter{routing: provider.DefaultRouting()}
	sub.On("Submit", provider.RoleScreener, "AAPL").
		Return(provider.Fail(provider.KindTimeout, context.DeadlineExceeded))

	res := newTestRunner(t, sub, false).Run(context.Background(), provider.RoleScreener, provider.Request{Symbol: "AAPL"})
	u, ok := res.(Unavailable)
	require.True(t, ok)
	assert.Equal(t, provider.OpenAI, u.Provider)
	assert.Equal(t, provider.KindTimeout, u.Kind)
	assert.ErrorIs(t, u.Cause, context.DeadlineExceeded)
}

func TestRunnerCriticFallback(t *testing.T) {
	sub := &mockSubmitter{routing: provider.DefaultRouting()}
	sub.On("Submit", provider.RoleCritic, "AAPL").
		Return(provider.Fail(provider.KindTransportFailure, errors.New("503")))
	sub.On("SubmitTo", provider.OpenAI, "AAPL").
		Return(okResult(provider.OpenAI, `{"verdict":"APPROVE","confidence_adjustment":-0.1}`)).Once()

	res := newTestRunner(t, sub, true).Run(context.Background(), provider.RoleCritic, provider.Request{Symbol: "AAPL"})
	acc, ok := res.(Accepted)
	require.True(t, ok, "%#v", res)
	assert.Equal(t, provider.OpenAI, acc.Provider)
	assert.Equal(t, -0.1, acc.Payload.(*CriticReview).ConfidenceAdjustment)
	sub.AssertExpectations(t)
}

func TestRunnerCriticFallbackFailureAttributesFallbackProvider(t *testing.T) {
	sub := &mockSubmitter{routing: provider.DefaultRouting()}
	sub.On("Submit", provider.RoleCritic, "AAPL").
		Return(provider.Fail(provider.KindTimeout, context.DeadlineExceeded))
	sub.On("SubmitTo", provider.OpenAI, "AAPL").
		Return(provider.Fail(provider.KindTransportFailure, errors.New("reset"))).Once()

	res := newTestRunner(t, sub, true).Run(context.Background(), provider.RoleCritic, provider.Request{Symbol: "AAPL"})
	u, ok := res.(Unavailable)
	require.True(t, ok)
	assert.Equal(t, provider.OpenAI, u.Provider)
	assert.Equal(t, provider.KindTransportFailure, u.Kind)
}

func TestRunnerNoFallbackWhenDisabled(t *testing.T) {
	sub := &mockSubmitter{routing: provider.DefaultRouting()}
	sub.On("Submit", provider.RoleCritic, "AAPL").
		Return(provider.Fail(provider.KindTimeout, context.DeadlineExceeded))

	res := newTestRunner(t, sub, false).Run(context.Background(), provider.RoleCritic, provider.Request{Symbol: "AAPL"})
	assert.Equal(t, types.OutcomeUnavailable, res.Outcome())
	assert.Equal(t, provider.Google, res.ProviderName())
	sub.AssertNotCalled(t, "SubmitTo", mock.Anything, mock.Anything)
}
