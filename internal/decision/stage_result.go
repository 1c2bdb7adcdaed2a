package decision

import (
	"fmt"

	"informer/internal/llm/provider"
	"informer/internal/types"
)

// StageResult is the outcome of one stage call for one candidate. The set of
// variants is closed: Accepted, Rejected and Unavailable.
type StageResult interface {
	Outcome() types.StageOutcome
	ProviderName() provider.Name
	isStageResult()
}

// Accepted carries a schema-valid payload (*ScreenerVerdict, *AnalystPlan,
// *CriticReview or *ArbiterChoice).
type Accepted struct {
	Provider provider.Name
	Payload  any
}

// Rejected means the provider answered but the answer is a refusal or failed
// validation.
type Rejected struct {
	Provider provider.Name
	Reason   string
}

// Unavailable means no usable answer arrived (timeout, transport, garbage).
type Unavailable struct {
	Provider provider.Name
	Kind     provider.ErrorKind
	Cause    error
}

func (Accepted) Outcome() types.StageOutcome    { return types.OutcomeAccepted }
func (Rejected) Outcome() types.StageOutcome    { return types.OutcomeRejected }
func (Unavailable) Outcome() types.StageOutcome { return types.OutcomeUnavailable }

func (a Accepted) ProviderName() provider.Name    { return a.Provider }
func (r Rejected) ProviderName() provider.Name    { return r.Provider }
func (u Unavailable) ProviderName() provider.Name { return u.Provider }

func (Accepted) isStageResult()    {}
func (Rejected) isStageResult()    {}
func (Unavailable) isStageResult() {}

func (u Unavailable) Error() string {
	return fmt.Sprintf("%s unavailable (%s): %v", u.Provider, u.Kind, u.Cause)
}

func describe(res StageResult) string {
	switch r := res.(type) {
	case Accepted:
		return ""
	case Rejected:
		return r.Reason
	case Unavailable:
		return r.Kind.String()
	default:
		return ""
	}
}
