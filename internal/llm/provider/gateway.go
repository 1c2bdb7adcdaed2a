package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"informer/internal/logger"
	"informer/internal/pkg/circuit"
	"informer/internal/pkg/jsonutil"
)

const DefaultTimeout = 30 * time.Second

// ErrCircuitOpen is returned without a network call while a provider's
// breaker is open.
var ErrCircuitOpen = errors.New("provider circuit open")

// ErrMalformedResponse marks a successful HTTP exchange whose body is not a
// usable completion. The gateway reports it as InvalidResponse.
var ErrMalformedResponse = errors.New("malformed provider response")

// Client performs one completion against a single provider. Implementations
// must not retry.
type Client interface {
	Name() Name
	Complete(ctx context.Context, req Request) (string, error)
}

// Gateway routes role requests to provider clients and enforces deadlines.
type Gateway struct {
	routing  Routing
	clients  map[Name]Client
	breakers map[Name]*circuit.CircuitBreaker
}

// NewGateway fails when the routing table is invalid or a routed provider has
// no client.
func NewGateway(routing Routing, clients ...Client) (*Gateway, error) {
	if routing == nil {
		routing = DefaultRouting()
	}
	if err := routing.Validate(); err != nil {
		return nil, err
	}
	g := &Gateway{routing: routing, clients: make(map[Name]Client, len(clients))}
	for _, c := range clients {
		if c == nil {
			continue
		}
		if _, err := ParseName(string(c.Name())); err != nil {
			return nil, err
		}
		g.clients[c.Name()] = c
	}
	for _, role := range Roles() {
		name := routing[role]
		if _, ok := g.clients[name]; !ok {
			return nil, fmt.Errorf("provider %s (role %s) is not configured", name, role)
		}
	}
	return g, nil
}

// EnableBreakers guards every provider with a breaker that opens after
// threshold consecutive timeouts or transport failures. Call before the
// gateway is shared.
func (g *Gateway) EnableBreakers(threshold int, cooldown time.Duration) {
	if threshold <= 0 {
		g.breakers = nil
		return
	}
	g.breakers = make(map[Name]*circuit.CircuitBreaker, len(g.clients))
	for name := range g.clients {
		g.breakers[name] = circuit.NewCircuitBreaker(string(name), threshold, cooldown)
	}
}

func (g *Gateway) Routing() Routing {
	out := make(Routing, len(g.routing))
	for k, v := range g.routing {
		out[k] = v
	}
	return out
}

// Providers returns the configured provider names, sorted.
func (g *Gateway) Providers() []Name {
	out := make([]Name, 0, len(g.clients))
	for n := range g.clients {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Submit sends req to the provider bound to role.
func (g *Gateway) Submit(ctx context.Context, role Role, req Request, timeout time.Duration) Result {
	name, ok := g.routing.Provider(role)
	if !ok {
		return Fail(KindTransportFailure, fmt.Errorf("no provider routed for role %s", role))
	}
	req.Role = role
	return g.SubmitTo(ctx, name, req, timeout)
}

// SubmitTo sends req to an explicit provider. The call gets at most timeout;
// a client that ignores its context still yields Timeout when the deadline
// passes.
func (g *Gateway) SubmitTo(ctx context.Context, name Name, req Request, timeout time.Duration) Result {
	client, ok := g.clients[name]
	if !ok {
		return Fail(KindTransportFailure, fmt.Errorf("%w: %s not configured", ErrUnknownProvider, name))
	}
	breaker := g.breakers[name]
	if breaker != nil && !breaker.Allow() {
		return Fail(KindTransportFailure, fmt.Errorf("%w: %s", ErrCircuitOpen, name))
	}
	res := g.call(ctx, client, name, req, timeout)
	if breaker != nil {
		switch res.Kind() {
		case KindTimeout, KindTransportFailure:
			breaker.RecordFailure()
		default:
			breaker.RecordSuccess()
		}
	}
	return res
}

func (g *Gateway) call(ctx context.Context, client Client, name Name, req Request, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.LogLLMRequest(req.RunID, string(name), string(req.Role), req.System, req.User)
	type outcome struct {
		raw string
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		raw, err := client.Complete(callCtx, req)
		done <- outcome{raw: raw, err: err}
	}()

	select {
	case <-callCtx.Done():
		err := callCtx.Err()
		logger.LogLLMResponse(req.RunID, string(name), string(req.Role), "", time.Since(start), err)
		if errors.Is(err, context.DeadlineExceeded) {
			return Fail(KindTimeout, fmt.Errorf("%s %s: no response within %s", name, req.Role, timeout))
		}
		return Fail(KindTransportFailure, fmt.Errorf("%s %s: %w", name, req.Role, err))
	case out := <-done:
		elapsed := time.Since(start)
		logger.LogLLMResponse(req.RunID, string(name), string(req.Role), out.raw, elapsed, out.err)
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return Fail(KindTimeout, fmt.Errorf("%s %s: %w", name, req.Role, out.err))
			}
			if errors.Is(out.err, ErrMalformedResponse) {
				return Fail(KindInvalidResponse, fmt.Errorf("%s %s: %w", name, req.Role, out.err))
			}
			return Fail(KindTransportFailure, fmt.Errorf("%s %s: %w", name, req.Role, out.err))
		}
		obj, ok := jsonutil.ExtractObject(out.raw)
		if !ok {
			return Fail(KindInvalidResponse, fmt.Errorf("%s %s: no JSON object in response", name, req.Role))
		}
		return Ok(Response{Provider: name, Raw: out.raw, JSON: obj, Elapsed: elapsed})
	}
}
