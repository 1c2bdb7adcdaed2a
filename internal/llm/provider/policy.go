package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Name identifies one of the two reasoning providers the pipeline may call.
type Name string

const (
	OpenAI Name = "openai"
	Google Name = "google"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Allowed lists every provider name, sorted.
func Allowed() []Name {
	return []Name{Google, OpenAI}
}

// ParseName normalises s and rejects anything outside Allowed.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	switch n {
	case OpenAI, Google:
		return n, nil
	}
	return "", fmt.Errorf("%w %q (allowed: %s)", ErrUnknownProvider, s, joinNames(Allowed()))
}

// Role is a pipeline stage that talks to a provider.
type Role string

const (
	RoleScreener Role = "screener"
	RoleAnalyst  Role = "analyst"
	RoleCritic   Role = "critic"
	RoleArbiter  Role = "arbiter"
)

func Roles() []Role {
	return []Role{RoleScreener, RoleAnalyst, RoleCritic, RoleArbiter}
}

// Routing binds each role to exactly one provider.
type Routing map[Role]Name

// DefaultRouting is the fixed production table.
func DefaultRouting() Routing {
	return Routing{
		RoleScreener: OpenAI,
		RoleAnalyst:  OpenAI,
		RoleCritic:   Google,
		RoleArbiter:  OpenAI,
	}
}

// ParseRouting builds a table from role->name strings, filling unset roles
// from DefaultRouting. Unknown roles and providers are errors.
func ParseRouting(raw map[string]string) (Routing, error) {
	out := DefaultRouting()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		role := Role(strings.ToLower(strings.TrimSpace(k)))
		if !knownRole(role) {
			return nil, fmt.Errorf("routing: unknown role %q", k)
		}
		name, err := ParseName(raw[k])
		if err != nil {
			return nil, fmt.Errorf("routing %s: %w", role, err)
		}
		out[role] = name
	}
	return out, nil
}

func (r Routing) Provider(role Role) (Name, bool) {
	n, ok := r[role]
	return n, ok
}

// Validate requires every role to be bound to an allowed provider.
func (r Routing) Validate() error {
	for _, role := range Roles() {
		n, ok := r[role]
		if !ok {
			return fmt.Errorf("routing: role %s has no provider", role)
		}
		if _, err := ParseName(string(n)); err != nil {
			return fmt.Errorf("routing %s: %w", role, err)
		}
	}
	return nil
}

func knownRole(role Role) bool {
	for _, r := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

func joinNames(names []Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
