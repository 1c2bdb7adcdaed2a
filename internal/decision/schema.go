package decision

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"informer/internal/llm/provider"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// numericFields may arrive as strings ("101.5") from some models.
var numericFields = map[string]bool{
	"entry":                 true,
	"stop":                  true,
	"confidence":            true,
	"confidence_adjustment": true,
	"targets":               true,
}

// envelopeKeys are wrappers some models put around the real object.
var envelopeKeys = []string{"result", "data", "output", "response"}

type schemaSet map[provider.Role]*jsonschema.Schema

func compileSchemas() (schemaSet, error) {
	out := make(schemaSet, 4)
	compiler := jsonschema.NewCompiler()
	for _, role := range provider.Roles() {
		name := string(role) + ".json"
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		compiled, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[role] = compiled
	}
	return out, nil
}

// coerceEnvelope unwraps single-element arrays and one-key wrapper objects.
func coerceEnvelope(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("invalid json")
	}
	parsed := gjson.Parse(raw)
	for depth := 0; depth < 3; depth++ {
		switch {
		case parsed.IsArray():
			items := parsed.Array()
			if len(items) != 1 {
				return "", fmt.Errorf("expected one object, got array of %d", len(items))
			}
			parsed = items[0]
			continue
		case parsed.IsObject():
			unwrapped := false
			for _, k := range envelopeKeys {
				inner := parsed.Get(k)
				if inner.IsObject() && len(parsed.Map()) == 1 {
					parsed = inner
					unwrapped = true
					break
				}
			}
			if unwrapped {
				continue
			}
			return parsed.Raw, nil
		}
		break
	}
	if !parsed.IsObject() {
		return "", fmt.Errorf("root must be a JSON object")
	}
	return parsed.Raw, nil
}

func sanitizeNumbers(v any, key string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = sanitizeNumbers(inner, k)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = sanitizeNumbers(inner, key)
		}
		return out
	case string:
		if numericFields[key] {
			if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
			}
		}
		return val
	default:
		return v
	}
}

// decodeStage validates raw against the role's schema and decodes it into the
// role's payload type.
func (s schemaSet) decodeStage(role provider.Role, raw string) (any, error) {
	schema, ok := s[role]
	if !ok {
		return nil, fmt.Errorf("no schema for role %s", role)
	}
	obj, err := coerceEnvelope(raw)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(obj))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	doc = sanitizeNumbers(doc, "")
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var payload any
	switch role {
	case provider.RoleScreener:
		payload = &ScreenerVerdict{}
	case provider.RoleAnalyst:
		payload = &AnalystPlan{}
	case provider.RoleCritic:
		payload = &CriticReview{}
	case provider.RoleArbiter:
		payload = &ArbiterChoice{}
	default:
		return nil, fmt.Errorf("unknown role %s", role)
	}
	if err := json.Unmarshal(normalized, payload); err != nil {
		return nil, err
	}
	if plan, ok := payload.(*AnalystPlan); ok && plan.Action == ActionProposeTrade {
		prop, ok := plan.Proposal()
		if !ok {
			return nil, fmt.Errorf("proposal incomplete")
		}
		if err := prop.Validate(); err != nil {
			return nil, fmt.Errorf("proposal: %w", err)
		}
	}
	return payload, nil
}
