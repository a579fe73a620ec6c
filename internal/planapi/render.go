package planapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Spelling selects how the dev API shapes its responses. The deployed
// backend has shipped each of these over time; serving them on demand
// keeps every client decoding path honest.
type Spelling string

const (
	// SpellSnake renders snake_case records inside a {"data": ...} envelope.
	SpellSnake Spelling = "snake"
	// SpellCamel renders bare camelCase records.
	SpellCamel Spelling = "camel"
	// SpellMixed alternates spellings per record, nests pricing under the
	// active version only, wraps lists in named envelopes and answers
	// status changes without a plan.
	SpellMixed Spelling = "mixed"
)

// ParseSpelling maps a config string onto a Spelling, defaulting to snake.
func ParseSpelling(s string) (Spelling, error) {
	switch Spelling(strings.ToLower(strings.TrimSpace(s))) {
	case "", SpellSnake:
		return SpellSnake, nil
	case SpellCamel:
		return SpellCamel, nil
	case SpellMixed:
		return SpellMixed, nil
	}
	return "", fmt.Errorf("planapi: unknown response spelling %q", s)
}

// tree turns v into generic JSON values via its snake_case tags.
func tree(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// camelize rewrites every object key from snake_case to camelCase.
// Currency-keyed price maps are left alone.
func camelize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if k == "prices" {
				out[k] = val
				continue
			}
			out[camelKey(k)] = camelize(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = camelize(t[i])
		}
		return t
	}
	return v
}

func camelKey(k string) string {
	parts := strings.Split(k, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// nestPricing drops the top-level pricing lists of a plan record that
// carries an active version, leaving the version as their only home.
func nestPricing(v any) any {
	m, ok := v.(map[string]any)
	if !ok || m["active_version"] == nil {
		return v
	}
	delete(m, "tiers")
	delete(m, "features")
	delete(m, "notifications")
	return m
}

// renderer shapes payloads for one Spelling.
type renderer struct {
	spelling Spelling
}

// record renders one object. envelope names the mixed-mode wrapper.
func (r renderer) record(v any, envelope string) (any, error) {
	t, err := tree(v)
	if err != nil {
		return nil, err
	}
	switch r.spelling {
	case SpellCamel:
		return camelize(t), nil
	case SpellMixed:
		return map[string]any{envelope: camelize(nestPricing(t))}, nil
	default:
		return map[string]any{"data": t}, nil
	}
}

// list renders a collection. Mixed mode alternates camelCase and
// snake_case records.
func (r renderer) list(v any, envelope string) (any, error) {
	t, err := tree(v)
	if err != nil {
		return nil, err
	}
	items, _ := t.([]any)
	if items == nil {
		items = []any{}
	}
	switch r.spelling {
	case SpellCamel:
		return camelize(items), nil
	case SpellMixed:
		for i := range items {
			items[i] = nestPricing(items[i])
			if i%2 == 0 {
				items[i] = camelize(items[i])
			}
		}
		return map[string]any{envelope: items}, nil
	default:
		return map[string]any{"data": items}, nil
	}
}

// issues renders a pricing validation verdict.
func (r renderer) issues(issues []string) any {
	if issues == nil {
		issues = []string{}
	}
	valid := len(issues) == 0
	switch r.spelling {
	case SpellCamel:
		return map[string]any{"isValid": valid, "errors": issues}
	case SpellMixed:
		return issues
	default:
		return map[string]any{"valid": valid, "errors": issues}
	}
}

// bareStatus reports whether status changes answer without a plan.
func (r renderer) bareStatus() bool {
	return r.spelling == SpellMixed
}
