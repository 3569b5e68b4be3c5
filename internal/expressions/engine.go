// Package expressions hosts the three expression engines used on the
// canvas: CEL for condition guards and state updates, jq for transform
// queries and export filtering, and expr for widget bindings. Engines
// compile lazily and cache compiled programs, so linting a draft and later
// evaluating the same expression pays for one compile.
package expressions

import "context"

// Engine compiles and evaluates one expression language.
type Engine interface {
	Name() string

	// Check compiles the expression without evaluating it. Used by the
	// validation pipeline to lint node parameters before save/deploy.
	Check(expression string) error

	// Evaluate compiles (or fetches the cached program for) the expression
	// and runs it against data.
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Canvas expression scope: every engine exposes the same three top-level
// variables so an expression can move between node kinds without rewrites.
//
//	state    - accumulated conversation state keyed by state_update writes
//	input    - the triggering user input (text, attachments, channel)
//	workflow - draft metadata (slug, version, ids)
var scopeKeys = []string{"state", "input", "workflow"}

// scopeFor fills missing scope keys with empty maps so evaluation never
// trips over a nil top-level variable.
func scopeFor(data map[string]any) map[string]any {
	scope := make(map[string]any, len(scopeKeys))
	for _, key := range scopeKeys {
		if v, ok := data[key]; ok && v != nil {
			scope[key] = v
		} else {
			scope[key] = map[string]any{}
		}
	}
	return scope
}
