package validation

import (
	"strings"

	"github.com/easelkit/easel/internal/expressions"
	"github.com/easelkit/easel/pkg/schema"
)

// lintExpressions compiles every expression carried in enabled node
// parameters: condition guards and state updates under CEL, transform
// queries under jq, widget bindings under expr. Compile failures are
// errors; an unconfigured widget variable source is only a warning since
// the canvas keeps such nodes editable.
func lintExpressions(g schema.Graph, cel, jq, ex expressions.Engine) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	for _, n := range g.Nodes {
		if !n.IsEnabled {
			continue
		}
		switch n.Kind {
		case schema.KindCondition:
			lintField(result, cel, n.Slug, n.Parameters, "expression")

		case schema.KindStateUpdate:
			updates, _ := n.Parameters["updates"].([]any)
			for _, u := range updates {
				entry, ok := u.(map[string]any)
				if !ok {
					continue
				}
				lintField(result, cel, n.Slug, entry, "expression")
			}

		case schema.KindTransform:
			lintField(result, jq, n.Slug, n.Parameters, "query")

		case schema.KindWidget:
			source, _ := n.Parameters["source"].(string)
			if source != "variable" {
				continue
			}
			binding, _ := n.Parameters["variable_expression"].(string)
			if strings.TrimSpace(binding) == "" {
				result.AddWarning("nodes/"+n.Slug, schema.ErrCodeExpression,
					"widget variable source is selected but no expression is configured")
				continue
			}
			lintField(result, ex, n.Slug, n.Parameters, "variable_expression")

		case schema.KindVectorStoreIngest:
			for _, field := range []string{"file_id_expression", "attributes_expression", "metadata_expression"} {
				lintField(result, cel, n.Slug, n.Parameters, field)
			}
		}
	}
	return result
}

// lintField compiles bag[field] under eng when it is a non-empty string.
func lintField(result *schema.ValidationResult, eng expressions.Engine, slug string, bag map[string]any, field string) {
	raw, _ := bag[field].(string)
	if strings.TrimSpace(raw) == "" {
		return
	}
	if err := eng.Check(raw); err != nil {
		result.AddNodeError(slug, schema.ErrCodeExpression, err.Error())
	}
}
