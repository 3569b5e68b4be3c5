// Package params normalizes node parameter bags per kind. Resolution is
// pure and total: malformed input coerces to the nearest valid empty shape,
// it never fails and never mutates its arguments.
package params

import (
	"fmt"
	"strings"

	"github.com/easelkit/easel/pkg/schema"
)

const (
	sourceLibrary  = "library"
	sourceVariable = "variable"
)

// Optional expression fields on vector store ingestion nodes. Empty ones
// are dropped so the inspector can tell "unset" from "set to blank".
var ingestOptionalExprs = []string{
	"file_id_expression",
	"attributes_expression",
	"metadata_expression",
}

// Resolve produces the normalized parameter bag for a node. Defaults are
// keyed by kind; agent defaults additionally consult the preset table via
// the legacy agent key, falling back to the slug.
func Resolve(kind schema.NodeKind, slug, agentKey string, raw map[string]any) map[string]any {
	overrides := sanitizeBagKeepNulls(raw)

	var resolved map[string]any
	switch {
	case kind == schema.KindAgent:
		resolved = deepMerge(agentDefaults(slug, agentKey), overrides)
	default:
		if defaults, ok := kindDefaults[kind]; ok {
			resolved = deepMerge(defaults, overrides)
		} else {
			resolved = sanitizeBag(raw)
		}
	}

	switch kind {
	case schema.KindVectorStoreIngest:
		resolveIngest(resolved)
	case schema.KindWidget:
		resolveWidget(resolved)
	case schema.KindParallelSplit:
		resolveParallelSplit(resolved)
	}
	return resolved
}

// resolveIngest trims expression fields and drops optional ones left empty.
func resolveIngest(bag map[string]any) {
	if s, ok := bag["vector_store_id"].(string); ok {
		bag["vector_store_id"] = strings.TrimSpace(s)
	}
	for _, field := range ingestOptionalExprs {
		s, ok := bag[field].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			delete(bag, field)
		} else {
			bag[field] = s
		}
	}
}

// resolveWidget normalizes the library/variable source discriminator. A
// variable source without a configured expression keeps a source_override
// marker so the next resolve does not silently revert it to the library
// default; the marker clears once the expression is filled in.
func resolveWidget(bag map[string]any) {
	source, _ := bag["source"].(string)
	override, _ := bag["source_override"].(string)
	expression, _ := bag["variable_expression"].(string)
	expression = strings.TrimSpace(expression)

	if source != sourceLibrary && source != sourceVariable {
		source = sourceLibrary
	}
	if override == sourceVariable {
		source = sourceVariable
	}

	bag["source"] = source
	bag["variable_expression"] = expression
	if source == sourceVariable && expression == "" {
		bag["source_override"] = sourceVariable
	} else {
		delete(bag, "source_override")
	}
}

// resolveParallelSplit always materializes join_slug and a branches list
// sized to the declared branch_count. Existing labels are kept in order,
// missing ones are filled as "branch N".
func resolveParallelSplit(bag map[string]any) {
	joinSlug, _ := bag["join_slug"].(string)
	bag["join_slug"] = strings.TrimSpace(joinSlug)

	count := 2
	if n, ok := toInt(bag["branch_count"]); ok && n >= 2 {
		count = n
	}
	bag["branch_count"] = float64(count)

	existing, _ := bag["branches"].([]any)
	branches := make([]any, count)
	for i := 0; i < count; i++ {
		label := ""
		if i < len(existing) {
			if entry, ok := existing[i].(map[string]any); ok {
				label, _ = entry["label"].(string)
				label = strings.TrimSpace(label)
			}
		}
		if label == "" {
			label = fmt.Sprintf("branch %d", i+1)
		}
		branches[i] = map[string]any{"label": label}
	}
	bag["branches"] = branches
}

// sanitizeBagKeepNulls clones like sanitizeBag but preserves top-level and
// nested nulls, which deepMerge interprets as key deletions.
func sanitizeBagKeepNulls(bag map[string]any) map[string]any {
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		if v == nil {
			out[k] = nil
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			out[k] = sanitizeBagKeepNulls(val)
		default:
			if clean, ok := sanitized(v); ok {
				out[k] = clean
			}
		}
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
