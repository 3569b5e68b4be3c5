// Package validation checks canvas graphs before save and deploy. The
// structural pass below is the normative gate for branching rules and
// split/join pairing; document and expression stages layer on top of it
// in the CanvasValidator pipeline.
package validation

import (
	"fmt"
	"strings"

	"github.com/easelkit/easel/pkg/schema"
)

// Structure issue codes. Stable identifiers consumed by the panel and MCP
// surfaces to highlight the offending node.
const (
	IssueConditionTooFewBranches = "condition_too_few_branches"
	IssueConditionDuplicateLabel = "condition_duplicate_label"
	IssueSplitTooFewBranches     = "split_too_few_branches"
	IssueSplitJoinMissing        = "split_join_missing"
	IssueSplitJoinConflict       = "split_join_conflict"
	IssueSplitBranchMismatch     = "split_branch_mismatch"
	IssueJoinTooFewInputs        = "join_too_few_inputs"
	IssueJoinUnclaimed           = "join_unclaimed"
)

// StructureIssue is the first structural violation found in a graph. It is
// a value, not an error: callers gate save/deploy on nil.
type StructureIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Slug    string `json:"slug"`
}

func (i *StructureIssue) String() string {
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// CheckGraphStructure runs one deterministic pass over the enabled subgraph
// and returns the first violation, or nil when the graph is structurally
// sound. Disabled nodes, and edges touching them, do not participate.
//
// Order: condition branch rules for every enabled condition node, then
// split rules (fan-out, join resolution, claim conflicts, branch count) for
// every enabled split, then join rules (fan-in, claimed-by-a-split) for
// every enabled join. Nodes are visited in array order throughout.
func CheckGraphStructure(nodes []schema.Node, edges []schema.Edge) *StructureIssue {
	enabled := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.IsEnabled {
			enabled[n.Slug] = true
		}
	}
	kinds := make(map[string]schema.NodeKind, len(nodes))
	for _, n := range nodes {
		kinds[n.Slug] = n.Kind
	}

	for _, n := range nodes {
		if !n.IsEnabled || n.Kind != schema.KindCondition {
			continue
		}
		if issue := checkCondition(n, edges, enabled); issue != nil {
			return issue
		}
	}

	// join slug -> claiming split slug, built while scanning splits.
	claims := make(map[string]string)
	for _, n := range nodes {
		if !n.IsEnabled || n.Kind != schema.KindParallelSplit {
			continue
		}
		if issue := checkSplit(n, edges, enabled, kinds, claims); issue != nil {
			return issue
		}
	}

	for _, n := range nodes {
		if !n.IsEnabled || n.Kind != schema.KindParallelJoin {
			continue
		}
		if issue := checkJoin(n, edges, enabled, claims); issue != nil {
			return issue
		}
	}
	return nil
}

func checkCondition(n schema.Node, edges []schema.Edge, enabled map[string]bool) *StructureIssue {
	outgoing := enabledOutgoing(n.Slug, edges, enabled)
	if len(outgoing) < 2 {
		return &StructureIssue{
			Code: IssueConditionTooFewBranches,
			Message: fmt.Sprintf("condition %q needs at least 2 enabled outgoing branches, found %d",
				n.Slug, len(outgoing)),
			Slug: n.Slug,
		}
	}

	seen := make(map[string]string, len(outgoing))
	for _, e := range outgoing {
		key := normalizeBranchKey(e.Condition)
		if prior, dup := seen[key]; dup {
			return &StructureIssue{
				Code: IssueConditionDuplicateLabel,
				Message: fmt.Sprintf("condition %q has colliding branch labels %q and %q (both normalize to %q)",
					n.Slug, prior, e.Condition, key),
				Slug: n.Slug,
			}
		}
		seen[key] = e.Condition
	}
	return nil
}

func checkSplit(n schema.Node, edges []schema.Edge, enabled map[string]bool, kinds map[string]schema.NodeKind, claims map[string]string) *StructureIssue {
	outgoing := enabledOutgoing(n.Slug, edges, enabled)
	if len(outgoing) < 2 {
		return &StructureIssue{
			Code: IssueSplitTooFewBranches,
			Message: fmt.Sprintf("parallel split %q needs at least 2 enabled outgoing branches, found %d",
				n.Slug, len(outgoing)),
			Slug: n.Slug,
		}
	}

	joinSlug, _ := n.Parameters["join_slug"].(string)
	joinSlug = strings.TrimSpace(joinSlug)
	if joinSlug == "" || !enabled[joinSlug] || kinds[joinSlug] != schema.KindParallelJoin {
		return &StructureIssue{
			Code: IssueSplitJoinMissing,
			Message: fmt.Sprintf("parallel split %q must reference an enabled parallel join, got %q",
				n.Slug, joinSlug),
			Slug: n.Slug,
		}
	}
	if prior, claimed := claims[joinSlug]; claimed && prior != n.Slug {
		return &StructureIssue{
			Code: IssueSplitJoinConflict,
			Message: fmt.Sprintf("parallel join %q is claimed by both %q and %q",
				joinSlug, prior, n.Slug),
			Slug: n.Slug,
		}
	}
	claims[joinSlug] = n.Slug

	declared := declaredBranchCount(n.Parameters)
	if declared != len(outgoing) {
		return &StructureIssue{
			Code: IssueSplitBranchMismatch,
			Message: fmt.Sprintf("parallel split %q declares %d branches but has %d enabled outgoing edges",
				n.Slug, declared, len(outgoing)),
			Slug: n.Slug,
		}
	}
	return nil
}

func checkJoin(n schema.Node, edges []schema.Edge, enabled map[string]bool, claims map[string]string) *StructureIssue {
	incoming := 0
	for _, e := range edges {
		if e.Target == n.Slug && enabled[e.Source] {
			incoming++
		}
	}
	if incoming < 2 {
		return &StructureIssue{
			Code: IssueJoinTooFewInputs,
			Message: fmt.Sprintf("parallel join %q needs at least 2 enabled incoming edges, found %d",
				n.Slug, incoming),
			Slug: n.Slug,
		}
	}
	if _, claimed := claims[n.Slug]; !claimed {
		return &StructureIssue{
			Code:    IssueJoinUnclaimed,
			Message: fmt.Sprintf("parallel join %q is not referenced by any parallel split", n.Slug),
			Slug:    n.Slug,
		}
	}
	return nil
}

func enabledOutgoing(slug string, edges []schema.Edge, enabled map[string]bool) []schema.Edge {
	var out []schema.Edge
	for _, e := range edges {
		if e.Source == slug && enabled[e.Target] {
			out = append(out, e)
		}
	}
	return out
}

// normalizeBranchKey folds a branch label for uniqueness: trim, lowercase,
// empty meaning the default branch.
func normalizeBranchKey(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return "default"
	}
	return key
}

func declaredBranchCount(params map[string]any) int {
	switch n := params["branch_count"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	if branches, ok := params["branches"].([]any); ok {
		return len(branches)
	}
	return 0
}
