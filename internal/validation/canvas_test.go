package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelkit/easel/pkg/schema"
)

func validDraft() schema.WorkflowImport {
	return schema.WorkflowImport{
		Slug: "triage",
		Graph: schema.Graph{
			Nodes: []schema.Node{
				node("start", schema.KindStart),
				{
					Slug: "route", Kind: schema.KindCondition, IsEnabled: true,
					Parameters: map[string]any{"language": "cel", "expression": `state.intent == "refund"`},
				},
				node("refund", schema.KindAgent),
				node("general", schema.KindAgent),
			},
			Edges: []schema.Edge{
				edge("start", "route", ""),
				edge("route", "refund", "refund"),
				edge("route", "general", ""),
			},
		},
	}
}

// --- Pipeline ---

func TestCanvasValidator_ValidDraft(t *testing.T) {
	cv, err := NewCanvasValidator()
	require.NoError(t, err)

	result := cv.Validate(validDraft())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestCanvasValidator_UnknownKindFailsDocumentStage(t *testing.T) {
	cv, err := NewCanvasValidator()
	require.NoError(t, err)

	doc := validDraft()
	doc.Graph.Nodes = append(doc.Graph.Nodes, schema.Node{
		Slug: "mystery", Kind: "hologram", IsEnabled: true,
	})

	result := cv.Validate(doc)
	require.False(t, result.Valid())
	assert.Equal(t, schema.ErrCodeValidation, result.Errors[0].Code)
}

func TestCanvasValidator_StructureViolationSkipsLint(t *testing.T) {
	cv, err := NewCanvasValidator()
	require.NoError(t, err)

	doc := validDraft()
	// Break structure and plant a lint error behind it.
	doc.Graph.Edges = doc.Graph.Edges[:2]
	doc.Graph.Nodes[1].Parameters["expression"] = `state.intent ==`

	result := cv.Validate(doc)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, IssueConditionTooFewBranches, result.Errors[0].Code)
}

// --- Expression lint ---

func TestCanvasValidator_BadConditionExpression(t *testing.T) {
	cv, err := NewCanvasValidator()
	require.NoError(t, err)

	doc := validDraft()
	doc.Graph.Nodes[1].Parameters["expression"] = `state.intent ==`

	result := cv.Validate(doc)
	require.False(t, result.Valid())
	assert.Equal(t, schema.ErrCodeExpression, result.Errors[0].Code)
	assert.Equal(t, "nodes/route", result.Errors[0].Path)
}

func TestCanvasValidator_BadTransformQuery(t *testing.T) {
	cv, err := NewCanvasValidator()
	require.NoError(t, err)

	doc := validDraft()
	doc.Graph.Nodes = append(doc.Graph.Nodes, schema.Node{
		Slug: "reshape", Kind: schema.KindTransform, IsEnabled: true,
		Parameters: map[string]any{"language": "jq", "query": ".[unbalanced"},
	})

	result := cv.Validate(doc)
	require.False(t, result.Valid())
	assert.Equal(t, "nodes/reshape", result.Errors[0].Path)
}

func TestCanvasValidator_UnconfiguredWidgetIsWarning(t *testing.T) {
	cv, err := NewCanvasValidator()
	require.NoError(t, err)

	doc := validDraft()
	doc.Graph.Nodes = append(doc.Graph.Nodes, schema.Node{
		Slug: "cart_widget", Kind: schema.KindWidget, IsEnabled: true,
		Parameters: map[string]any{"source": "variable", "variable_expression": "", "source_override": "variable"},
	})

	result := cv.Validate(doc)
	assert.True(t, result.Valid(), "warning must not block save")
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "nodes/cart_widget", result.Warnings[0].Path)
}

func TestCanvasValidator_DisabledNodeSkipsLint(t *testing.T) {
	cv, err := NewCanvasValidator()
	require.NoError(t, err)

	doc := validDraft()
	doc.Graph.Nodes = append(doc.Graph.Nodes, schema.Node{
		Slug: "dormant", Kind: schema.KindTransform, IsEnabled: false,
		Parameters: map[string]any{"query": ".[unbalanced"},
	})

	result := cv.Validate(doc)
	assert.True(t, result.Valid())
}
