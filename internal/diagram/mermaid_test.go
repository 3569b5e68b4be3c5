package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelkit/easel/pkg/schema"
)

func TestRenderMermaidLinear(t *testing.T) {
	model := Build(linearCanvas(), "Support Flow")

	output := RenderMermaid(model)

	// Must start with graph TD; title rides along as a comment.
	assert.True(t, strings.HasPrefix(output, "graph TD\n"))
	assert.Contains(t, output, "%% Support Flow")

	// Agent nodes use square brackets, start/end use double parens.
	assert.Contains(t, output, `classify["Classify Ticket"]`)
	assert.Contains(t, output, `respond["respond"]`)
	assert.Contains(t, output, "start((")
	assert.Contains(t, output, "done((")

	// Edges present.
	assert.Contains(t, output, "start --> classify")
	assert.Contains(t, output, "respond --> done")
}

func TestRenderMermaidBranch(t *testing.T) {
	model := Build(branchCanvas(), "")

	output := RenderMermaid(model)

	// Condition node uses diamond shape.
	assert.Contains(t, output, "route{")

	// Branch conditions become edge labels.
	assert.Contains(t, output, "route -->|refund| refund")
	assert.Contains(t, output, "route -->|general| general")
}

func TestRenderMermaidDisabled(t *testing.T) {
	model := Build(branchCanvas(), "")

	output := RenderMermaid(model)

	// Disabled nodes pick up the dashed class.
	assert.Contains(t, output, "classDef disabled")
	assert.Contains(t, output, "class general disabled")
	assert.NotContains(t, output, "class refund disabled")
}

func TestRenderMermaidZones(t *testing.T) {
	model := Build(zoneCanvas(), "")

	output := RenderMermaid(model)

	assert.Contains(t, output, `subgraph zone_1["Retry Loop"]`)
	assert.Contains(t, output, "end\n")

	// Zone members render inside the subgraph, not twice.
	assert.Equal(t, 1, strings.Count(output, `classify["Classify Ticket"]`))
}

func TestRenderMermaidShapes(t *testing.T) {
	g := schema.Graph{
		Nodes: []schema.Node{
			{Slug: "hold", Kind: schema.KindWait, IsEnabled: true},
			{Slug: "fan", Kind: schema.KindParallelSplit, IsEnabled: true},
			{Slug: "check", Kind: schema.KindGuardrail, IsEnabled: true},
			{Slug: "memo", Kind: schema.KindNote, IsEnabled: true},
		},
	}
	output := RenderMermaid(Build(g, ""))

	assert.Contains(t, output, "hold([")
	assert.Contains(t, output, "fan[[")
	assert.Contains(t, output, "check{{")
	assert.Contains(t, output, "memo>")
}

func TestRenderMermaidMultilineLabel(t *testing.T) {
	g := schema.Graph{
		Nodes: []schema.Node{
			{Slug: "memo", Kind: schema.KindNote, DisplayName: "first line\nsecond line", IsEnabled: true},
		},
	}
	output := RenderMermaid(Build(g, ""))

	assert.Contains(t, output, "first line")
	assert.NotContains(t, output, "second line")
}

func TestMermaidSafeID(t *testing.T) {
	assert.Equal(t, "a_b_c", mermaidSafeID("a.b.c"))
	assert.Equal(t, "my_step", mermaidSafeID("my-step"))
	assert.Equal(t, "simple", mermaidSafeID("simple"))
}

func TestRenderMermaidEmptyModel(t *testing.T) {
	output := RenderMermaid(Build(schema.Graph{}, ""))
	require.Equal(t, "graph TD\n", output)
}
