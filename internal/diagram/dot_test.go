package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDOTLinear(t *testing.T) {
	model := Build(linearCanvas(), "Support Flow")

	output := RenderDOT(model)

	assert.True(t, strings.HasPrefix(output, "digraph canvas {\n"))
	assert.True(t, strings.HasSuffix(output, "}\n"))
	assert.Contains(t, output, "rankdir=TB;")
	assert.Contains(t, output, `label="Support Flow";`)

	// Agent nodes are rounded boxes, terminals are circles.
	assert.Contains(t, output, `"classify" [label="Classify Ticket", shape=box, style="rounded"]`)
	assert.Contains(t, output, `"start" [label="start", shape=circle]`)

	assert.Contains(t, output, `"start" -> "classify";`)
	assert.Contains(t, output, `"respond" -> "done";`)
}

func TestRenderDOTBranch(t *testing.T) {
	model := Build(branchCanvas(), "")

	output := RenderDOT(model)

	assert.Contains(t, output, `"route" [label="route", shape=diamond]`)
	assert.Contains(t, output, `"route" -> "refund" [label="refund"];`)
	assert.Contains(t, output, `"route" -> "general" [label="general"];`)
}

func TestRenderDOTDisabled(t *testing.T) {
	model := Build(branchCanvas(), "")

	output := RenderDOT(model)

	assert.Contains(t, output, `"general" [label="general", shape=box, fontcolor=gray, style="rounded,dashed"]`)
}

func TestRenderDOTZones(t *testing.T) {
	model := Build(zoneCanvas(), "")

	output := RenderDOT(model)

	assert.Contains(t, output, "subgraph cluster_0 {")
	assert.Contains(t, output, `label="Retry Loop";`)
	assert.Contains(t, output, "style=dashed;")

	// Zone members render inside the cluster only.
	require.Equal(t, 1, strings.Count(output, `"classify" [`))
}
