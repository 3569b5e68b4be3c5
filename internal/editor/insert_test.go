package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelkit/easel/pkg/schema"
)

// --- Filtering ---

func TestInsert_EmptyGraph(t *testing.T) {
	rig := newTestRig(t, triageSeed())
	result := rig.ed.InsertGraphElements(context.Background(), schema.Graph{}, InsertOptions{})
	assert.False(t, result.Success)
	assert.Equal(t, ReasonNothingToInsert, result.Reason)
	assert.Equal(t, uint64(1), rig.store.Revision(), "no commit on empty insert")
}

func TestInsert_UnknownKindDropped(t *testing.T) {
	rig := newTestRig(t, triageSeed())
	incoming := schema.Graph{
		Nodes: []schema.Node{
			{Slug: "mystery", Kind: "hologram", IsEnabled: true},
			positioned("note_1", schema.KindNote, 0, 0),
		},
	}

	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)
	assert.Equal(t, []string{"note_1"}, result.InsertedNodes)
}

func TestInsert_SecondStartDroppedSilently(t *testing.T) {
	rig := newTestRig(t, triageSeed())
	incoming := schema.Graph{
		Nodes: []schema.Node{
			positioned("start", schema.KindStart, 10, 10),
			positioned("agent_x", schema.KindAgent, 50, 50),
		},
		Edges: []schema.Edge{{Source: "start", Target: "agent_x"}},
	}

	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)
	assert.Equal(t, []string{"agent_x"}, result.InsertedNodes)
	assert.Empty(t, result.InsertedEdges, "edge to the dropped start is dropped")

	starts := 0
	for _, n := range rig.store.Snapshot().Nodes {
		if n.Kind == schema.KindStart {
			starts++
		}
	}
	assert.Equal(t, 1, starts)
}

func TestInsert_OnlyStartIntoGraphWithStart(t *testing.T) {
	rig := newTestRig(t, triageSeed())
	incoming := schema.Graph{Nodes: []schema.Node{positioned("start", schema.KindStart, 0, 0)}}

	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	assert.False(t, result.Success)
	assert.Equal(t, ReasonNothingToInsert, result.Reason)
}

func TestInsert_StartAcceptedWhenAbsent(t *testing.T) {
	rig := newTestRig(t, schema.Graph{})
	incoming := schema.Graph{Nodes: []schema.Node{
		positioned("start", schema.KindStart, 0, 0),
		positioned("start", schema.KindStart, 10, 10),
	}}

	// Codec would reject duplicate slugs; a hand-built batch still keeps
	// only the first start.
	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)
	assert.Equal(t, []string{"start"}, result.InsertedNodes)
}

// --- Slug and edge id allocation ---

func TestInsert_SlugCollisionGetsSuffix(t *testing.T) {
	rig := newTestRig(t, triageSeed())
	incoming := schema.Graph{
		Nodes: []schema.Node{
			positioned("route", schema.KindCondition, 0, 0),
			positioned("refund", schema.KindAgent, 10, 0),
		},
		Edges: []schema.Edge{{Source: "route", Target: "refund", Condition: "again"}},
	}

	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)
	assert.Equal(t, []string{"route_2", "refund_2"}, result.InsertedNodes)

	snap := rig.store.Snapshot()
	assertUniqueIDs(t, snap)

	// The remapped edge connects the fresh copies and keeps its label.
	var remapped *schema.Edge
	for i, e := range snap.Edges {
		if e.Source == "route_2" {
			remapped = &snap.Edges[i]
		}
	}
	require.NotNil(t, remapped)
	assert.Equal(t, "refund_2", remapped.Target)
	assert.Equal(t, "again", remapped.Condition)
}

func TestInsert_BatchInternalCollision(t *testing.T) {
	rig := newTestRig(t, schema.Graph{})
	incoming := schema.Graph{Nodes: []schema.Node{
		{Slug: "step", Kind: schema.KindAgent, IsEnabled: true},
		{Slug: "step", Kind: schema.KindAgent, IsEnabled: true},
		{Slug: "step", Kind: schema.KindAgent, IsEnabled: true},
	}}

	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)
	assert.Equal(t, []string{"step", "step_2", "step_3"}, result.InsertedNodes)
}

func TestInsert_ParallelEdgesGetDistinctIDs(t *testing.T) {
	rig := newTestRig(t, schema.Graph{})
	incoming := schema.Graph{
		Nodes: []schema.Node{
			{Slug: "a", Kind: schema.KindCondition, IsEnabled: true},
			{Slug: "b", Kind: schema.KindAgent, IsEnabled: true},
		},
		Edges: []schema.Edge{
			{Source: "a", Target: "b", Condition: "yes"},
			{Source: "a", Target: "b", Condition: "no"},
		},
	}

	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)
	assert.Equal(t, []string{"edge_a_b", "edge_a_b_2"}, result.InsertedEdges)
	assertUniqueIDs(t, rig.store.Snapshot())
}

// --- Parameter resolution ---

func TestInsert_ParamsResolvedUnderOriginalSlug(t *testing.T) {
	seed := schema.Graph{Nodes: []schema.Node{positioned("classifier", schema.KindAgent, 0, 0)}}
	rig := newTestRig(t, seed)

	// Same slug again: the copy is renamed, but the preset lookup uses the
	// slug the node arrived with.
	incoming := schema.Graph{Nodes: []schema.Node{{Slug: "classifier", Kind: schema.KindAgent, IsEnabled: true}}}
	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)
	require.Equal(t, []string{"classifier_2"}, result.InsertedNodes)

	node, ok := rig.store.NodeBySlug("classifier_2")
	require.True(t, ok)
	assert.Equal(t, float64(0), node.Parameters["temperature"], "classifier preset applied")
}

func TestInsert_SplitParamsMaterialized(t *testing.T) {
	rig := newTestRig(t, schema.Graph{})
	incoming := schema.Graph{Nodes: []schema.Node{
		{Slug: "fan", Kind: schema.KindParallelSplit, IsEnabled: true},
	}}

	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)

	node, ok := rig.store.NodeBySlug("fan")
	require.True(t, ok)
	assert.Contains(t, node.Parameters, "join_slug")
	assert.Len(t, node.Parameters["branches"], 2)
}

// --- Re-centering ---

func TestInsert_ExplicitTargetCenter(t *testing.T) {
	rig := newTestRig(t, schema.Graph{})
	incoming := schema.Graph{Nodes: []schema.Node{
		positioned("a", schema.KindAgent, 0, 0),
		positioned("b", schema.KindAgent, 100, 200),
	}}

	target := schema.Position{X: 300, Y: 300}
	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{TargetCenter: &target})
	require.True(t, result.Success)

	// bbox center was (50,100); delta is (250,200).
	a, _ := rig.store.NodeBySlug("a")
	b, _ := rig.store.NodeBySlug("b")
	posA, _ := a.Position()
	posB, _ := b.Position()
	assert.Equal(t, schema.Position{X: 250, Y: 200}, posA)
	assert.Equal(t, schema.Position{X: 350, Y: 400}, posB)
}

func TestInsert_ViewportCenterInferred(t *testing.T) {
	rig := newTestRig(t, schema.Graph{})
	rig.canvas.SetContainerSize(1000, 800)
	rig.canvas.SetViewport(0, -100, 1)

	incoming := schema.Graph{Nodes: []schema.Node{positioned("solo", schema.KindAgent, 100, 100)}}
	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)

	node, _ := rig.store.NodeBySlug("solo")
	pos, ok := node.Position()
	require.True(t, ok)
	assert.InDelta(t, 500, pos.X, 0.001)
	assert.InDelta(t, 500, pos.Y, 0.001)
}

func TestInsert_GeometricFallbackFromTransform(t *testing.T) {
	rig := newTestRig(t, schema.Graph{})
	// Size known, projection unavailable: transform fallback kicks in.
	canvas := &fallbackCanvas{w: 800, h: 600, x: -200, y: 100, zoom: 2}
	rig.ed.canvas = canvas

	incoming := schema.Graph{Nodes: []schema.Node{positioned("solo", schema.KindAgent, 0, 0)}}
	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)

	node, _ := rig.store.NodeBySlug("solo")
	pos, _ := node.Position()
	// (400 - (-200)) / 2 = 300, (300 - 100) / 2 = 100.
	assert.InDelta(t, 300, pos.X, 0.001)
	assert.InDelta(t, 100, pos.Y, 0.001)
}

func TestInsert_NoCanvasLeavesPositions(t *testing.T) {
	rig := newTestRig(t, schema.Graph{})
	rig.ed.canvas = nil

	incoming := schema.Graph{Nodes: []schema.Node{positioned("solo", schema.KindAgent, 100, 100)}}
	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)

	node, _ := rig.store.NodeBySlug("solo")
	pos, _ := node.Position()
	assert.Equal(t, schema.Position{X: 100, Y: 100}, pos)
}

// fallbackCanvas reports a transform and size but cannot project.
type fallbackCanvas struct {
	w, h, x, y, zoom float64
}

func (c *fallbackCanvas) ProjectToModel(schema.Position) (schema.Position, bool) {
	return schema.Position{}, false
}

func (c *fallbackCanvas) ViewportTransform() (float64, float64, float64, bool) {
	return c.x, c.y, c.zoom, true
}

func (c *fallbackCanvas) ContainerSize() (float64, float64, bool) {
	return c.w, c.h, true
}

// --- Zones ---

func TestInsert_ZonesRemappedAndTranslated(t *testing.T) {
	rig := newTestRig(t, triageSeed())
	incoming := schema.Graph{
		Nodes: []schema.Node{
			positioned("route", schema.KindCondition, 0, 0),
			{Slug: "stray", Kind: "hologram", IsEnabled: true},
		},
		RepeatZones: []schema.RepeatZone{
			{ID: "zone_1", Label: "loop", Bounds: schema.Bounds{X: -20, Y: -20, Width: 100, Height: 100},
				NodeSlugs: []string{"route", "stray"}},
			{ID: "zone_2", NodeSlugs: []string{"stray"}},
		},
	}

	target := schema.Position{X: 500, Y: 500}
	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{TargetCenter: &target})
	require.True(t, result.Success)

	snap := rig.store.Snapshot()
	require.Len(t, snap.RepeatZones, 1, "zone with only dropped members is dropped")
	zone := snap.RepeatZones[0]
	assert.Equal(t, "zone_1", zone.ID)
	assert.Equal(t, []string{"route_2"}, zone.NodeSlugs)
	assert.Equal(t, float64(480), zone.Bounds.X, "bounds follow the translation")
}

// --- Selection after insert ---

func TestInsert_SelectsInsertedSet(t *testing.T) {
	rig := newTestRig(t, triageSeed())
	incoming := schema.Graph{
		Nodes: []schema.Node{
			positioned("a", schema.KindAgent, 0, 0),
			positioned("b", schema.KindAgent, 10, 0),
		},
		Edges: []schema.Edge{{Source: "a", Target: "b"}},
	}

	result := rig.ed.InsertGraphElements(context.Background(), incoming, InsertOptions{})
	require.True(t, result.Success)

	sel := rig.ed.Selection()
	assert.Equal(t, result.InsertedNodes, sel.NodeIDs)
	assert.Equal(t, result.InsertedEdges, sel.EdgeIDs)
	assert.Equal(t, "a", sel.Primary)
}
