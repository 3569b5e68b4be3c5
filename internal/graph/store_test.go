package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelkit/easel/pkg/schema"
)

func twoNodeGraph() schema.Graph {
	return schema.Graph{
		Nodes: []schema.Node{
			{Slug: "start", Kind: schema.KindStart, IsEnabled: true},
			{Slug: "agent_1", Kind: schema.KindAgent, IsEnabled: true},
		},
		Edges: []schema.Edge{
			{ID: "edge_start_agent_1", Source: "start", Target: "agent_1"},
		},
	}
}

// --- Commit ---

func TestStore_CommitAndSnapshot(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Commit(twoNodeGraph()))

	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	assert.Len(t, snap.Edges, 1)
	assert.Equal(t, uint64(1), s.Revision())
	assert.True(t, s.Dirty())
}

func TestStore_CommitRejectsDuplicateSlug(t *testing.T) {
	g := twoNodeGraph()
	g.Nodes = append(g.Nodes, schema.Node{Slug: "agent_1", Kind: schema.KindAgent})

	s := NewStore()
	err := s.Commit(g)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.ErrorCode(err))

	// Rejected commit leaves the previous graph in place.
	assert.Empty(t, s.Snapshot().Nodes)
	assert.Equal(t, uint64(0), s.Revision())
}

func TestStore_CommitRejectsDuplicateEdgeID(t *testing.T) {
	g := twoNodeGraph()
	g.Edges = append(g.Edges, schema.Edge{ID: "edge_start_agent_1", Source: "agent_1", Target: "start"})

	s := NewStore()
	err := s.Commit(g)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.ErrorCode(err))
}

func TestStore_CommitRejectsEdgeWithoutID(t *testing.T) {
	g := twoNodeGraph()
	g.Edges[0].ID = ""

	err := NewStore().Commit(g)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.ErrorCode(err))
}

// --- Isolation ---

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	g := twoNodeGraph()
	g.Nodes[0].Parameters = map[string]any{"greeting": "hi"}
	require.NoError(t, s.Commit(g))

	snap := s.Snapshot()
	snap.Nodes[0].Slug = "mutated"
	snap.Nodes[0].Parameters["greeting"] = "changed"

	fresh, ok := s.NodeBySlug("start")
	require.True(t, ok)
	assert.Equal(t, "hi", fresh.Parameters["greeting"])
}

func TestStore_CommitCopiesInput(t *testing.T) {
	s := NewStore()
	g := twoNodeGraph()
	require.NoError(t, s.Commit(g))

	g.Nodes[0].Slug = "mutated_after_commit"
	_, ok := s.NodeBySlug("start")
	assert.True(t, ok)
}

// --- Bookkeeping ---

func TestStore_DirtyLifecycle(t *testing.T) {
	s, err := NewStoreFromGraph(twoNodeGraph())
	require.NoError(t, err)
	assert.False(t, s.Dirty(), "seed graph is saved state")

	require.NoError(t, s.Commit(twoNodeGraph()))
	assert.True(t, s.Dirty())

	s.MarkSaved()
	assert.False(t, s.Dirty())
	assert.Equal(t, uint64(2), s.Revision())
}

func TestStore_Lookups(t *testing.T) {
	s, err := NewStoreFromGraph(twoNodeGraph())
	require.NoError(t, err)

	_, ok := s.NodeBySlug("missing")
	assert.False(t, ok)

	edge, ok := s.EdgeByID("edge_start_agent_1")
	require.True(t, ok)
	assert.Equal(t, "start", edge.Source)

	nodes, edges := s.Counts()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
}
