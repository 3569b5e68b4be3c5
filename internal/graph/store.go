// Package graph holds the canonical in-memory canvas state. The store
// accepts whole-array commits only: a mutation builds the next node, edge,
// and zone arrays off to the side and swaps them in atomically, so no
// reader ever observes a half-applied change.
package graph

import (
	"fmt"
	"sync"

	"github.com/easelkit/easel/pkg/schema"
)

// Store is the single source of truth for the live graph. All access goes
// through deep copies; callers never share backing arrays with the store.
type Store struct {
	mu       sync.RWMutex
	current  schema.Graph
	revision uint64
	dirty    bool
}

// NewStore returns an empty store at revision zero.
func NewStore() *Store {
	return &Store{}
}

// NewStoreFromGraph seeds a store with an initial graph. The seed counts
// as saved state, not as an unsaved edit.
func NewStoreFromGraph(g schema.Graph) (*Store, error) {
	s := NewStore()
	if err := s.Commit(g); err != nil {
		return nil, err
	}
	s.MarkSaved()
	return s, nil
}

// Commit atomically replaces the whole graph. It rejects duplicate node
// slugs, edge ids, and zone ids; on rejection the previous graph stays
// untouched.
func (s *Store) Commit(g schema.Graph) error {
	if err := checkUnique(g); err != nil {
		return err
	}
	next := g.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
	s.revision++
	s.dirty = true
	return nil
}

// Snapshot returns a deep copy of the current graph.
func (s *Store) Snapshot() schema.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// NodeBySlug returns a deep copy of the named node.
func (s *Store) NodeBySlug(slug string) (schema.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.current.Nodes {
		if n.Slug == slug {
			return n.Clone(), true
		}
	}
	return schema.Node{}, false
}

// EdgeByID returns a deep copy of the identified edge.
func (s *Store) EdgeByID(id string) (schema.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.current.Edges {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return schema.Edge{}, false
}

// Counts returns the node and edge counts without copying the graph.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current.Nodes), len(s.current.Edges)
}

// Revision returns the number of commits applied so far.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Dirty reports whether the graph has changed since the last MarkSaved.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkSaved clears the unsaved-changes flag after a successful persist.
func (s *Store) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

func checkUnique(g schema.Graph) error {
	slugs := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := slugs[n.Slug]; dup {
			return schema.NewError(schema.ErrCodeConflict,
				fmt.Sprintf("duplicate node slug %q in commit", n.Slug)).WithSlug(n.Slug)
		}
		slugs[n.Slug] = struct{}{}
	}

	edgeIDs := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if e.ID == "" {
			return schema.NewErrorf(schema.ErrCodeConflict,
				"edge %s -> %s has no id", e.Source, e.Target)
		}
		if _, dup := edgeIDs[e.ID]; dup {
			return schema.NewErrorf(schema.ErrCodeConflict, "duplicate edge id %q in commit", e.ID)
		}
		edgeIDs[e.ID] = struct{}{}
	}

	zoneIDs := make(map[string]struct{}, len(g.RepeatZones))
	for _, z := range g.RepeatZones {
		if _, dup := zoneIDs[z.ID]; dup {
			return schema.NewErrorf(schema.ErrCodeConflict, "duplicate repeat zone id %q in commit", z.ID)
		}
		zoneIDs[z.ID] = struct{}{}
	}
	return nil
}
