package editor

import "context"

// Selection is the ephemeral editing focus: selected node slugs, selected
// edge ids, and one primary id driving the inspector. The primary, when
// set, always belongs to its corresponding set.
type Selection struct {
	NodeIDs []string `json:"node_ids"`
	EdgeIDs []string `json:"edge_ids"`
	Primary string   `json:"primary,omitempty"`
}

func (s Selection) clone() Selection {
	out := Selection{Primary: s.Primary}
	if s.NodeIDs != nil {
		out.NodeIDs = append([]string(nil), s.NodeIDs...)
	}
	if s.EdgeIDs != nil {
		out.EdgeIDs = append([]string(nil), s.EdgeIDs...)
	}
	return out
}

func (s Selection) equal(other Selection) bool {
	if s.Primary != other.Primary || len(s.NodeIDs) != len(other.NodeIDs) || len(s.EdgeIDs) != len(other.EdgeIDs) {
		return false
	}
	for i := range s.NodeIDs {
		if s.NodeIDs[i] != other.NodeIDs[i] {
			return false
		}
	}
	for i := range s.EdgeIDs {
		if s.EdgeIDs[i] != other.EdgeIDs[i] {
			return false
		}
	}
	return true
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.NodeIDs) == 0 && len(s.EdgeIDs) == 0
}

// Selection returns the current selection.
func (ed *Editor) Selection() Selection {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.sel.clone()
}

// ApplySelection recomputes the selection from a canvas selection-change
// event or an inspector action. Unknown ids are dropped, duplicates
// collapse keeping first occurrence, and a no-op application publishes
// nothing. Returns whether the selection changed.
//
// Primary resolution: a hint that is itself selected wins (node hint over
// edge hint), else the first selected node, else, only when no node is
// selected, the first selected edge.
func (ed *Editor) ApplySelection(ctx context.Context, nodeIDs, edgeIDs []string, primaryNodeHint, primaryEdgeHint string) bool {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	snap := ed.store.Snapshot()
	known := make(map[string]bool, len(snap.Nodes)+len(snap.Edges))
	for _, n := range snap.Nodes {
		known["n:"+n.Slug] = true
	}
	for _, e := range snap.Edges {
		known["e:"+e.ID] = true
	}

	next := Selection{
		NodeIDs: filterIDs(nodeIDs, "n:", known),
		EdgeIDs: filterIDs(edgeIDs, "e:", known),
	}
	next.Primary = resolvePrimary(next, primaryNodeHint, primaryEdgeHint)

	if ed.sel.equal(next) {
		return false
	}
	ed.sel = next
	ed.publishSelection(ctx)
	return true
}

// ClearSelection deselects everything.
func (ed *Editor) ClearSelection(ctx context.Context) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	if ed.sel.Empty() && ed.sel.Primary == "" {
		return
	}
	ed.sel = Selection{}
	ed.publishSelection(ctx)
}

// dropRemoved recomputes the selection after a structural removal,
// excluding the removed ids. Caller holds ed.mu.
func (ed *Editor) dropRemoved(removedNodes, removedEdges map[string]bool) {
	next := Selection{}
	for _, slug := range ed.sel.NodeIDs {
		if !removedNodes[slug] {
			next.NodeIDs = append(next.NodeIDs, slug)
		}
	}
	for _, id := range ed.sel.EdgeIDs {
		if !removedEdges[id] {
			next.EdgeIDs = append(next.EdgeIDs, id)
		}
	}
	// Keep the primary if it survived, otherwise re-resolve.
	hintNode, hintEdge := "", ""
	if ed.sel.Primary != "" {
		hintNode, hintEdge = ed.sel.Primary, ed.sel.Primary
	}
	next.Primary = resolvePrimary(next, hintNode, hintEdge)
	ed.sel = next
}

func resolvePrimary(sel Selection, nodeHint, edgeHint string) string {
	nodeSet := toSet(sel.NodeIDs)
	edgeSet := toSet(sel.EdgeIDs)

	if nodeHint != "" && nodeSet[nodeHint] {
		return nodeHint
	}
	if edgeHint != "" && edgeSet[edgeHint] {
		return edgeHint
	}
	if len(sel.NodeIDs) > 0 {
		return sel.NodeIDs[0]
	}
	if len(sel.EdgeIDs) > 0 {
		return sel.EdgeIDs[0]
	}
	return ""
}

func filterIDs(ids []string, prefix string, known map[string]bool) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] || !known[prefix+id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
