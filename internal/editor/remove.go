package editor

import (
	"context"
	"fmt"

	"github.com/easelkit/easel/pkg/schema"
)

// RemovalRequest names the elements to delete.
type RemovalRequest struct {
	NodeIDs []string `json:"node_ids,omitempty"`
	EdgeIDs []string `json:"edge_ids,omitempty"`
}

// RemovalResult reports what RemoveElements actually did.
type RemovalResult struct {
	RemovedNodes []string `json:"removed_nodes,omitempty"`
	RemovedEdges []string `json:"removed_edges,omitempty"`
	Protected    []string `json:"protected,omitempty"`
	Changed      bool     `json:"changed"`
}

// RemoveElements deletes the requested nodes and edges. Start nodes are
// protected: they stay, are reported in Protected, and trigger a notice.
// Deletion cascades to every edge touching a removed node. Zones lose
// removed members; a zone left empty is dropped. The selection is
// recomputed without the removed ids.
func (ed *Editor) RemoveElements(ctx context.Context, req RemovalRequest) RemovalResult {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	snap := ed.store.Snapshot()
	requested := toSet(req.NodeIDs)

	result := RemovalResult{}
	removeNodes := make(map[string]bool)
	for _, n := range snap.Nodes {
		if !requested[n.Slug] {
			continue
		}
		if n.Kind == schema.KindStart {
			result.Protected = append(result.Protected, n.Slug)
			continue
		}
		removeNodes[n.Slug] = true
	}

	requestedEdges := toSet(req.EdgeIDs)
	removeEdges := make(map[string]bool)
	for _, e := range snap.Edges {
		if requestedEdges[e.ID] || removeNodes[e.Source] || removeNodes[e.Target] {
			removeEdges[e.ID] = true
		}
	}

	if len(removeNodes) == 0 && len(removeEdges) == 0 {
		if len(result.Protected) > 0 {
			ed.notify(ctx, "warning", protectionNotice(len(result.Protected)))
		}
		return result
	}

	next := schema.Graph{}
	for _, n := range snap.Nodes {
		if removeNodes[n.Slug] {
			result.RemovedNodes = append(result.RemovedNodes, n.Slug)
			continue
		}
		next.Nodes = append(next.Nodes, n)
	}
	for _, e := range snap.Edges {
		if removeEdges[e.ID] {
			result.RemovedEdges = append(result.RemovedEdges, e.ID)
			continue
		}
		next.Edges = append(next.Edges, e)
	}
	for _, z := range snap.RepeatZones {
		var slugs []string
		for _, s := range z.NodeSlugs {
			if !removeNodes[s] {
				slugs = append(slugs, s)
			}
		}
		if len(slugs) == 0 {
			continue
		}
		z.NodeSlugs = slugs
		next.RepeatZones = append(next.RepeatZones, z)
	}

	if err := ed.store.Commit(next); err != nil {
		// Removal cannot introduce duplicates; treat a rejection as a bug
		// but leave the graph alone.
		ed.notify(ctx, "error", "Deletion could not be applied.")
		return RemovalResult{Protected: result.Protected}
	}
	result.Changed = true

	ed.dropRemoved(removeNodes, removeEdges)
	ed.publishCommit(ctx, "remove")
	ed.publishSelection(ctx)

	if len(result.Protected) > 0 {
		ed.notify(ctx, "warning", protectionNotice(len(result.Protected)))
	}
	return result
}

// DeleteSelection removes the current selection after interactive
// confirmation. No-op when nothing is selected or the user declines.
// Returns whether a mutation occurred.
func (ed *Editor) DeleteSelection(ctx context.Context) bool {
	sel := ed.Selection()
	if sel.Empty() {
		return false
	}

	count := len(sel.NodeIDs) + len(sel.EdgeIDs)
	prompt := "Delete the selected element?"
	if count > 1 {
		prompt = fmt.Sprintf("Delete the %d selected elements?", count)
	}
	if ed.confirm != nil && !ed.confirm.Confirm(ctx, prompt) {
		return false
	}

	result := ed.RemoveElements(ctx, RemovalRequest{NodeIDs: sel.NodeIDs, EdgeIDs: sel.EdgeIDs})
	return result.Changed
}

func protectionNotice(count int) string {
	if count > 1 {
		return "Start steps cannot be deleted."
	}
	return "The start step cannot be deleted."
}
