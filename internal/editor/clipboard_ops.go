package editor

import (
	"context"
	"strings"

	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/pkg/schema"
)

// CopyOptions tunes what CopySelection serializes.
type CopyOptions struct {
	// EntireGraph copies the whole draft regardless of selection.
	EntireGraph bool
}

// CopySelection serializes the selected subgraph through the codec and
// writes it to the clipboard. The node set is the current selection
// expanded to both endpoints of any selected edge; edges travel only when
// both their endpoints do. Returns false, with a notice, when there is
// nothing to copy or the clipboard is unavailable.
func (ed *Editor) CopySelection(ctx context.Context, opts CopyOptions) bool {
	ed.mu.Lock()
	sub, ok := ed.inducedSelectionLocked(opts.EntireGraph)
	ed.mu.Unlock()
	if !ok {
		ed.notify(ctx, "info", "Nothing selected to copy.")
		return false
	}

	data, err := schema.EncodeGraph(sub)
	if err != nil {
		ed.notify(ctx, "error", "Selection could not be serialized.")
		return false
	}
	if err := ed.clip.Write(ctx, string(data)); err != nil {
		logging.LogWith(ctx, ed.logger).Warn("clipboard write failed", "error", err)
		ed.notify(ctx, "error", "Clipboard is not available.")
		return false
	}
	return true
}

// PasteClipboard reads the clipboard, parses it through the codec, and
// inserts the result at the inferred viewport center. Each failure mode
// gets its own notice; the graph is left untouched on any of them.
func (ed *Editor) PasteClipboard(ctx context.Context) InsertResult {
	text, err := ed.clip.Read(ctx)
	if err != nil {
		logging.LogWith(ctx, ed.logger).Warn("clipboard read failed", "error", err)
		ed.notify(ctx, "error", "Clipboard is not readable.")
		return InsertResult{Success: false, Reason: ReasonError}
	}
	if strings.TrimSpace(text) == "" {
		ed.notify(ctx, "info", "Clipboard is empty.")
		return InsertResult{Success: false, Reason: ReasonNothingToInsert}
	}

	parsed, err := schema.ParseWorkflowImport([]byte(text))
	if err != nil {
		ed.notify(ctx, "error", pasteFailureMessage(err))
		return InsertResult{Success: false, Reason: ReasonError}
	}

	result := ed.InsertGraphElements(ctx, parsed.Graph, InsertOptions{})
	if !result.Success && result.Reason == ReasonNothingToInsert {
		ed.notify(ctx, "info", "Nothing to paste.")
	}
	return result
}

// DuplicateSelection copies the selected subgraph and re-inserts it at a
// fixed offset from the original. The subgraph round-trips through the
// codec, so anything duplicable is also importable and vice versa.
func (ed *Editor) DuplicateSelection(ctx context.Context) InsertResult {
	ed.mu.Lock()
	sub, ok := ed.inducedSelectionLocked(false)
	ed.mu.Unlock()
	if !ok {
		ed.notify(ctx, "info", "Nothing selected to duplicate.")
		return InsertResult{Success: false, Reason: ReasonNothingToInsert}
	}

	data, err := schema.EncodeGraph(sub)
	if err != nil {
		ed.notify(ctx, "error", "Selection could not be serialized.")
		return InsertResult{Success: false, Reason: ReasonError}
	}
	parsed, err := schema.ParseWorkflowImport(data)
	if err != nil {
		ed.notify(ctx, "error", pasteFailureMessage(err))
		return InsertResult{Success: false, Reason: ReasonError}
	}

	opts := InsertOptions{}
	if center, ok := boundingCenter(sub.Nodes); ok {
		opts.TargetCenter = &schema.Position{X: center.X + duplicateOffset, Y: center.Y + duplicateOffset}
	}
	return ed.InsertGraphElements(ctx, parsed.Graph, opts)
}

// inducedSelectionLocked builds the subgraph induced by the selection (or
// the whole graph): selected nodes plus endpoints of selected edges, every
// edge between chosen nodes, and zones intersected with the chosen set.
// Caller holds ed.mu.
func (ed *Editor) inducedSelectionLocked(entireGraph bool) (schema.Graph, bool) {
	snap := ed.store.Snapshot()

	chosen := make(map[string]bool, len(snap.Nodes))
	if entireGraph {
		for _, n := range snap.Nodes {
			chosen[n.Slug] = true
		}
	} else {
		for _, slug := range ed.sel.NodeIDs {
			chosen[slug] = true
		}
		edgeSel := toSet(ed.sel.EdgeIDs)
		for _, e := range snap.Edges {
			if edgeSel[e.ID] {
				chosen[e.Source] = true
				chosen[e.Target] = true
			}
		}
	}
	if len(chosen) == 0 {
		return schema.Graph{}, false
	}

	var sub schema.Graph
	for _, n := range snap.Nodes {
		if !chosen[n.Slug] {
			continue
		}
		node := n.Clone()
		node.Selected = false
		sub.Nodes = append(sub.Nodes, node)
	}
	for _, e := range snap.Edges {
		if !chosen[e.Source] || !chosen[e.Target] {
			continue
		}
		edge := e.Clone()
		edge.Selected = false
		sub.Edges = append(sub.Edges, edge)
	}
	for _, z := range snap.RepeatZones {
		var slugs []string
		for _, s := range z.NodeSlugs {
			if chosen[s] {
				slugs = append(slugs, s)
			}
		}
		if len(slugs) == 0 {
			continue
		}
		zone := z.Clone()
		zone.NodeSlugs = slugs
		sub.RepeatZones = append(sub.RepeatZones, zone)
	}
	if len(sub.Nodes) == 0 {
		return schema.Graph{}, false
	}
	return sub, true
}

// pasteFailureMessage maps codec error codes to user-facing notices.
func pasteFailureMessage(err error) string {
	switch schema.ErrorCode(err) {
	case schema.ErrCodeInvalidJSON:
		return "Clipboard does not contain valid JSON."
	case schema.ErrCodeMissingNodes:
		return "Clipboard graph has no steps."
	case schema.ErrCodeInvalidNode:
		return "Clipboard graph contains a broken step."
	case schema.ErrCodeInvalidEdge:
		return "Clipboard graph contains a broken connection."
	default:
		return "Clipboard does not contain a canvas graph."
	}
}

// boundingCenter returns the bounding-box center of all node positions.
func boundingCenter(nodes []schema.Node) (schema.Position, bool) {
	minX, minY := 0.0, 0.0
	maxX, maxY := 0.0, 0.0
	found := false
	for _, n := range nodes {
		pos, ok := n.Position()
		if !ok {
			continue
		}
		if !found {
			minX, maxX, minY, maxY = pos.X, pos.X, pos.Y, pos.Y
			found = true
			continue
		}
		minX = min(minX, pos.X)
		maxX = max(maxX, pos.X)
		minY = min(minY, pos.Y)
		maxY = max(maxY, pos.Y)
	}
	if !found {
		return schema.Position{}, false
	}
	return schema.Position{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}, true
}
