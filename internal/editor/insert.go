package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/internal/params"
	"github.com/easelkit/easel/pkg/schema"
)

// Insert failure reasons.
const (
	ReasonNothingToInsert = "nothing_to_insert"
	ReasonError           = "error"
)

// InsertOptions tunes bulk insertion. A nil TargetCenter lets the editor
// infer one from the canvas host; when no canvas is known either, incoming
// positions stay where they are.
type InsertOptions struct {
	TargetCenter *schema.Position
}

// InsertResult reports what a bulk insertion did. Success false carries a
// reason instead of an error: insertion never propagates exceptions past
// this boundary.
type InsertResult struct {
	Success       bool     `json:"success"`
	Reason        string   `json:"reason,omitempty"`
	InsertedNodes []string `json:"inserted_nodes,omitempty"`
	InsertedEdges []string `json:"inserted_edges,omitempty"`
}

// InsertGraphElements merges an incoming graph into the draft: the shared
// implementation behind paste, duplicate, and file import.
//
// Per candidate node: unknown kinds are dropped; a second start is dropped
// silently; the slug is made collision-free against existing slugs,
// existing ids, and ids already allocated in this batch; parameters are
// resolved under the original incoming slug (presets are slug-keyed) and
// stored under the new one. All incoming positions are then translated so
// their bounding-box center lands on the target point. Edges are remapped
// to the new slugs and given collision-free ids; edges referencing a
// dropped node are dropped. Repeat zones are remapped, translated, and
// re-identified the same way. One commit, then the inserted set becomes
// the selection with the first inserted node as primary.
func (ed *Editor) InsertGraphElements(ctx context.Context, incoming schema.Graph, opts InsertOptions) (result InsertResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogWith(ctx, ed.logger).Error("insert panicked", slog.Any("panic", r))
			result = InsertResult{Success: false, Reason: ReasonError}
		}
	}()

	ed.mu.Lock()
	defer ed.mu.Unlock()

	snap := ed.store.Snapshot()

	used := make(map[string]bool, len(snap.Nodes)+len(snap.Edges)+len(snap.RepeatZones))
	for _, n := range snap.Nodes {
		used[n.Slug] = true
	}
	for _, e := range snap.Edges {
		used[e.ID] = true
	}
	for _, z := range snap.RepeatZones {
		used[z.ID] = true
	}
	hasStart := false
	for _, n := range snap.Nodes {
		if n.Kind == schema.KindStart {
			hasStart = true
			break
		}
	}

	slugMap := make(map[string]string, len(incoming.Nodes))
	var accepted []schema.Node
	for _, candidate := range incoming.Nodes {
		if !schema.KnownKind(candidate.Kind) {
			logging.LogWith(ctx, ed.logger).Warn("dropping node of unknown kind",
				slog.String("slug", candidate.Slug), slog.String("kind", string(candidate.Kind)))
			continue
		}
		if candidate.Kind == schema.KindStart {
			if hasStart {
				continue
			}
			hasStart = true
		}

		newSlug := uniqueID(candidate.Slug, used)
		used[newSlug] = true
		slugMap[candidate.Slug] = newSlug

		node := candidate.Clone()
		node.Slug = newSlug
		node.Selected = false
		// Defaults are keyed by the slug the node arrived with, not the
		// rewritten one.
		node.Parameters = params.Resolve(candidate.Kind, candidate.Slug, candidate.AgentKey, candidate.Parameters)
		accepted = append(accepted, node)
	}

	if len(accepted) == 0 {
		return InsertResult{Success: false, Reason: ReasonNothingToInsert}
	}

	delta, hasDelta := ed.translationDelta(accepted, opts.TargetCenter)
	if hasDelta {
		for i := range accepted {
			if pos, ok := accepted[i].Position(); ok {
				accepted[i].SetPosition(schema.Position{X: pos.X + delta.X, Y: pos.Y + delta.Y})
			}
		}
	}

	var newEdges []schema.Edge
	for _, candidate := range incoming.Edges {
		source, okSrc := slugMap[candidate.Source]
		target, okTgt := slugMap[candidate.Target]
		if !okSrc || !okTgt {
			continue
		}
		edge := candidate.Clone()
		edge.Source = source
		edge.Target = target
		edge.Selected = false
		edge.ID = uniqueID(fmt.Sprintf("edge_%s_%s", source, target), used)
		used[edge.ID] = true
		newEdges = append(newEdges, edge)
	}

	var newZones []schema.RepeatZone
	for _, candidate := range incoming.RepeatZones {
		var slugs []string
		for _, s := range candidate.NodeSlugs {
			if mapped, ok := slugMap[s]; ok {
				slugs = append(slugs, mapped)
			}
		}
		if len(slugs) == 0 {
			continue
		}
		zone := candidate.Clone()
		zone.NodeSlugs = slugs
		zone.ID = uniqueID(candidate.ID, used)
		used[zone.ID] = true
		if hasDelta {
			zone.Bounds.X += delta.X
			zone.Bounds.Y += delta.Y
		}
		newZones = append(newZones, zone)
	}

	next := snap
	next.Nodes = append(next.Nodes, accepted...)
	next.Edges = append(next.Edges, newEdges...)
	next.RepeatZones = append(next.RepeatZones, newZones...)

	if err := ed.store.Commit(next); err != nil {
		logging.LogWith(ctx, ed.logger).Error("insert commit rejected", slog.String("error", err.Error()))
		return InsertResult{Success: false, Reason: ReasonError}
	}

	insertedNodes := make([]string, len(accepted))
	for i, n := range accepted {
		insertedNodes[i] = n.Slug
	}
	insertedEdges := make([]string, len(newEdges))
	for i, e := range newEdges {
		insertedEdges[i] = e.ID
	}

	ed.sel = Selection{NodeIDs: insertedNodes, EdgeIDs: insertedEdges, Primary: insertedNodes[0]}
	ed.publishCommit(ctx, "insert")
	ed.publishSelection(ctx)

	return InsertResult{
		Success:       true,
		InsertedNodes: insertedNodes,
		InsertedEdges: insertedEdges,
	}
}

// AddNode creates a single node of the given kind through the bulk
// insertion path, so factories and paste share slug allocation and
// parameter resolution.
func (ed *Editor) AddNode(ctx context.Context, kind schema.NodeKind, at *schema.Position) (schema.Node, error) {
	if !schema.KnownKind(kind) {
		return schema.Node{}, schema.NewErrorf(schema.ErrCodeInvalidNode, "unknown node kind %q", kind)
	}

	seed := schema.Node{Slug: string(kind), Kind: kind, IsEnabled: true}
	if at != nil {
		seed.SetPosition(*at)
	}

	opts := InsertOptions{}
	if at != nil {
		opts.TargetCenter = at
	}
	result := ed.InsertGraphElements(ctx, schema.Graph{Nodes: []schema.Node{seed}}, opts)
	if !result.Success {
		if result.Reason == ReasonNothingToInsert {
			return schema.Node{}, schema.NewErrorf(schema.ErrCodeConflict, "a start step already exists")
		}
		return schema.Node{}, schema.NewError(schema.ErrCodeStore, "node could not be inserted")
	}

	node, _ := ed.store.NodeBySlug(result.InsertedNodes[0])
	return node, nil
}

// ConnectNodes creates an edge between two existing nodes.
func (ed *Editor) ConnectNodes(ctx context.Context, source, target, condition string) (schema.Edge, error) {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	snap := ed.store.Snapshot()
	used := make(map[string]bool, len(snap.Nodes)+len(snap.Edges))
	exists := make(map[string]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		exists[n.Slug] = true
		used[n.Slug] = true
	}
	for _, e := range snap.Edges {
		used[e.ID] = true
	}
	if !exists[source] {
		return schema.Edge{}, schema.NewErrorf(schema.ErrCodeNotFound, "source node %q does not exist", source)
	}
	if !exists[target] {
		return schema.Edge{}, schema.NewErrorf(schema.ErrCodeNotFound, "target node %q does not exist", target)
	}

	edge := schema.Edge{
		ID:        uniqueID(fmt.Sprintf("edge_%s_%s", source, target), used),
		Source:    source,
		Target:    target,
		Condition: condition,
	}
	snap.Edges = append(snap.Edges, edge)
	if err := ed.store.Commit(snap); err != nil {
		return schema.Edge{}, err
	}
	ed.publishCommit(ctx, "connect")
	return edge, nil
}

// translationDelta computes how far incoming positions must shift so their
// bounding-box center lands on the target. Returns false when there is
// nothing to move or no target can be determined; positions then stay put.
// Caller holds ed.mu.
func (ed *Editor) translationDelta(nodes []schema.Node, explicit *schema.Position) (schema.Position, bool) {
	center, ok := boundingCenter(nodes)
	if !ok {
		return schema.Position{}, false
	}

	target := explicit
	if target == nil {
		target = ed.inferTargetCenter()
	}
	if target == nil {
		return schema.Position{}, false
	}
	return schema.Position{X: target.X - center.X, Y: target.Y - center.Y}, true
}

// inferTargetCenter asks the canvas host where the viewport center sits in
// model space: first through its projection, then through the geometric
// fallback from the last known transform and container size.
func (ed *Editor) inferTargetCenter() *schema.Position {
	if ed.canvas == nil {
		return nil
	}
	w, h, ok := ed.canvas.ContainerSize()
	if !ok {
		return nil
	}
	screenCenter := schema.Position{X: w / 2, Y: h / 2}
	if p, ok := ed.canvas.ProjectToModel(screenCenter); ok {
		return &p
	}
	if x, y, zoom, ok := ed.canvas.ViewportTransform(); ok && zoom > 0 {
		return &schema.Position{X: (w/2 - x) / zoom, Y: (h/2 - y) / zoom}
	}
	return nil
}

// uniqueID returns base when free, else base_2, base_3, ... checked
// against everything in used.
func uniqueID(base string, used map[string]bool) string {
	if !used[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if !used[candidate] {
			return candidate
		}
	}
}
