package diagram

import (
	"github.com/easelkit/easel/pkg/schema"
)

// Build constructs a diagram Model from a canvas graph. Node and edge
// order follow the graph's array order; levels are computed from edge
// topology for the text renderer.
func Build(g schema.Graph, title string) *Model {
	model := &Model{Title: title}

	known := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		model.Nodes = append(model.Nodes, &Node{
			ID:       n.Slug,
			Label:    nodeLabel(n),
			Kind:     n.Kind,
			Disabled: !n.IsEnabled,
		})
		known[n.Slug] = true
	}

	for _, e := range g.Edges {
		// Dangling endpoints render as floating references; skip them.
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		model.Edges = append(model.Edges, Edge{From: e.Source, To: e.Target, Label: e.Condition})
	}

	for _, z := range g.RepeatZones {
		var ids []string
		for _, slug := range z.NodeSlugs {
			if known[slug] {
				ids = append(ids, slug)
			}
		}
		if len(ids) == 0 {
			continue
		}
		label := z.Label
		if label == "" {
			label = z.ID
		}
		model.Zones = append(model.Zones, Zone{ID: z.ID, Label: label, NodeIDs: ids})
	}

	model.Levels = buildLevels(model)
	return model
}

// nodeLabel picks the display name when set, otherwise the slug.
func nodeLabel(n schema.Node) string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	return n.Slug
}

// buildLevels arranges nodes into rows by longest path from the roots.
// Nodes caught in a cycle land together on a trailing row so every node
// appears exactly once.
func buildLevels(model *Model) [][]string {
	if len(model.Nodes) == 0 {
		return nil
	}

	indegree := make(map[string]int, len(model.Nodes))
	outgoing := make(map[string][]string)
	for _, n := range model.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range model.Edges {
		indegree[e.To]++
		outgoing[e.From] = append(outgoing[e.From], e.To)
	}

	depth := make(map[string]int, len(model.Nodes))
	var frontier []string
	for _, n := range model.Nodes {
		if indegree[n.ID] == 0 {
			frontier = append(frontier, n.ID)
			depth[n.ID] = 0
		}
	}

	placed := 0
	maxDepth := 0
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		placed++
		for _, next := range outgoing[id] {
			if d := depth[id] + 1; d > depth[next] {
				depth[next] = d
				if d > maxDepth {
					maxDepth = d
				}
			}
			indegree[next]--
			if indegree[next] == 0 {
				frontier = append(frontier, next)
			}
		}
	}

	levels := make([][]string, maxDepth+1)
	var cyclic []string
	for _, n := range model.Nodes {
		if indegree[n.ID] > 0 {
			cyclic = append(cyclic, n.ID)
			continue
		}
		d := depth[n.ID]
		levels[d] = append(levels[d], n.ID)
	}
	if placed < len(model.Nodes) {
		levels = append(levels, cyclic)
	}

	// Drop empty rows left by nodes that all moved deeper.
	out := levels[:0]
	for _, level := range levels {
		if len(level) > 0 {
			out = append(out, level)
		}
	}
	return out
}
