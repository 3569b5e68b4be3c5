package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/easelkit/easel/pkg/schema"
)

// RenderImage renders a Model as a PNG image using graphviz.
// Returns the PNG bytes.
func RenderImage(model *Model) ([]byte, error) {
	ctx := context.Background()

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	zoned := make(map[string]bool)
	for _, z := range model.Zones {
		for _, id := range z.NodeIDs {
			zoned[id] = true
		}
	}

	// Create free-standing nodes.
	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		if zoned[node.ID] {
			continue
		}
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	// Repeat zones become dashed subgraph clusters.
	for _, zone := range model.Zones {
		clusterName := "cluster_" + zone.ID
		sub, subErr := graph.CreateSubGraphByName(clusterName)
		if subErr != nil {
			continue
		}
		sub.SetLabel(zone.Label)
		sub.SetStyle(cgraph.DashedGraphStyle)

		for _, id := range zone.NodeIDs {
			node := findNode(model.Nodes, id)
			if node == nil {
				continue
			}
			gvSub, nErr := sub.CreateNodeByName(node.ID)
			if nErr != nil {
				continue
			}
			gvSub.SetLabel(firstLine(node.Label))
			applyNodeStyle(gvSub, node)
			gvNodes[node.ID] = gvSub
		}
	}

	// Create edges.
	for _, edge := range model.Edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV != nil && toGV != nil {
			e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
			if eErr == nil && edge.Label != "" {
				e.SetLabel(edge.Label)
			}
		}
	}

	// Render to PNG.
	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// applyNodeStyle sets graphviz attributes based on node kind and enablement.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	// Shape by kind.
	switch node.Kind {
	case schema.KindCondition, schema.KindGuardrail:
		gvNode.SetShape(cgraph.DiamondShape)
	case schema.KindWait, schema.KindUserApproval:
		gvNode.SetShape(cgraph.EllipseShape)
	case schema.KindParallelSplit, schema.KindParallelJoin:
		gvNode.SetShape(cgraph.HexagonShape)
	case schema.KindStart, schema.KindEnd:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	// Accent color by category.
	switch node.Kind {
	case schema.KindAgent:
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor("#1a5276")
		gvNode.SetFontColor("white")
	case schema.KindStart:
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	case schema.KindEnd:
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	}

	if node.Disabled {
		gvNode.SetStyle(cgraph.DashedNodeStyle)
		gvNode.SetFontColor("#888888")
	}
}
