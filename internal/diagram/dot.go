package diagram

import (
	"fmt"
	"strings"

	"github.com/easelkit/easel/pkg/schema"
)

// RenderDOT renders a Model as Graphviz DOT source.
func RenderDOT(model *Model) string {
	var b strings.Builder

	b.WriteString("digraph canvas {\n")
	b.WriteString("    rankdir=TB;\n")
	b.WriteString("    node [fontname=\"Helvetica\"];\n")
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    label=%q;\n", model.Title))
		b.WriteString("    labelloc=t;\n")
	}
	b.WriteString("\n")

	zoned := make(map[string]bool)
	for _, z := range model.Zones {
		for _, id := range z.NodeIDs {
			zoned[id] = true
		}
	}

	for _, node := range model.Nodes {
		if zoned[node.ID] {
			continue
		}
		b.WriteString(fmt.Sprintf("    %s;\n", dotNodeDef(node)))
	}

	// Repeat zones render as dashed clusters.
	for i, zone := range model.Zones {
		b.WriteString(fmt.Sprintf("    subgraph cluster_%d {\n", i))
		b.WriteString(fmt.Sprintf("        label=%q;\n", zone.Label))
		b.WriteString("        style=dashed;\n")
		for _, id := range zone.NodeIDs {
			if node := findNode(model.Nodes, id); node != nil {
				b.WriteString(fmt.Sprintf("        %s;\n", dotNodeDef(node)))
			}
		}
		b.WriteString("    }\n")
	}

	b.WriteString("\n")
	for _, edge := range model.Edges {
		if edge.Label != "" {
			b.WriteString(fmt.Sprintf("    %q -> %q [label=%q];\n", edge.From, edge.To, edge.Label))
		} else {
			b.WriteString(fmt.Sprintf("    %q -> %q;\n", edge.From, edge.To))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func dotNodeDef(node *Node) string {
	attrs := []string{fmt.Sprintf("label=%q", firstLine(node.Label))}
	var styles []string

	switch node.Kind {
	case schema.KindCondition, schema.KindGuardrail:
		attrs = append(attrs, "shape=diamond")
	case schema.KindStart, schema.KindEnd:
		attrs = append(attrs, "shape=circle")
	case schema.KindParallelSplit, schema.KindParallelJoin:
		attrs = append(attrs, "shape=box3d")
	case schema.KindNote:
		attrs = append(attrs, "shape=note")
	default:
		attrs = append(attrs, "shape=box")
		styles = append(styles, "rounded")
	}

	if node.Disabled {
		styles = append(styles, "dashed")
		attrs = append(attrs, "fontcolor=gray")
	}
	if len(styles) > 0 {
		attrs = append(attrs, fmt.Sprintf("style=%q", strings.Join(styles, ",")))
	}

	return fmt.Sprintf("%q [%s]", node.ID, strings.Join(attrs, ", "))
}
