package diagram

import (
	"fmt"
	"strings"

	"github.com/easelkit/easel/pkg/schema"
)

// RenderMermaid renders a Model as a Mermaid flowchart string.
func RenderMermaid(model *Model) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	// Title as comment.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	zoned := make(map[string]bool)
	for _, z := range model.Zones {
		for _, id := range z.NodeIDs {
			zoned[id] = true
		}
	}

	// Render free-standing nodes with shapes based on kind.
	for _, node := range model.Nodes {
		if zoned[node.ID] {
			continue
		}
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	// Repeat zones become subgraphs.
	for _, zone := range model.Zones {
		b.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n", mermaidSafeID(zone.ID), zone.Label))
		for _, id := range zone.NodeIDs {
			if node := findNode(model.Nodes, id); node != nil {
				b.WriteString(fmt.Sprintf("        %s\n", mermaidNodeDef(node)))
			}
		}
		b.WriteString("    end\n")
	}

	// Render edges.
	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}

	// Disabled nodes render dashed and dimmed.
	var disabled []string
	for _, node := range model.Nodes {
		if node.Disabled {
			disabled = append(disabled, mermaidSafeID(node.ID))
		}
	}
	if len(disabled) > 0 {
		b.WriteString("\n")
		b.WriteString("    classDef disabled fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")
		for _, id := range disabled {
			b.WriteString(fmt.Sprintf("    class %s disabled\n", id))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case schema.KindCondition:
		return fmt.Sprintf("%s{%q}", id, label)
	case schema.KindGuardrail:
		return fmt.Sprintf("%s{{%q}}", id, label)
	case schema.KindWait, schema.KindUserApproval:
		return fmt.Sprintf("%s([%q])", id, label)
	case schema.KindParallelSplit, schema.KindParallelJoin:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case schema.KindStart, schema.KindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	case schema.KindNote:
		return fmt.Sprintf("%s>%q]", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// findNode looks up a node by ID in the model's node list.
func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
