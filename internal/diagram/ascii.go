package diagram

import (
	"fmt"
	"strings"

	"github.com/easelkit/easel/pkg/schema"
)

// kindTag returns a short ASCII indicator for a node kind.
func kindTag(kind schema.NodeKind) string {
	switch kind {
	case schema.KindStart:
		return "(start)"
	case schema.KindEnd:
		return "(end)"
	case schema.KindCondition:
		return "<cond>"
	case schema.KindGuardrail:
		return "<guard>"
	case schema.KindAgent:
		return "[agent]"
	case schema.KindWait:
		return "[wait]"
	case schema.KindUserApproval:
		return "[approval]"
	case schema.KindParallelSplit:
		return "[split]"
	case schema.KindParallelJoin:
		return "[join]"
	case schema.KindNote:
		return "[note]"
	default:
		return ""
	}
}

// RenderASCII renders a Model as a text-based ASCII diagram.
// It uses a level-based layout with box-drawing characters.
func RenderASCII(model *Model) string {
	var b strings.Builder

	// Title.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	// Render each level.
	for levelIdx, level := range model.Levels {
		// Collect boxes for this level.
		var boxes []asciiBox
		for _, nodeID := range level {
			node := findNode(model.Nodes, nodeID)
			if node == nil {
				continue
			}
			boxes = append(boxes, makeBox(node))
		}

		// Render boxes side-by-side.
		renderBoxRow(&b, boxes)

		// Draw connectors between levels (except after last level).
		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	// Labelled branches.
	var labelled []Edge
	for _, edge := range model.Edges {
		if edge.Label != "" {
			labelled = append(labelled, edge)
		}
	}
	if len(labelled) > 0 {
		b.WriteString("\n--- branches ---\n")
		for _, edge := range labelled {
			b.WriteString(fmt.Sprintf("  %s ─→ %s  (%s)\n", edge.From, edge.To, edge.Label))
		}
	}

	// Repeat zones.
	if len(model.Zones) > 0 {
		b.WriteString("\n--- repeat zones ---\n")
		for _, zone := range model.Zones {
			renderZone(&b, model, zone)
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	// Build content lines.
	var contentLines []string

	contentLines = append(contentLines, firstLine(node.Label))

	tags := kindTag(node.Kind)
	if node.Disabled {
		if tags != "" {
			tags += " "
		}
		tags += "[OFF]"
	}
	if tags != "" {
		contentLines = append(contentLines, tags)
	}

	// Calculate width.
	maxLen := 0
	for _, line := range contentLines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	// Build box lines.
	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len(content))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	// Find max height.
	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	// Render line by line.
	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ") // gap between boxes
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	// Simple center connector.
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

// renderZone renders a repeat zone section.
func renderZone(b *strings.Builder, model *Model, zone Zone) {
	b.WriteString(fmt.Sprintf("  [%s]\n", zone.Label))
	for _, id := range zone.NodeIDs {
		node := findNode(model.Nodes, id)
		if node == nil {
			continue
		}
		tag := kindTag(node.Kind)
		if tag != "" {
			tag = " " + tag
		}
		b.WriteString(fmt.Sprintf("    %s%s\n", firstLine(node.Label), tag))
	}
}
