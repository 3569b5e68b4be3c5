// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/easelkit/easel/internal/diagram"
	"github.com/easelkit/easel/pkg/schema"
)

func main() {
	// Branching canvas: start → intake → route(condition) → two branches →
	// approval → done, with a repeat zone around the refund path.
	g := schema.Graph{
		Nodes: []schema.Node{
			node("start", schema.KindStart, "Start", 0, 120),
			node("intake", schema.KindAgent, "Intake Agent", 180, 120),
			node("route", schema.KindCondition, "Route Request", 360, 120),
			node("refund", schema.KindAgent, "Refund Agent", 540, 40),
			node("check_policy", schema.KindFileSearch, "Check Policy", 720, 40),
			node("general", schema.KindAgent, "General Agent", 540, 200),
			node("approval", schema.KindUserApproval, "Human Approval", 900, 120),
			node("done", schema.KindEnd, "Done", 1080, 120),
		},
		Edges: []schema.Edge{
			{Source: "start", Target: "intake"},
			{Source: "intake", Target: "route"},
			{Source: "route", Target: "refund", Condition: "refund"},
			{Source: "route", Target: "general", Condition: "general"},
			{Source: "refund", Target: "check_policy"},
			{Source: "check_policy", Target: "approval"},
			{Source: "general", Target: "approval"},
			{Source: "approval", Target: "done"},
		},
		RepeatZones: []schema.RepeatZone{
			{
				ID:        "zone-refund",
				Label:     "Refund Loop",
				Bounds:    schema.Bounds{X: 500, Y: 0, Width: 320, Height: 120},
				NodeSlugs: []string{"refund", "check_policy"},
			},
		},
	}

	model := diagram.Build(g, "Support Triage")

	outDir := filepath.Join("docs", "assets")
	os.MkdirAll(outDir, 0o755)

	ascii := diagram.RenderASCII(model)
	os.WriteFile(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii), 0o644)
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	mermaid := diagram.RenderMermaid(model)
	os.WriteFile(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644)
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	dot := diagram.RenderDOT(model)
	os.WriteFile(filepath.Join(outDir, "diagram.dot"), []byte(dot), 0o644)
	fmt.Println("=== DOT ===")
	fmt.Println(dot)

	png, err := diagram.RenderImage(model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", err)
	} else {
		pngPath := filepath.Join(outDir, "diagram-sample.png")
		os.WriteFile(pngPath, png, 0o644)
		fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
	}
}

func node(slug string, kind schema.NodeKind, name string, x, y float64) schema.Node {
	n := schema.Node{Slug: slug, Kind: kind, DisplayName: name, IsEnabled: true}
	n.SetPosition(schema.Position{X: x, Y: y})
	return n
}
