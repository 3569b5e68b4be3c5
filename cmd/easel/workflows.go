package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/easelkit/easel/internal/diagram"
	"github.com/easelkit/easel/internal/expressions"
	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/internal/validation"
	"github.com/easelkit/easel/pkg/schema"
)

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	slug := fs.String("slug", "", "override the document slug")
	name := fs.String("name", "", "override the display name")
	dbPath := fs.String("db-path", "", "database path (overrides config)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: easel import <workflow.json> [--slug s] [--name n]")
		os.Exit(2)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("read %s: %v", fs.Arg(0), err)
	}
	doc, err := schema.ParseWorkflowImport(data)
	if err != nil {
		fatalf("parse %s: %v", fs.Arg(0), err)
	}
	if *slug != "" {
		doc.Slug = *slug
	}
	if *name != "" {
		doc.DisplayName = *name
	}

	cfg := loadConfig()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	rt, err := buildRuntime(cfg, newLogger(parseLevel(cfg.LogLevel)))
	if err != nil {
		fatalf("%v", err)
	}
	defer rt.Close()

	// Drafts may be imported with open validation issues; only parse
	// failures block. Issues are reported so the author can fix them
	// in the editor before deploying.
	if result := rt.manager.Validator().Validate(*doc); !result.Valid() {
		printIssues(result)
	}

	ctx := logging.WithActorID(context.Background(), "cli")
	draft, err := rt.manager.CreateDraft(ctx, doc)
	if err != nil {
		fatalf("import: %v", err)
	}
	fmt.Printf("Imported draft %s (slug %q, %d nodes, %d edges)\n",
		draft.ID, draft.Slug, len(doc.Graph.Nodes), len(doc.Graph.Edges))
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "json", "output format: json, mermaid, dot, ascii, png")
	query := fs.String("query", "", "jq filter applied to the exported document (json format only)")
	out := fs.String("o", "", "write output to file instead of stdout")
	dbPath := fs.String("db-path", "", "database path (overrides config)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: easel export <draft-id-or-slug> [--format f] [--query q] [-o file]")
		os.Exit(2)
	}

	cfg := loadConfig()
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	rt, err := buildRuntime(cfg, newLogger(parseLevel(cfg.LogLevel)))
	if err != nil {
		fatalf("%v", err)
	}
	defer rt.Close()

	ctx := logging.WithActorID(context.Background(), "cli")
	draftID, err := resolveDraftRef(ctx, rt, fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	doc, err := rt.manager.ExportDoc(ctx, draftID)
	if err != nil {
		fatalf("export: %v", err)
	}

	title := doc.DisplayName
	if title == "" {
		title = doc.Slug
	}

	var payload []byte
	switch *format {
	case "json":
		payload, err = schema.EncodeWorkflowExport(*doc)
		if err != nil {
			fatalf("encode: %v", err)
		}
		if *query != "" {
			payload, err = applyQuery(ctx, payload, *query)
			if err != nil {
				fatalf("query: %v", err)
			}
		}
	case "mermaid":
		payload = []byte(diagram.RenderMermaid(diagram.Build(doc.Graph, title)))
	case "dot":
		payload = []byte(diagram.RenderDOT(diagram.Build(doc.Graph, title)))
	case "ascii":
		payload = []byte(diagram.RenderASCII(diagram.Build(doc.Graph, title)))
	case "png":
		payload, err = diagram.RenderImage(diagram.Build(doc.Graph, title))
		if err != nil {
			fatalf("render image: %v", err)
		}
	default:
		fatalf("unknown format %q (expected json, mermaid, dot, ascii or png)", *format)
	}

	if *out != "" {
		if err := os.WriteFile(*out, payload, 0o644); err != nil {
			fatalf("write %s: %v", *out, err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", *out, len(payload))
		return
	}
	os.Stdout.Write(payload)
	if n := len(payload); n > 0 && payload[n-1] != '\n' {
		fmt.Println()
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: easel validate <workflow.json>")
		os.Exit(2)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("read %s: %v", fs.Arg(0), err)
	}
	doc, err := schema.ParseWorkflowImport(data)
	if err != nil {
		fatalf("parse %s: %v", fs.Arg(0), err)
	}

	validator, err := validation.NewCanvasValidator()
	if err != nil {
		fatalf("%v", err)
	}
	result := validator.Validate(*doc)
	printIssues(result)
	if !result.Valid() {
		os.Exit(1)
	}
	fmt.Printf("%s: valid (%d nodes, %d edges)\n", fs.Arg(0), len(doc.Graph.Nodes), len(doc.Graph.Edges))
}

// resolveDraftRef accepts either a draft ID or a slug.
func resolveDraftRef(ctx context.Context, rt *runtime, ref string) (string, error) {
	if draft, err := rt.store.GetDraft(ctx, ref); err == nil {
		return draft.ID, nil
	}
	draft, err := rt.store.GetDraftBySlug(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("no draft with id or slug %q", ref)
	}
	return draft.ID, nil
}

func applyQuery(ctx context.Context, payload []byte, query string) ([]byte, error) {
	var input map[string]any
	if err := json.Unmarshal(payload, &input); err != nil {
		return nil, err
	}
	engine := expressions.NewGoJQEngine()
	result, err := engine.Evaluate(ctx, query, input)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(result, "", "  ")
}

func printIssues(result *schema.ValidationResult) {
	for _, issue := range result.Errors {
		fmt.Fprintf(os.Stderr, "error: %s: %s (%s)\n", issue.Path, issue.Message, issue.Code)
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s (%s)\n", issue.Path, issue.Message, issue.Code)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
