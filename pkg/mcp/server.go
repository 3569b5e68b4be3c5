// Package mcp exposes the canvas editor to agents over the Model Context
// Protocol. Tools mirror the panel's HTTP surface: agents import wire
// documents, merge fragments, edit the selection, and read the canvas back
// as JSON or a rendered diagram. Handler failures are reported as tool
// error results, never as Go errors, so a misbehaving agent call cannot
// tear down the session.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/easelkit/easel/internal/editor"
	"github.com/easelkit/easel/internal/expressions"
	"github.com/easelkit/easel/internal/store"
)

// EaselServerDeps holds the dependencies for creating an EaselServer.
type EaselServerDeps struct {
	Manager *editor.Manager
	Store   store.Store
	EditLog *store.EditLog
	Logger  *slog.Logger
}

// EaselServer wraps an MCP server with canvas-editing tool handlers.
type EaselServer struct {
	manager   *editor.Manager
	store     store.Store
	editLog   *store.EditLog
	logger    *slog.Logger
	presence  *PresenceTable
	notifier  AgentNotifier
	mcpServer *server.MCPServer

	jqOnce   sync.Once
	jqEngine *expressions.GoJQEngine
}

// jq returns the shared query engine, creating it on first use.
func (s *EaselServer) jq() *expressions.GoJQEngine {
	s.jqOnce.Do(func() { s.jqEngine = expressions.NewGoJQEngine() })
	return s.jqEngine
}

// NewEaselServer creates a new EaselServer with all 10 tools registered.
func NewEaselServer(deps EaselServerDeps) *EaselServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &EaselServer{
		manager:  deps.Manager,
		store:    deps.Store,
		editLog:  deps.EditLog,
		logger:   logger,
		presence: NewPresenceTable(),
	}

	mcpSrv := server.NewMCPServer(
		"easel",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Easel is a canvas editor for agent workflow graphs. Use easel.import to create a draft from a wire document, easel.insert to merge a graph fragment into a draft, easel.select / easel.copy / easel.paste / easel.duplicate / easel.remove to edit, easel.validate to check deployability, easel.export to read the canvas back (JSON, Mermaid, DOT, ASCII art, or PNG), and easel.query to list drafts, versions, and edit events."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.presence)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *EaselServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *EaselServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 10 registered MCP tools as ServerTool entries.
func (s *EaselServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: importTool(), Handler: s.handleImport},
		{Tool: exportTool(), Handler: s.handleExport},
		{Tool: insertTool(), Handler: s.handleInsert},
		{Tool: selectTool(), Handler: s.handleSelect},
		{Tool: copyTool(), Handler: s.handleCopy},
		{Tool: pasteTool(), Handler: s.handlePaste},
		{Tool: duplicateTool(), Handler: s.handleDuplicate},
		{Tool: removeTool(), Handler: s.handleRemove},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func importTool() mcp.Tool {
	return mcp.NewTool("easel.import",
		mcp.WithDescription("Create an editable draft from a workflow wire document"),
		mcp.WithObject("document", mcp.Required(), mcp.Description("Wire document: graph plus optional slug, display_name, description")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("ID of the importing agent")),
	)
}

func exportTool() mcp.Tool {
	return mcp.NewTool("easel.export",
		mcp.WithDescription("Export a draft canvas as wire JSON, Mermaid flowchart syntax, DOT, ASCII art, or base64-encoded PNG image"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("ID of the draft to export")),
		mcp.WithString("format",
			mcp.Enum("json", "mermaid", "dot", "ascii", "image"),
			mcp.Description("Output format (default: json)"),
		),
		mcp.WithString("query", mcp.Description("jq query applied to the exported document (json format only)")),
	)
}

func insertTool() mcp.Tool {
	return mcp.NewTool("easel.insert",
		mcp.WithDescription("Merge a graph fragment into a draft. Slugs are uniquified, unknown kinds and duplicate starts are dropped, edges are rewired to the renamed nodes"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("ID of the target draft")),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph fragment: nodes, edges, optional repeat_zones")),
		mcp.WithObject("at", mcp.Description("Placement center {x, y}; defaults to the viewport center")),
		mcp.WithString("agent_id", mcp.Description("ID of the editing agent")),
	)
}

func selectTool() mcp.Tool {
	return mcp.NewTool("easel.select",
		mcp.WithDescription("Replace the draft's selection. Unknown IDs are dropped; an empty selection clears it"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("ID of the target draft")),
		mcp.WithObject("selection", mcp.Required(), mcp.Description("Selection set: node_ids, edge_ids, optional primary_node or primary_edge")),
		mcp.WithString("agent_id", mcp.Description("ID of the editing agent")),
	)
}

func copyTool() mcp.Tool {
	return mcp.NewTool("easel.copy",
		mcp.WithDescription("Copy the selected subgraph to the shared clipboard"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("ID of the source draft")),
		mcp.WithString("entire_graph", mcp.Description("Copy the whole canvas regardless of selection (default: false)")),
		mcp.WithString("agent_id", mcp.Description("ID of the editing agent")),
	)
}

func pasteTool() mcp.Tool {
	return mcp.NewTool("easel.paste",
		mcp.WithDescription("Paste the clipboard into a draft, re-centered on the viewport"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("ID of the target draft")),
		mcp.WithString("agent_id", mcp.Description("ID of the editing agent")),
	)
}

func duplicateTool() mcp.Tool {
	return mcp.NewTool("easel.duplicate",
		mcp.WithDescription("Duplicate the selected subgraph in place with a slight offset"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("ID of the target draft")),
		mcp.WithString("agent_id", mcp.Description("ID of the editing agent")),
	)
}

func removeTool() mcp.Tool {
	return mcp.NewTool("easel.remove",
		mcp.WithDescription("Remove nodes and edges from a draft. Start nodes are protected; removal cascades to touching edges. Omit targets to remove the current selection"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("ID of the target draft")),
		mcp.WithObject("targets", mcp.Description("Explicit removal set: node_ids, edge_ids. Defaults to the current selection")),
		mcp.WithString("agent_id", mcp.Description("ID of the editing agent")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("easel.validate",
		mcp.WithDescription("Validate a draft for deployability. Returns structured errors and warnings without mutating the canvas"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("ID of the draft to validate")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("easel.query",
		mcp.WithDescription("Query drafts, versions, edit events, or connected agents"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("drafts", "versions", "events", "agents"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (slug, dirty, limit, draft_id, origin, since, summary)")),
	)
}
