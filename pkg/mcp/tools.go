package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/easelkit/easel/internal/diagram"
	"github.com/easelkit/easel/internal/editor"
	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/internal/store"
	"github.com/easelkit/easel/pkg/schema"
)

// handleImport creates an editable draft from a wire document.
func (s *EaselServer) handleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return mcp.NewToolResultError("agent_id is required"), nil
	}
	document := mcp.ParseStringMap(req, "document", nil)
	if document == nil {
		return mcp.NewToolResultError("document is required"), nil
	}

	raw, marshalErr := json.Marshal(document)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode document: %v", marshalErr)), nil
	}
	doc, parseErr := schema.ParseWorkflowImport(raw)
	if parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid document: %v", parseErr)), nil
	}

	ctx = logging.WithOp(logging.WithActorID(ctx, agentID), "import")

	draft, createErr := s.manager.CreateDraft(ctx, doc)
	if createErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create draft: %v", createErr)), nil
	}
	s.captureSession(ctx, agentID, draft.ID)

	return marshalResult(map[string]any{
		"draft_id":     draft.ID,
		"slug":         draft.Slug,
		"display_name": draft.DisplayName,
	})
}

// handleExport reads a draft back as wire JSON or a rendered diagram.
func (s *EaselServer) handleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := req.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError("draft_id is required"), nil
	}
	format := req.GetString("format", "json")

	doc, exportErr := s.manager.ExportDoc(ctx, draftID)
	if exportErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", exportErr)), nil
	}

	title := doc.DisplayName
	if title == "" {
		title = doc.Slug
	}

	switch format {
	case "json":
		data, encErr := schema.EncodeWorkflowExport(*doc)
		if encErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode document: %v", encErr)), nil
		}
		if query := req.GetString("query", ""); query != "" {
			return s.queried(ctx, data, query)
		}
		return mcp.NewToolResultJSON(json.RawMessage(data))
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(diagram.Build(doc.Graph, title))), nil
	case "dot":
		return mcp.NewToolResultText(diagram.RenderDOT(diagram.Build(doc.Graph, title))), nil
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(diagram.Build(doc.Graph, title))), nil
	case "image":
		png, renderErr := diagram.RenderImage(diagram.Build(doc.Graph, title))
		if renderErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", renderErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}
}

// queried runs a jq query over the exported document and returns its result.
func (s *EaselServer) queried(ctx context.Context, data []byte, query string) (*mcp.CallToolResult, error) {
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to decode export: %v", err)), nil
	}
	result, err := s.jq().Evaluate(ctx, query, decoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(result)
}

// handleInsert merges a graph fragment into a draft.
func (s *EaselServer) handleInsert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := req.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError("draft_id is required"), nil
	}
	fragment := mcp.ParseStringMap(req, "graph", nil)
	if fragment == nil {
		return mcp.NewToolResultError("graph is required"), nil
	}

	raw, marshalErr := json.Marshal(fragment)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode graph: %v", marshalErr)), nil
	}
	incoming, parseErr := schema.ParseGraph(raw)
	if parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid graph: %v", parseErr)), nil
	}

	ctx = s.editContext(ctx, req, "insert")
	ed, edErr := s.manager.Editor(ctx, draftID)
	if edErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("draft lookup failed: %v", edErr)), nil
	}

	opts := editor.InsertOptions{}
	if at := mcp.ParseStringMap(req, "at", nil); at != nil {
		opts.TargetCenter = &schema.Position{X: floatFrom(at, "x"), Y: floatFrom(at, "y")}
	}

	result := ed.InsertGraphElements(ctx, incoming, opts)
	if result.Success {
		s.manager.Record(ctx, draftID, "insert", result)
	}
	return marshalResult(result)
}

// handleSelect replaces the draft's selection set.
func (s *EaselServer) handleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := req.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError("draft_id is required"), nil
	}
	selection := mcp.ParseStringMap(req, "selection", nil)
	if selection == nil {
		return mcp.NewToolResultError("selection is required"), nil
	}

	ctx = s.editContext(ctx, req, "select")
	ed, edErr := s.manager.Editor(ctx, draftID)
	if edErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("draft lookup failed: %v", edErr)), nil
	}

	changed := ed.ApplySelection(ctx,
		stringsFrom(selection, "node_ids"),
		stringsFrom(selection, "edge_ids"),
		stringFrom(selection, "primary_node"),
		stringFrom(selection, "primary_edge"),
	)
	return marshalResult(map[string]any{
		"changed":   changed,
		"selection": ed.Selection(),
	})
}

// handleCopy serializes the selection (or the whole canvas) to the shared clipboard.
func (s *EaselServer) handleCopy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := req.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError("draft_id is required"), nil
	}

	ctx = s.editContext(ctx, req, "copy")
	ed, edErr := s.manager.Editor(ctx, draftID)
	if edErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("draft lookup failed: %v", edErr)), nil
	}

	entire := req.GetString("entire_graph", "false") == "true"
	copied := ed.CopySelection(ctx, editor.CopyOptions{EntireGraph: entire})
	if !copied {
		s.notifyAgent(ctx, req, "nothing to copy")
	}
	return marshalResult(map[string]any{"copied": copied})
}

// handlePaste inserts the clipboard contents re-centered on the viewport.
func (s *EaselServer) handlePaste(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := req.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError("draft_id is required"), nil
	}

	ctx = s.editContext(ctx, req, "paste")
	ed, edErr := s.manager.Editor(ctx, draftID)
	if edErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("draft lookup failed: %v", edErr)), nil
	}

	result := ed.PasteClipboard(ctx)
	if result.Success {
		s.manager.Record(ctx, draftID, "paste", result)
	} else if result.Reason != "" {
		s.notifyAgent(ctx, req, result.Reason)
	}
	return marshalResult(result)
}

// handleDuplicate clones the selection in place.
func (s *EaselServer) handleDuplicate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := req.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError("draft_id is required"), nil
	}

	ctx = s.editContext(ctx, req, "duplicate")
	ed, edErr := s.manager.Editor(ctx, draftID)
	if edErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("draft lookup failed: %v", edErr)), nil
	}

	result := ed.DuplicateSelection(ctx)
	if result.Success {
		s.manager.Record(ctx, draftID, "duplicate", result)
	} else if result.Reason != "" {
		s.notifyAgent(ctx, req, result.Reason)
	}
	return marshalResult(result)
}

// handleRemove deletes nodes and edges, falling back to the current selection.
func (s *EaselServer) handleRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := req.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError("draft_id is required"), nil
	}

	ctx = s.editContext(ctx, req, "remove")
	ed, edErr := s.manager.Editor(ctx, draftID)
	if edErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("draft lookup failed: %v", edErr)), nil
	}

	removal := editor.RemovalRequest{}
	if targets := mcp.ParseStringMap(req, "targets", nil); targets != nil {
		removal.NodeIDs = stringsFrom(targets, "node_ids")
		removal.EdgeIDs = stringsFrom(targets, "edge_ids")
	} else {
		sel := ed.Selection()
		removal.NodeIDs = sel.NodeIDs
		removal.EdgeIDs = sel.EdgeIDs
	}

	result := ed.RemoveElements(ctx, removal)
	if result.Changed {
		s.manager.Record(ctx, draftID, "remove", result)
	}
	if len(result.Protected) > 0 {
		s.notifyAgent(ctx, req, "start step cannot be deleted")
	}
	return marshalResult(result)
}

// handleValidate runs the canvas validator without mutating the draft.
func (s *EaselServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := req.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError("draft_id is required"), nil
	}

	result, valErr := s.manager.ValidateDraft(ctx, draftID)
	if valErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation failed: %v", valErr)), nil
	}
	return marshalResult(result)
}

// handleQuery lists drafts, versions, edit events, or connected agents.
func (s *EaselServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "drafts":
		return s.queryDrafts(ctx, filter)
	case "versions":
		return s.queryVersions(ctx, filter)
	case "events":
		return s.queryEvents(ctx, filter)
	case "agents":
		return marshalResult(map[string]any{"agents": s.presence.Connected()})
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Query helpers ---

func (s *EaselServer) queryDrafts(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	df := store.DraftFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if slug, ok := filter["slug"].(string); ok {
		df.Slug = slug
	}
	if dirty, ok := filter["dirty"].(bool); ok {
		df.Dirty = &dirty
	}

	drafts, err := s.store.ListDrafts(ctx, df)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"drafts": drafts})
}

func (s *EaselServer) queryVersions(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	draftID, _ := filter["draft_id"].(string)
	if draftID == "" {
		return mcp.NewToolResultError("version query requires 'draft_id' in filter"), nil
	}

	vf := store.VersionFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if origin, ok := filter["origin"].(string); ok {
		vf.Origin = origin
	}
	if active, ok := filter["active"].(bool); ok {
		vf.Active = &active
	}

	versions, err := s.store.ListVersions(ctx, draftID, vf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"versions": versions})
}

func (s *EaselServer) queryEvents(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	draftID, _ := filter["draft_id"].(string)
	if draftID == "" {
		return mcp.NewToolResultError("event query requires 'draft_id' in filter"), nil
	}

	if summary, _ := filter["summary"].(bool); summary {
		sum, err := s.editLog.Summarize(ctx, draftID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return marshalResult(sum)
	}

	events, err := s.editLog.Events(ctx, draftID, int64(extractInt(filter, "since", 0)))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"events": events})
}

// --- Internal helpers ---

// editContext tags the context with the op and calling agent so edit-log
// entries carry attribution, and captures the agent's session for pushes.
func (s *EaselServer) editContext(ctx context.Context, req mcp.CallToolRequest, op string) context.Context {
	if agentID := req.GetString("agent_id", ""); agentID != "" {
		s.captureSession(ctx, agentID, req.GetString("draft_id", ""))
		ctx = logging.WithActorID(ctx, agentID)
	}
	return logging.WithOp(ctx, op)
}

// notifyAgent forwards a transient notice to the calling agent's session.
// Best-effort: agents without a live session are skipped.
func (s *EaselServer) notifyAgent(ctx context.Context, req mcp.CallToolRequest, message string) {
	agentID := req.GetString("agent_id", "")
	if agentID == "" {
		return
	}
	payload := map[string]any{"level": "info", "message": message}
	if err := s.notifier.Notify(ctx, agentID, payload); err != nil {
		logging.LogWith(ctx, s.logger).Warn("agent notification failed", "agent_id", agentID, "error", err)
	}
}

// captureSession refreshes the agent's presence so notices route to its
// current MCP session and carry the draft it is working on.
func (s *EaselServer) captureSession(ctx context.Context, agentID, draftID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.presence.Touch(agentID, session.SessionID(), draftID)
	}
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	}
	return defaultVal
}

// stringsFrom extracts a string slice from a decoded JSON object.
func stringsFrom(obj map[string]any, key string) []string {
	raw, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// stringFrom extracts a string field, empty when absent.
func stringFrom(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// floatFrom extracts a numeric field, zero when absent.
func floatFrom(obj map[string]any, key string) float64 {
	v, _ := obj[key].(float64)
	return v
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
