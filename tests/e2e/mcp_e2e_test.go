package e2e

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelkit/easel/internal/editor"
	"github.com/easelkit/easel/internal/store"
	"github.com/easelkit/easel/internal/validation"
	easelmcp "github.com/easelkit/easel/pkg/mcp"
	"github.com/easelkit/easel/pkg/schema"
)

// --- Test infrastructure ---

// testEnv holds real dependencies behind the MCP surface.
type testEnv struct {
	store   *store.LibSQLStore
	editLog *store.EditLog
	manager *editor.Manager
	server  *easelmcp.EaselServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "e2e.db")
	s, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})

	el := store.NewEditLog(s)
	validator, err := validation.NewCanvasValidator()
	require.NoError(t, err)
	mgr := editor.NewManager(editor.ManagerConfig{
		Store:     s,
		EditLog:   el,
		Validator: validator,
		Logger:    slog.Default(),
	})

	srv := easelmcp.NewEaselServer(easelmcp.EaselServerDeps{
		Manager: mgr,
		Store:   s,
		EditLog: el,
		Logger:  slog.Default(),
	})

	return &testEnv{store: s, editLog: el, manager: mgr, server: srv}
}

// rawMessage runs one JSON-RPC message through the MCP server after an
// initialize handshake and returns the raw response.
func (e *testEnv) rawMessage(t *testing.T, msg map[string]any) json.RawMessage {
	t.Helper()
	ctx := context.Background()
	mcpSrv := e.server.MCPServer()

	init := map[string]any{
		"jsonrpc": "2.0", "id": 0, "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "e2e-test", "version": "1.0.0"},
		},
	}
	rawInit, err := json.Marshal(init)
	require.NoError(t, err)
	require.NotNil(t, mcpSrv.HandleMessage(ctx, rawInit))

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	resp := mcpSrv.HandleMessage(ctx, raw)
	require.NotNil(t, resp)

	respBytes, err := json.Marshal(resp)
	require.NoError(t, err)
	return respBytes
}

// callTool invokes a tool through a full JSON-RPC round-trip.
func (e *testEnv) callTool(t *testing.T, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	respBytes := e.rawMessage(t, map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})

	var rpcResp struct {
		Result *mcp.CallToolResult `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))

	if rpcResp.Error != nil {
		t.Fatalf("JSON-RPC error: code=%d, msg=%s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	require.NotNil(t, rpcResp.Result)
	return rpcResp.Result
}

// extractJSON extracts text content from a tool result and parses it as JSON.
func extractJSON(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text := mcp.GetTextFromContent(result.Content[0])
	require.NoError(t, json.Unmarshal([]byte(text), target))
}

// resultText extracts plain text content from a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func (e *testEnv) importExample(t *testing.T, name, agentID string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(examplesDir(), name, "workflow.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	result := e.callTool(t, "easel.import", map[string]any{
		"document": doc,
		"agent_id": agentID,
	})
	require.False(t, result.IsError)

	var out struct {
		DraftID string `json:"draft_id"`
	}
	extractJSON(t, result, &out)
	require.NotEmpty(t, out.DraftID)
	return out.DraftID
}

// --- E2E Tests ---

// TestMCPFullLifecycle drives an entire editing session over JSON-RPC:
// import, bulk insert, select, copy, paste, remove, validate, export, query.
func TestMCPFullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	draftID := env.importExample(t, "support-triage", "agent-alpha")

	// Bulk insert an escalation pair.
	insert := env.callTool(t, "easel.insert", map[string]any{
		"draft_id": draftID,
		"agent_id": "agent-alpha",
		"graph": map[string]any{
			"nodes": []any{
				map[string]any{"slug": "escalate", "kind": "agent", "is_enabled": true,
					"metadata": map[string]any{"position": map[string]any{"x": 900, "y": 40}}},
				map[string]any{"slug": "audit", "kind": "note", "is_enabled": true,
					"metadata": map[string]any{"position": map[string]any{"x": 900, "y": 200}}},
			},
			"edges": []any{
				map[string]any{"source": "escalate", "target": "audit"},
			},
		},
	})
	require.False(t, insert.IsError)
	var inserted struct {
		Success       bool     `json:"success"`
		InsertedNodes []string `json:"inserted_nodes"`
	}
	extractJSON(t, insert, &inserted)
	require.True(t, inserted.Success)
	assert.ElementsMatch(t, []string{"escalate", "audit"}, inserted.InsertedNodes)

	// Select, copy, paste: the pasted copies get fresh slugs.
	sel := env.callTool(t, "easel.select", map[string]any{
		"draft_id":  draftID,
		"selection": map[string]any{"node_ids": []any{"escalate", "audit"}},
	})
	require.False(t, sel.IsError)

	copyRes := env.callTool(t, "easel.copy", map[string]any{
		"draft_id": draftID, "agent_id": "agent-alpha",
	})
	require.False(t, copyRes.IsError)

	paste := env.callTool(t, "easel.paste", map[string]any{
		"draft_id": draftID, "agent_id": "agent-alpha",
	})
	require.False(t, paste.IsError)
	var pasted struct {
		Success       bool     `json:"success"`
		InsertedNodes []string `json:"inserted_nodes"`
	}
	extractJSON(t, paste, &pasted)
	require.True(t, pasted.Success)
	assert.ElementsMatch(t, []string{"escalate_2", "audit_2"}, pasted.InsertedNodes)

	// Remove the pasted copies again.
	remove := env.callTool(t, "easel.remove", map[string]any{
		"draft_id": draftID,
		"agent_id": "agent-alpha",
		"targets":  map[string]any{"node_ids": []any{"escalate_2", "audit_2"}},
	})
	require.False(t, remove.IsError)
	var removed struct {
		RemovedNodes []string `json:"removed_nodes"`
		Changed      bool     `json:"changed"`
	}
	extractJSON(t, remove, &removed)
	require.True(t, removed.Changed)
	assert.ElementsMatch(t, []string{"escalate_2", "audit_2"}, removed.RemovedNodes)

	// The canvas still validates.
	validate := env.callTool(t, "easel.validate", map[string]any{"draft_id": draftID})
	require.False(t, validate.IsError)
	var report schema.ValidationResult
	extractJSON(t, validate, &report)
	assert.Empty(t, report.Errors)

	// Export reflects the surviving insert.
	export := env.callTool(t, "easel.export", map[string]any{"draft_id": draftID})
	require.False(t, export.IsError)
	var doc struct {
		Slug  string `json:"slug"`
		Graph struct {
			Nodes []schema.Node `json:"nodes"`
		} `json:"graph"`
	}
	extractJSON(t, export, &doc)
	assert.Equal(t, "support-triage", doc.Slug)
	assert.Len(t, doc.Graph.Nodes, 9, "7 fixture nodes plus the inserted pair")

	// The edit log captured every mutating call under the acting agent.
	events := env.callTool(t, "easel.query", map[string]any{
		"resource": "events",
		"filter":   map[string]any{"draft_id": draftID, "summary": true},
	})
	require.False(t, events.IsError)
	var sum store.EditSummary
	extractJSON(t, events, &sum)
	assert.Equal(t, int64(4), sum.Total, "import, insert, paste, remove")
	assert.Equal(t, []string{"agent-alpha"}, sum.Actors)
}

func TestToolsListViaJSONRPC(t *testing.T) {
	env := newTestEnv(t)

	respBytes := env.rawMessage(t, map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "tools/list",
	})

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))
	require.Len(t, rpcResp.Result.Tools, 10)

	names := make([]string, 0, len(rpcResp.Result.Tools))
	for _, tool := range rpcResp.Result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, "tool %s has no description", tool.Name)
	}
	for _, want := range []string{
		"easel.import", "easel.export", "easel.insert", "easel.select",
		"easel.copy", "easel.paste", "easel.duplicate", "easel.remove",
		"easel.validate", "easel.query",
	} {
		assert.Contains(t, names, want)
	}
}

func TestQueryFiltersE2E(t *testing.T) {
	env := newTestEnv(t)

	triageID := env.importExample(t, "support-triage", "agent-a")
	env.importExample(t, "content-pipeline", "agent-b")

	// All drafts.
	all := env.callTool(t, "easel.query", map[string]any{"resource": "drafts"})
	var drafts struct {
		Drafts []store.Draft `json:"drafts"`
	}
	extractJSON(t, all, &drafts)
	assert.Len(t, drafts.Drafts, 2)

	// Slug filter narrows to one.
	filtered := env.callTool(t, "easel.query", map[string]any{
		"resource": "drafts",
		"filter":   map[string]any{"slug": "content-pipeline"},
	})
	extractJSON(t, filtered, &drafts)
	require.Len(t, drafts.Drafts, 1)
	assert.Equal(t, "content-pipeline", drafts.Drafts[0].Slug)

	// Versions appear once a snapshot exists.
	_, err := env.manager.SnapshotVersion(context.Background(), triageID, "checkpoint", store.VersionOriginManual)
	require.NoError(t, err)

	versions := env.callTool(t, "easel.query", map[string]any{
		"resource": "versions",
		"filter":   map[string]any{"draft_id": triageID},
	})
	var vout struct {
		Versions []store.Version `json:"versions"`
	}
	extractJSON(t, versions, &vout)
	require.Len(t, vout.Versions, 1)
	assert.Equal(t, "checkpoint", vout.Versions[0].Name)

	// Events with a since cursor skip the import entry.
	events := env.callTool(t, "easel.query", map[string]any{
		"resource": "events",
		"filter":   map[string]any{"draft_id": triageID, "since": 1},
	})
	var eout struct {
		Events []store.EditEvent `json:"events"`
	}
	extractJSON(t, events, &eout)
	assert.Empty(t, eout.Events, "only the import happened so far")
}

func TestMCPErrorHandling(t *testing.T) {
	env := newTestEnv(t)

	// Unknown tool surfaces as a JSON-RPC error.
	respBytes := env.rawMessage(t, map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "tools/call",
		"params": map[string]any{
			"name":      "easel.bogus",
			"arguments": map[string]any{},
		},
	})
	var rpcResp struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))
	require.NotNil(t, rpcResp.Error)

	// Missing required arguments surface as tool errors, not protocol errors.
	missing := env.callTool(t, "easel.import", map[string]any{
		"document": map[string]any{"graph": map[string]any{"nodes": []any{}, "edges": []any{}}},
	})
	assert.True(t, missing.IsError)
	assert.Contains(t, resultText(t, missing), "agent_id")

	// Unknown draft id is a tool error too.
	unknown := env.callTool(t, "easel.export", map[string]any{"draft_id": "no-such-draft"})
	assert.True(t, unknown.IsError)
}

func TestMCPDiagramFormats(t *testing.T) {
	env := newTestEnv(t)
	draftID := env.importExample(t, "support-triage", "agent-a")

	mermaid := env.callTool(t, "easel.export", map[string]any{
		"draft_id": draftID, "format": "mermaid",
	})
	require.False(t, mermaid.IsError)
	text := resultText(t, mermaid)
	assert.Contains(t, text, "graph TD")
	assert.Contains(t, text, "route{")

	dot := env.callTool(t, "easel.export", map[string]any{
		"draft_id": draftID, "format": "dot",
	})
	require.False(t, dot.IsError)
	assert.Contains(t, resultText(t, dot), "digraph canvas")

	ascii := env.callTool(t, "easel.export", map[string]any{
		"draft_id": draftID, "format": "ascii",
	})
	require.False(t, ascii.IsError)
	assert.Contains(t, resultText(t, ascii), "=== Support Triage ===")
}

func TestMCPQueryWithJQ(t *testing.T) {
	env := newTestEnv(t)
	draftID := env.importExample(t, "content-pipeline", "agent-a")

	result := env.callTool(t, "easel.export", map[string]any{
		"draft_id": draftID,
		"query":    "[.graph.nodes[].kind] | unique",
	})
	require.False(t, result.IsError)

	var kinds []string
	extractJSON(t, result, &kinds)
	assert.Contains(t, kinds, "parallel_split")
	assert.Contains(t, kinds, "parallel_join")
	assert.Contains(t, kinds, "guardrail")
}

// TestMCPAttributionAcrossAgents verifies that edits from different MCP
// clients stay attributable in the shared edit history.
func TestMCPAttributionAcrossAgents(t *testing.T) {
	env := newTestEnv(t)
	draftID := env.importExample(t, "support-triage", "agent-one")

	insert := env.callTool(t, "easel.insert", map[string]any{
		"draft_id": draftID,
		"agent_id": "agent-two",
		"graph": map[string]any{
			"nodes": []any{
				map[string]any{"slug": "triage_note", "kind": "note", "is_enabled": true,
					"metadata": map[string]any{"position": map[string]any{"x": 0, "y": 300}}},
			},
			"edges": []any{},
		},
	})
	require.False(t, insert.IsError)

	events, err := env.editLog.Events(context.Background(), draftID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "agent-one", events[0].Actor)
	assert.Equal(t, "import", events[0].Op)
	assert.Equal(t, "agent-two", events[1].Actor)
	assert.Equal(t, "insert", events[1].Op)

	sum, err := env.editLog.Summarize(context.Background(), draftID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"agent-one", "agent-two"}, sum.Actors)
}

// TestMCPValidationReport confirms a failing canvas comes back as a report
// payload rather than a tool error.
func TestMCPValidationReport(t *testing.T) {
	env := newTestEnv(t)
	draftID := env.importExample(t, "support-triage", "agent-a")

	remove := env.callTool(t, "easel.remove", map[string]any{
		"draft_id": draftID,
		"agent_id": "agent-a",
		"targets":  map[string]any{"node_ids": []any{"refund", "general"}},
	})
	require.False(t, remove.IsError)

	validate := env.callTool(t, "easel.validate", map[string]any{"draft_id": draftID})
	require.False(t, validate.IsError, "validation findings are a report, not a failure")

	var report schema.ValidationResult
	extractJSON(t, validate, &report)
	require.NotEmpty(t, report.Errors)

	found := false
	for _, issue := range report.Errors {
		if strings.Contains(issue.Message, "branch") {
			found = true
		}
	}
	assert.True(t, found, "expected a branching violation, got %+v", report.Errors)
}
