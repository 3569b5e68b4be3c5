package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEaselServer(t *testing.T) {
	s := NewEaselServer(EaselServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.presence)
	assert.NotNil(t, s.notifier)
}

func TestToolRegistration(t *testing.T) {
	s := NewEaselServer(EaselServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 10)

	expectedTools := []string{
		"easel.import",
		"easel.export",
		"easel.insert",
		"easel.select",
		"easel.copy",
		"easel.paste",
		"easel.duplicate",
		"easel.remove",
		"easel.validate",
		"easel.query",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"import", "easel.import", "Create an editable draft from a workflow wire document"},
		{"validate", "easel.validate", "Validate a draft for deployability. Returns structured errors and warnings without mutating the canvas"},
		{"query", "easel.query", "Query drafts, versions, edit events, or connected agents"},
	}

	s := NewEaselServer(EaselServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}

func TestQueryAgentsResource(t *testing.T) {
	rig := newTestServer(t)

	// Stdio test calls carry no client session, so seed presence directly.
	rig.srv.presence.Touch("agent-7", "session-1", "draft-42")

	req := buildRequest("easel.query", map[string]any{"resource": "agents"})
	result, err := rig.srv.handleQuery(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Agents []AgentPresence `json:"agents"`
	}
	unmarshalResult(t, result, &out)
	require.Len(t, out.Agents, 1)
	assert.Equal(t, "agent-7", out.Agents[0].AgentID)
	assert.Equal(t, "draft-42", out.Agents[0].DraftID)
}

func TestQueryUnknownResource(t *testing.T) {
	rig := newTestServer(t)

	req := buildRequest("easel.query", map[string]any{"resource": "widgets"})
	result, err := rig.srv.handleQuery(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
