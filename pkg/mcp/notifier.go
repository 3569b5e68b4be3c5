package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// AgentNotifier pushes editor notices to connected agents.
type AgentNotifier interface {
	Notify(ctx context.Context, agentID string, payload map[string]any) error
}

// MCPNotifier pushes notices over the agent's live MCP session, tagging
// each one with the draft the agent last touched.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	presence  *PresenceTable
}

func NewMCPNotifier(mcpServer *server.MCPServer, presence *PresenceTable) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, presence: presence}
}

// Notify sends a notice to the agent's session. Best-effort: agents
// without a live session are skipped, and a session that expired between
// lookup and send is dropped from the table rather than reported.
func (n *MCPNotifier) Notify(_ context.Context, agentID string, payload map[string]any) error {
	sessionID, draftID, ok := n.presence.route(agentID)
	if !ok {
		return nil
	}

	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	if draftID != "" {
		msg["draft_id"] = draftID
	}

	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", msg)
	if errors.Is(err, server.ErrSessionNotFound) {
		n.presence.DropSession(sessionID)
		return nil
	}
	return err
}
