package mcp

import (
	"sort"
	"sync"
	"time"
)

// AgentPresence is a point-in-time view of one connected editing agent.
// Session ids stay internal; callers only see the agent and its draft.
type AgentPresence struct {
	AgentID  string    `json:"agent_id"`
	DraftID  string    `json:"draft_id,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceTable tracks which agents hold a live MCP session and which
// draft each one touched last. Every tool call carrying agent_id
// refreshes the table, and notices raised by an agent's edits are pushed
// back over the recorded session.
type PresenceTable struct {
	mu     sync.RWMutex
	agents map[string]presenceEntry
}

type presenceEntry struct {
	sessionID string
	draftID   string
	lastSeen  time.Time
}

// NewPresenceTable returns an empty table.
func NewPresenceTable() *PresenceTable {
	return &PresenceTable{agents: make(map[string]presenceEntry)}
}

// Touch upserts the agent's session binding. An empty draftID keeps the
// previously recorded draft, so read-only calls do not erase context.
func (t *PresenceTable) Touch(agentID, sessionID, draftID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.agents[agentID]
	entry.sessionID = sessionID
	if draftID != "" {
		entry.draftID = draftID
	}
	entry.lastSeen = time.Now()
	t.agents[agentID] = entry
}

// Lookup returns the agent's presence, if the agent is connected.
func (t *PresenceTable) Lookup(agentID string) (AgentPresence, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.agents[agentID]
	if !ok {
		return AgentPresence{}, false
	}
	return AgentPresence{AgentID: agentID, DraftID: entry.draftID, LastSeen: entry.lastSeen}, true
}

// route returns where a push for the agent should go: the bound session
// and the draft the notice concerns.
func (t *PresenceTable) route(agentID string) (sessionID, draftID string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, found := t.agents[agentID]
	if !found || entry.sessionID == "" {
		return "", "", false
	}
	return entry.sessionID, entry.draftID, true
}

// DropSession removes every agent bound to the given session. Called when
// a session disconnects or a push bounces.
func (t *PresenceTable) DropSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, entry := range t.agents {
		if entry.sessionID == sessionID {
			delete(t.agents, id)
		}
	}
}

// Connected lists present agents sorted by agent id.
func (t *PresenceTable) Connected() []AgentPresence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]AgentPresence, 0, len(t.agents))
	for id, entry := range t.agents {
		out = append(out, AgentPresence{AgentID: id, DraftID: entry.draftID, LastSeen: entry.lastSeen})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}
