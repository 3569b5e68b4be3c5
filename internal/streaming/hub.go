// Package streaming fans editor activity out to live listeners: the panel
// SSE endpoint, the autosave scheduler, and tests. Publishing never blocks
// a mutation; slow listeners lose events rather than stalling the editor.
package streaming

import "context"

// Editor event types.
const (
	EventGraphCommitted   = "graph_committed"
	EventSelectionChanged = "selection_changed"
	EventNotice           = "notice"
	EventDraftSaved       = "draft_saved"
	EventDraftDeployed    = "draft_deployed"
)

// EditorEvent is a single editor activity record.
type EditorEvent struct {
	DraftID   string `json:"draft_id"`
	EventType string `json:"event_type"`
	Payload   any    `json:"payload,omitempty"`
}

// Notice is the payload of transient, auto-dismissing user messages
// ("nothing to copy", "start step cannot be deleted", ...).
type Notice struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	DismissMs int    `json:"dismiss_ms"`
}

// EventFilter selects which events a subscriber receives. Zero-value
// fields match everything.
type EventFilter struct {
	DraftID    string   `json:"draft_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

func (f EventFilter) admits(e EditorEvent) bool {
	if f.DraftID != "" && f.DraftID != e.DraftID {
		return false
	}
	if len(f.EventTypes) == 0 {
		return true
	}
	for _, t := range f.EventTypes {
		if t == e.EventType {
			return true
		}
	}
	return false
}

// EventHub provides pub/sub for editor events.
type EventHub interface {
	Publish(ctx context.Context, event EditorEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan EditorEvent, func(), error)
}
