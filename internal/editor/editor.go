// Package editor is the selection and mutation engine for one canvas
// draft. It owns the graph store, the selection state, and the ports to
// the outside (clipboard, canvas viewport, confirmation), and it is the
// only component with externally visible side effects. Every mutation
// serializes on one mutex and either commits fully or leaves the store
// untouched.
package editor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/easelkit/easel/internal/graph"
	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/internal/streaming"
	"github.com/easelkit/easel/pkg/schema"
)

// duplicateOffset is how far, in model pixels, a duplicated selection
// lands from its source so the copy is visibly offset instead of stacked.
const duplicateOffset = 48

// noticeDismissMs is how long transient notices stay on screen.
const noticeDismissMs = 4000

// Config wires an Editor. Store is required; every port has a working
// default so tests and headless use stay short.
type Config struct {
	DraftID   string
	Store     *graph.Store
	Clipboard ClipboardPort
	Canvas    CanvasHost
	Hub       streaming.EventHub
	Confirm   Confirmer
	Logger    *slog.Logger
}

// Editor orchestrates all mutations of one draft.
type Editor struct {
	mu      sync.Mutex
	draftID string
	store   *graph.Store
	sel     Selection
	clip    ClipboardPort
	canvas  CanvasHost
	hub     streaming.EventHub
	confirm Confirmer
	logger  *slog.Logger
}

// New builds an Editor from cfg. A nil clipboard falls back to an
// in-memory one, a nil hub to a private hub nobody listens on, and a nil
// confirmer approves everything (headless callers gate destructive calls
// themselves).
func New(cfg Config) *Editor {
	ed := &Editor{
		draftID: cfg.DraftID,
		store:   cfg.Store,
		clip:    cfg.Clipboard,
		canvas:  cfg.Canvas,
		hub:     cfg.Hub,
		confirm: cfg.Confirm,
		logger:  cfg.Logger,
	}
	if ed.store == nil {
		ed.store = graph.NewStore()
	}
	if ed.clip == nil {
		ed.clip = NewMemoryClipboard()
	}
	if ed.hub == nil {
		ed.hub = streaming.NewMemoryHub()
	}
	if ed.logger == nil {
		ed.logger = slog.Default()
	}
	return ed
}

// DraftID returns the id of the draft this editor mutates.
func (ed *Editor) DraftID() string {
	return ed.draftID
}

// Store exposes the underlying graph store for read-side consumers
// (persistence, validation, diagrams).
func (ed *Editor) Store() *graph.Store {
	return ed.store
}

// ViewGraph returns a snapshot with the visual selection flags applied,
// the shape the canvas frontend renders.
func (ed *Editor) ViewGraph() schema.Graph {
	ed.mu.Lock()
	sel := ed.sel.clone()
	ed.mu.Unlock()

	snap := ed.store.Snapshot()
	nodeSet := toSet(sel.NodeIDs)
	edgeSet := toSet(sel.EdgeIDs)
	for i := range snap.Nodes {
		snap.Nodes[i].Selected = nodeSet[snap.Nodes[i].Slug]
	}
	for i := range snap.Edges {
		snap.Edges[i].Selected = edgeSet[snap.Edges[i].ID]
	}
	return snap
}

// notify publishes a transient, auto-dismissing user notice. Notices are
// the error surface for operational failures; they never abort an
// operation that can still leave the graph consistent.
func (ed *Editor) notify(ctx context.Context, level, message string) {
	_ = ed.hub.Publish(ctx, streaming.EditorEvent{
		DraftID:   ed.draftID,
		EventType: streaming.EventNotice,
		Payload:   streaming.Notice{Level: level, Message: message, DismissMs: noticeDismissMs},
	})
	logging.LogWith(ctx, ed.logger).Info("notice", slog.String("level", level), slog.String("message", message))
}

func (ed *Editor) publishCommit(ctx context.Context, op string) {
	_ = ed.hub.Publish(ctx, streaming.EditorEvent{
		DraftID:   ed.draftID,
		EventType: streaming.EventGraphCommitted,
		Payload:   map[string]any{"op": op, "revision": ed.store.Revision()},
	})
}

func (ed *Editor) publishSelection(ctx context.Context) {
	_ = ed.hub.Publish(ctx, streaming.EditorEvent{
		DraftID:   ed.draftID,
		EventType: streaming.EventSelectionChanged,
		Payload:   ed.sel.clone(),
	})
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
