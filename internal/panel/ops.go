package panel

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/easelkit/easel/internal/editor"
	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/pkg/schema"
)

// handleGetSelection returns the draft's current selection.
func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, ed.Selection())
}

// handlePutSelection replaces the selection. Unknown ids are dropped, the
// primary hint is honored only when it survives the filter.
func (s *Server) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}

	var body struct {
		NodeIDs     []string `json:"node_ids"`
		EdgeIDs     []string `json:"edge_ids"`
		PrimaryNode string   `json:"primary_node"`
		PrimaryEdge string   `json:"primary_edge"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	changed := ed.ApplySelection(r.Context(), body.NodeIDs, body.EdgeIDs, body.PrimaryNode, body.PrimaryEdge)
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":   changed,
		"selection": ed.Selection(),
	})
}

// handleAddNode adds a single node of the given kind.
func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}

	var body struct {
		Kind string           `json:"kind"`
		At   *schema.Position `json:"at"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	ctx := logging.WithOp(r.Context(), "add_node")
	node, addErr := ed.AddNode(ctx, schema.NodeKind(body.Kind), body.At)
	if addErr != nil {
		writeEaselError(w, addErr)
		return
	}
	s.deps.Manager.Record(ctx, ed.DraftID(), "add_node", map[string]any{"slug": node.Slug, "kind": node.Kind})
	writeJSON(w, http.StatusCreated, node)
}

// handleConnect adds an edge between two existing nodes.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}

	var body struct {
		Source    string `json:"source"`
		Target    string `json:"target"`
		Condition string `json:"condition"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	ctx := logging.WithOp(r.Context(), "connect")
	edge, connErr := ed.ConnectNodes(ctx, body.Source, body.Target, body.Condition)
	if connErr != nil {
		writeEaselError(w, connErr)
		return
	}
	s.deps.Manager.Record(ctx, ed.DraftID(), "connect", map[string]any{
		"edge_id": edge.ID, "source": edge.Source, "target": edge.Target,
	})
	writeJSON(w, http.StatusCreated, viewEdge{Edge: edge, ID: edge.ID})
}

// handleInsert bulk-inserts a wire-format graph fragment.
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}

	var body struct {
		Graph json.RawMessage  `json:"graph"`
		At    *schema.Position `json:"at"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(body.Graph) == 0 {
		writeError(w, http.StatusBadRequest, "graph is required")
		return
	}

	incoming, parseErr := schema.ParseGraph(body.Graph)
	if parseErr != nil {
		writeEaselError(w, parseErr)
		return
	}

	ctx := logging.WithOp(r.Context(), "insert")
	result := ed.InsertGraphElements(ctx, incoming, editor.InsertOptions{TargetCenter: body.At})
	if result.Success {
		s.deps.Manager.Record(ctx, ed.DraftID(), "insert", result)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCopy serializes the selection (or the whole graph) to the clipboard.
func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}

	var body struct {
		EntireGraph bool `json:"entire_graph"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}

	copied := ed.CopySelection(r.Context(), editor.CopyOptions{EntireGraph: body.EntireGraph})
	writeJSON(w, http.StatusOK, map[string]bool{"copied": copied})
}

// handlePaste inserts the clipboard content at the viewport center.
func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}

	ctx := logging.WithOp(r.Context(), "paste")
	result := ed.PasteClipboard(ctx)
	if result.Success {
		s.deps.Manager.Record(ctx, ed.DraftID(), "paste", result)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDuplicate clones the selection next to the original.
func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}

	ctx := logging.WithOp(r.Context(), "duplicate")
	result := ed.DuplicateSelection(ctx)
	if result.Success {
		s.deps.Manager.Record(ctx, ed.DraftID(), "duplicate", result)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRemove deletes the requested elements, or the current selection
// when the body asks for it. Confirmation prompts live client-side, so
// removal here is unconditional.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	ed, err := s.editor(w, r)
	if err != nil {
		return
	}

	var body struct {
		NodeIDs   []string `json:"node_ids"`
		EdgeIDs   []string `json:"edge_ids"`
		Selection bool     `json:"selection"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	req := editor.RemovalRequest{NodeIDs: body.NodeIDs, EdgeIDs: body.EdgeIDs}
	if body.Selection {
		sel := ed.Selection()
		req = editor.RemovalRequest{NodeIDs: sel.NodeIDs, EdgeIDs: sel.EdgeIDs}
	}

	ctx := logging.WithOp(r.Context(), "remove")
	result := ed.RemoveElements(ctx, req)
	if result.Changed {
		s.deps.Manager.Record(ctx, ed.DraftID(), "remove", result)
	}
	writeJSON(w, http.StatusOK, result)
}

// handleViewport records the client's canvas viewport transform.
func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	canvas, err := s.canvas(w, r)
	if err != nil {
		return
	}

	var body struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Zoom float64 `json:"zoom"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.Zoom == 0 {
		writeError(w, http.StatusBadRequest, "zoom must be non-zero")
		return
	}

	canvas.SetViewport(body.X, body.Y, body.Zoom)
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

// handleContainer records the client's canvas container size.
func (s *Server) handleContainer(w http.ResponseWriter, r *http.Request) {
	canvas, err := s.canvas(w, r)
	if err != nil {
		return
	}

	var body struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	canvas.SetContainerSize(body.Width, body.Height)
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

// editor resolves the draft's editor, writing the error response itself
// so handlers can return on failure without re-mapping.
func (s *Server) editor(w http.ResponseWriter, r *http.Request) (*editor.Editor, error) {
	ed, err := s.deps.Manager.Editor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEaselError(w, err)
		return nil, err
	}
	return ed, nil
}

// canvas resolves the draft's canvas host the same way.
func (s *Server) canvas(w http.ResponseWriter, r *http.Request) (*editor.StaticCanvas, error) {
	canvas, err := s.deps.Manager.Canvas(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEaselError(w, err)
		return nil, err
	}
	return canvas, nil
}
