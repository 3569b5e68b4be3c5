package panel

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/easelkit/easel/internal/diagram"
	"github.com/easelkit/easel/internal/expressions"
	"github.com/easelkit/easel/internal/store"
	"github.com/easelkit/easel/pkg/schema"
)

// handleListDrafts lists stored drafts.
func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.deps.Store.ListDrafts(r.Context(), store.DraftFilter{
		Slug:   r.URL.Query().Get("slug"),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

// handleImportDraft creates a draft from a wire-format canvas document.
func (s *Server) handleImportDraft(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	doc, err := schema.ParseWorkflowImport(raw)
	if err != nil {
		writeEaselError(w, err)
		return
	}

	draft, err := s.deps.Manager.CreateDraft(r.Context(), doc)
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

// handleGetDraft returns draft metadata plus the live graph view.
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	draft, err := s.deps.Store.GetDraft(r.Context(), draftID)
	if err != nil {
		writeEaselError(w, err)
		return
	}
	ed, err := s.deps.Manager.Editor(r.Context(), draftID)
	if err != nil {
		writeEaselError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"draft":     draft,
		"graph":     toViewGraph(ed.ViewGraph()),
		"selection": ed.Selection(),
		"revision":  ed.Store().Revision(),
		"dirty":     ed.Store().Dirty(),
	})
}

// View DTOs. The wire codec deliberately drops edge ids and selection
// flags; the live panel view needs both, so it gets its own shape.
type viewNode struct {
	schema.Node
	Selected bool `json:"selected"`
}

type viewEdge struct {
	schema.Edge
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

type viewGraph struct {
	Nodes       []viewNode          `json:"nodes"`
	Edges       []viewEdge          `json:"edges"`
	RepeatZones []schema.RepeatZone `json:"repeat_zones,omitempty"`
}

func toViewGraph(g schema.Graph) viewGraph {
	out := viewGraph{
		Nodes:       make([]viewNode, 0, len(g.Nodes)),
		Edges:       make([]viewEdge, 0, len(g.Edges)),
		RepeatZones: g.RepeatZones,
	}
	for _, n := range g.Nodes {
		out.Nodes = append(out.Nodes, viewNode{Node: n, Selected: n.Selected})
	}
	for _, e := range g.Edges {
		out.Edges = append(out.Edges, viewEdge{Edge: e, ID: e.ID, Selected: e.Selected})
	}
	return out
}

// handleUpdateDraft renames or re-describes a draft.
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	var body struct {
		DisplayName *string `json:"display_name"`
		Description *string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.DisplayName == nil && body.Description == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := s.deps.Store.UpdateDraft(r.Context(), draftID, store.DraftUpdate{
		DisplayName: body.DisplayName,
		Description: body.Description,
	}); err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "draft_id": draftID})
}

// handleDeleteDraft removes a draft, its versions, and its edit history.
func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	if err := s.deps.Manager.DeleteDraft(r.Context(), draftID); err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "draft_id": draftID})
}

// handleExport renders the draft in the requested format. JSON output can
// additionally be filtered through a jq query.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	doc, err := s.deps.Manager.ExportDoc(r.Context(), draftID)
	if err != nil {
		writeEaselError(w, err)
		return
	}

	title := doc.DisplayName
	if title == "" {
		title = doc.Slug
	}

	switch format {
	case "json":
		data, encErr := schema.EncodeWorkflowExport(*doc)
		if encErr != nil {
			writeEaselError(w, encErr)
			return
		}
		if query := r.URL.Query().Get("query"); query != "" {
			s.writeQueried(w, r, data, query)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	case "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, diagram.RenderMermaid(diagram.Build(doc.Graph, title)))
	case "dot":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, diagram.RenderDOT(diagram.Build(doc.Graph, title)))
	case "ascii":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, diagram.RenderASCII(diagram.Build(doc.Graph, title)))
	case "png":
		png, renderErr := diagram.RenderImage(diagram.Build(doc.Graph, title))
		if renderErr != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("render PNG: %v", renderErr))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

// writeQueried runs a jq query over exported JSON and writes the result.
func (s *Server) writeQueried(w http.ResponseWriter, r *http.Request, data []byte, query string) {
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("decode export: %v", err))
		return
	}
	result, err := s.jq().Evaluate(r.Context(), query, decoded)
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// jq returns the shared query engine, creating it on first use.
func (s *Server) jq() *expressions.GoJQEngine {
	s.jqOnce.Do(func() { s.jqEngine = expressions.NewGoJQEngine() })
	return s.jqEngine
}

// handleSave flushes the live graph to the store and clears the dirty flag.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	if err := s.deps.Manager.SaveDraft(r.Context(), draftID); err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "draft_id": draftID})
}

// handleValidate runs the full validation pipeline without mutating anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	result, err := s.deps.Manager.ValidateDraft(r.Context(), draftID)
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDeploy validates, saves, and activates a new version.
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	var body struct {
		VersionName string `json:"version_name"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}

	version, err := s.deps.Manager.Deploy(r.Context(), draftID, body.VersionName)
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

// handleListVersions lists stored versions for a draft.
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	versions, err := s.deps.Store.ListVersions(r.Context(), draftID, store.VersionFilter{
		Origin: r.URL.Query().Get("origin"),
		Limit:  queryInt(r, "limit", 50),
	})
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// handleSnapshotVersion stores a manual named snapshot of the live graph.
func (s *Server) handleSnapshotVersion(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	version, err := s.deps.Manager.SnapshotVersion(r.Context(), draftID, body.Name, store.VersionOriginManual)
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

// handleActivateVersion marks one version active, deactivating the rest.
func (s *Server) handleActivateVersion(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")
	versionID := r.PathValue("version")

	if err := s.deps.Store.ActivateVersion(r.Context(), draftID, versionID); err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "version_id": versionID})
}

// handleEditEvents returns the draft's edit log after a sequence number.
func (s *Server) handleEditEvents(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	events, err := s.deps.EditLog.Events(r.Context(), draftID, int64(queryInt(r, "since", 0)))
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleEditSummary aggregates the draft's edit log by op and actor.
func (s *Server) handleEditSummary(w http.ResponseWriter, r *http.Request) {
	draftID := r.PathValue("id")

	summary, err := s.deps.EditLog.Summarize(r.Context(), draftID)
	if err != nil {
		writeEaselError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
