// Package panel exposes the editing engine over HTTP: a JSON API for the
// canvas client plus Server-Sent Event streams for live updates. The panel
// holds no editing state of its own; every request resolves through the
// editor manager.
package panel

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/easelkit/easel/internal/editor"
	"github.com/easelkit/easel/internal/expressions"
	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/internal/store"
)

// Deps holds the dependencies for the panel server.
type Deps struct {
	Manager *editor.Manager
	Store   store.Store
	EditLog *store.EditLog
	Logger  *slog.Logger
}

// Server serves the canvas editing API.
type Server struct {
	deps Deps

	jqOnce   sync.Once
	jqEngine *expressions.GoJQEngine
}

// NewServer creates a panel Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for the panel routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Draft lifecycle.
	mux.HandleFunc("GET /api/drafts", s.handleListDrafts)
	mux.HandleFunc("POST /api/drafts", s.handleImportDraft)
	mux.HandleFunc("GET /api/drafts/{id}", s.handleGetDraft)
	mux.HandleFunc("PATCH /api/drafts/{id}", s.handleUpdateDraft)
	mux.HandleFunc("DELETE /api/drafts/{id}", s.handleDeleteDraft)
	mux.HandleFunc("GET /api/drafts/{id}/export", s.handleExport)
	mux.HandleFunc("POST /api/drafts/{id}/save", s.handleSave)
	mux.HandleFunc("POST /api/drafts/{id}/validate", s.handleValidate)
	mux.HandleFunc("POST /api/drafts/{id}/deploy", s.handleDeploy)

	// Editing operations.
	mux.HandleFunc("GET /api/drafts/{id}/selection", s.handleGetSelection)
	mux.HandleFunc("PUT /api/drafts/{id}/selection", s.handlePutSelection)
	mux.HandleFunc("POST /api/drafts/{id}/nodes", s.handleAddNode)
	mux.HandleFunc("POST /api/drafts/{id}/edges", s.handleConnect)
	mux.HandleFunc("POST /api/drafts/{id}/insert", s.handleInsert)
	mux.HandleFunc("POST /api/drafts/{id}/copy", s.handleCopy)
	mux.HandleFunc("POST /api/drafts/{id}/paste", s.handlePaste)
	mux.HandleFunc("POST /api/drafts/{id}/duplicate", s.handleDuplicate)
	mux.HandleFunc("POST /api/drafts/{id}/remove", s.handleRemove)

	// Canvas geometry reported by the client.
	mux.HandleFunc("PUT /api/drafts/{id}/viewport", s.handleViewport)
	mux.HandleFunc("PUT /api/drafts/{id}/container", s.handleContainer)

	// Versions and edit history.
	mux.HandleFunc("GET /api/drafts/{id}/versions", s.handleListVersions)
	mux.HandleFunc("POST /api/drafts/{id}/versions", s.handleSnapshotVersion)
	mux.HandleFunc("POST /api/drafts/{id}/versions/{version}/activate", s.handleActivateVersion)
	mux.HandleFunc("GET /api/drafts/{id}/events", s.handleEditEvents)
	mux.HandleFunc("GET /api/drafts/{id}/events/summary", s.handleEditSummary)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSEGlobal)
	mux.HandleFunc("GET /sse/drafts/{id}", s.handleSSEDraft)

	return withActor(mux)
}

// withActor lifts the acting user id from the request header into the
// context so edit events and log lines carry it.
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get("X-Easel-Actor"); actor != "" {
			r = r.WithContext(logging.WithActorID(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}
