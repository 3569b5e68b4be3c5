package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/easelkit/easel/internal/graph"
	"github.com/easelkit/easel/internal/logging"
	"github.com/easelkit/easel/internal/store"
	"github.com/easelkit/easel/internal/streaming"
	"github.com/easelkit/easel/internal/validation"
	"github.com/easelkit/easel/pkg/schema"
)

// EditRecorder abstracts the edit-log append the Manager needs.
// Satisfied by *store.EditLog and test mocks.
type EditRecorder interface {
	Append(ctx context.Context, event *store.EditEvent) error
}

// ManagerConfig holds the Manager's collaborators. Store is required; the
// rest default to in-memory implementations.
type ManagerConfig struct {
	Store     store.Store
	EditLog   EditRecorder
	Hub       streaming.EventHub
	Validator *validation.CanvasValidator
	Clipboard ClipboardPort
	Logger    *slog.Logger
}

// Manager coordinates persisted drafts and their live editors. Editors are
// loaded lazily on first access and kept until the draft is deleted or the
// manager shuts down. All editors created by one manager share a clipboard,
// so copy in one draft can paste into another.
type Manager struct {
	store     store.Store
	editLog   EditRecorder
	hub       streaming.EventHub
	validator *validation.CanvasValidator
	clipboard ClipboardPort
	logger    *slog.Logger

	// mu guards editors map.
	mu      sync.Mutex
	editors map[string]*managedEditor
}

// managedEditor pairs a live editor with its canvas geometry sink.
type managedEditor struct {
	ed     *Editor
	canvas *StaticCanvas
}

// NewManager builds a Manager around a persistence store.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		store:     cfg.Store,
		editLog:   cfg.EditLog,
		hub:       cfg.Hub,
		validator: cfg.Validator,
		clipboard: cfg.Clipboard,
		logger:    cfg.Logger,
		editors:   make(map[string]*managedEditor),
	}
	if m.hub == nil {
		m.hub = streaming.NewMemoryHub()
	}
	if m.clipboard == nil {
		m.clipboard = NewMemoryClipboard()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Hub exposes the event hub shared by every editor this manager owns.
func (m *Manager) Hub() streaming.EventHub { return m.hub }

// Validator exposes the canvas validator, when one is configured.
func (m *Manager) Validator() *validation.CanvasValidator { return m.validator }

// CreateDraft persists an imported document as a new draft. The draft slug
// comes from the document and is uniquified against existing drafts; the
// graph is stored as canonical wire JSON.
func (m *Manager) CreateDraft(ctx context.Context, doc *schema.WorkflowImport) (*store.Draft, error) {
	payload, err := schema.EncodeWorkflowExport(*doc)
	if err != nil {
		return nil, err
	}

	slug := strings.TrimSpace(doc.Slug)
	if slug == "" {
		slug = "draft"
	}
	slug, err = m.uniqueDraftSlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	d := &store.Draft{
		ID:          uuid.New().String(),
		Slug:        slug,
		DisplayName: doc.DisplayName,
		Description: doc.Description,
		WorkflowID:  doc.WorkflowID,
		Graph:       payload,
	}
	if err := m.store.CreateDraft(ctx, d); err != nil {
		return nil, err
	}

	m.record(ctx, d.ID, "import", map[string]any{"slug": d.Slug}, "")
	logging.LogWith(ctx, m.logger).Info("draft created", "draft_id", d.ID, "slug", d.Slug)
	return d, nil
}

// Editor returns the live editor for a draft, loading it from the store on
// first access. The loaded graph passes through the codec, so a corrupt
// persisted payload surfaces as a codec error here.
func (m *Manager) Editor(ctx context.Context, draftID string) (*Editor, error) {
	m.mu.Lock()
	if managed, ok := m.editors[draftID]; ok {
		m.mu.Unlock()
		return managed.ed, nil
	}
	m.mu.Unlock()

	d, err := m.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	managed, err := m.loadEditor(d)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have loaded it while we were reading the store.
	if existing, ok := m.editors[draftID]; ok {
		return existing.ed, nil
	}
	m.editors[draftID] = managed
	return managed.ed, nil
}

// Canvas returns the geometry sink for a draft's editor, so transport
// layers can feed viewport and container updates into paste re-centering.
func (m *Manager) Canvas(ctx context.Context, draftID string) (*StaticCanvas, error) {
	if _, err := m.Editor(ctx, draftID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editors[draftID].canvas, nil
}

func (m *Manager) loadEditor(d *store.Draft) (*managedEditor, error) {
	doc, err := schema.ParseWorkflowImport(d.Graph)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "draft %s holds an unreadable graph", d.ID).WithCause(err)
	}
	gs, err := graph.NewStoreFromGraph(doc.Graph)
	if err != nil {
		return nil, err
	}
	canvas := NewStaticCanvas()
	ed := New(Config{
		DraftID:   d.ID,
		Store:     gs,
		Clipboard: m.clipboard,
		Canvas:    canvas,
		Hub:       m.hub,
		Logger:    m.logger,
	})
	return &managedEditor{ed: ed, canvas: canvas}, nil
}

// SaveDraft writes an editor's current graph back to the store and clears
// the dirty flag on both sides.
func (m *Manager) SaveDraft(ctx context.Context, draftID string) error {
	ed, err := m.Editor(ctx, draftID)
	if err != nil {
		return err
	}

	doc, err := m.exportDoc(ctx, draftID, ed)
	if err != nil {
		return err
	}
	payload, err := schema.EncodeWorkflowExport(*doc)
	if err != nil {
		return err
	}

	clean := false
	if err := m.store.UpdateDraft(ctx, draftID, store.DraftUpdate{Graph: payload, Dirty: &clean}); err != nil {
		return err
	}
	ed.Store().MarkSaved()
	m.record(ctx, draftID, "save", map[string]any{"revision": ed.Store().Revision()}, logging.ActorID(ctx))
	m.publish(ctx, draftID, streaming.EventDraftSaved, map[string]any{"revision": ed.Store().Revision()})
	return nil
}

// SnapshotVersion stores the draft's current graph as a version.
func (m *Manager) SnapshotVersion(ctx context.Context, draftID, name, origin string) (*store.Version, error) {
	ed, err := m.Editor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	payload, err := schema.EncodeGraph(ed.Store().Snapshot())
	if err != nil {
		return nil, err
	}
	v := &store.Version{
		ID:        uuid.New().String(),
		DraftID:   draftID,
		Name:      name,
		Origin:    origin,
		Graph:     payload,
		CreatedBy: logging.ActorID(ctx),
	}
	if err := m.store.CreateVersion(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateDraft runs the full validation pipeline against a draft's
// current graph plus its stored metadata.
func (m *Manager) ValidateDraft(ctx context.Context, draftID string) (*schema.ValidationResult, error) {
	if m.validator == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "no validator configured")
	}
	ed, err := m.Editor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	doc, err := m.exportDoc(ctx, draftID, ed)
	if err != nil {
		return nil, err
	}
	return m.validator.Validate(*doc), nil
}

// Deploy validates the draft, saves it, and stores the result as the
// exclusively active version. A validation failure aborts before anything
// is written.
func (m *Manager) Deploy(ctx context.Context, draftID, versionName string) (*store.Version, error) {
	result, err := m.ValidateDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, result.ToError()
	}

	if err := m.SaveDraft(ctx, draftID); err != nil {
		return nil, err
	}

	ed, err := m.Editor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	payload, err := schema.EncodeGraph(ed.Store().Snapshot())
	if err != nil {
		return nil, err
	}
	v := &store.Version{
		ID:        uuid.New().String(),
		DraftID:   draftID,
		Name:      versionName,
		Origin:    store.VersionOriginDeploy,
		Graph:     payload,
		CreatedBy: logging.ActorID(ctx),
		Active:    true,
	}
	if err := m.store.CreateVersion(ctx, v); err != nil {
		return nil, err
	}

	m.record(ctx, draftID, "deploy", map[string]any{"version_id": v.ID, "name": versionName}, logging.ActorID(ctx))
	m.publish(ctx, draftID, streaming.EventDraftDeployed, map[string]any{"version_id": v.ID})
	logging.LogWith(ctx, m.logger).Info("draft deployed", "draft_id", draftID, "version_id", v.ID)
	return v, nil
}

// DeleteDraft evicts the live editor and removes the persisted draft with
// its versions.
func (m *Manager) DeleteDraft(ctx context.Context, draftID string) error {
	m.mu.Lock()
	delete(m.editors, draftID)
	m.mu.Unlock()
	return m.store.DeleteDraft(ctx, draftID)
}

// DirtyDraftIDs reports the drafts whose live editors carry uncommitted
// changes. Only loaded editors count; unloaded drafts cannot be dirty in
// this process.
func (m *Manager) DirtyDraftIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, managed := range m.editors {
		if managed.ed.Store().Dirty() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Record appends an edit-log entry for an operation a transport layer just
// performed against a draft, and flips the persisted dirty flag so a
// restart still sees unsaved work.
func (m *Manager) Record(ctx context.Context, draftID, op string, payload any) {
	m.record(ctx, draftID, op, payload, logging.ActorID(ctx))
	dirty := true
	if err := m.store.UpdateDraft(ctx, draftID, store.DraftUpdate{Dirty: &dirty}); err != nil {
		logging.LogWith(ctx, m.logger).Warn("dirty flag update failed", "draft_id", draftID, "error", err)
	}
}

// ExportDoc assembles the full wire document for a draft: stored metadata
// plus the live graph.
func (m *Manager) ExportDoc(ctx context.Context, draftID string) (*schema.WorkflowImport, error) {
	ed, err := m.Editor(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return m.exportDoc(ctx, draftID, ed)
}

func (m *Manager) exportDoc(ctx context.Context, draftID string, ed *Editor) (*schema.WorkflowImport, error) {
	d, err := m.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return &schema.WorkflowImport{
		Graph:       ed.Store().Snapshot(),
		WorkflowID:  d.WorkflowID,
		Slug:        d.Slug,
		DisplayName: d.DisplayName,
		Description: d.Description,
	}, nil
}

func (m *Manager) record(ctx context.Context, draftID, op string, payload any, actor string) {
	if m.editLog == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	event := &store.EditEvent{DraftID: draftID, Op: op, Payload: raw, Actor: actor}
	if err := m.editLog.Append(ctx, event); err != nil {
		logging.LogWith(ctx, m.logger).Warn("edit log append failed", "draft_id", draftID, "op", op, "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, draftID, eventType string, payload any) {
	if m.hub == nil {
		return
	}
	_ = m.hub.Publish(ctx, streaming.EditorEvent{
		DraftID:   draftID,
		EventType: eventType,
		Payload:   payload,
	})
}

func (m *Manager) uniqueDraftSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		_, err := m.store.GetDraftBySlug(ctx, candidate)
		if err != nil {
			if schema.ErrorCode(err) == schema.ErrCodeNotFound {
				return candidate, nil
			}
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}
