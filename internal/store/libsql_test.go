package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelkit/easel/pkg/schema"
)

const minimalGraph = `{"graph":{"nodes":[{"slug":"start","kind":"start"}],"edges":[]}}`

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func seedDraft(t *testing.T, s *LibSQLStore) *Draft {
	t.Helper()
	d := &Draft{
		ID:    uuid.New().String(),
		Slug:  "draft-" + uuid.New().String()[:8],
		Graph: json.RawMessage(minimalGraph),
	}
	require.NoError(t, s.CreateDraft(context.Background(), d))
	return d
}

// --- Draft Tests ---

func TestCreateAndGetDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &Draft{
		ID:          uuid.New().String(),
		Slug:        "support-triage",
		DisplayName: "Support Triage",
		Description: "routes tickets",
		WorkflowID:  42,
		Graph:       json.RawMessage(minimalGraph),
		Dirty:       true,
	}
	require.NoError(t, s.CreateDraft(ctx, d))

	got, err := s.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "support-triage", got.Slug)
	assert.Equal(t, "Support Triage", got.DisplayName)
	assert.Equal(t, int64(42), got.WorkflowID)
	assert.True(t, got.Dirty)
	assert.JSONEq(t, minimalGraph, string(got.Graph))

	bySlug, err := s.GetDraftBySlug(ctx, "support-triage")
	require.NoError(t, err)
	assert.Equal(t, d.ID, bySlug.ID)
}

func TestGetDraft_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDraft(context.Background(), "nonexistent")
	require.Error(t, err)
	var easelErr *schema.EaselError
	require.ErrorAs(t, err, &easelErr)
	assert.Equal(t, schema.ErrCodeNotFound, easelErr.Code)
}

func TestCreateDraft_DuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &Draft{ID: uuid.New().String(), Slug: "dup", Graph: json.RawMessage(minimalGraph)}
	require.NoError(t, s.CreateDraft(ctx, first))

	second := &Draft{ID: uuid.New().String(), Slug: "dup", Graph: json.RawMessage(minimalGraph)}
	err := s.CreateDraft(ctx, second)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.ErrorCode(err))
}

func TestCreateDraft_EmptyGraph(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateDraft(context.Background(), &Draft{ID: uuid.New().String(), Slug: "empty"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStore, schema.ErrorCode(err))
}

func TestUpdateDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	name := "Renamed"
	dirty := false
	newGraph := json.RawMessage(`{"graph":{"nodes":[],"edges":[]}}`)
	require.NoError(t, s.UpdateDraft(ctx, d.ID, DraftUpdate{
		DisplayName: &name,
		Graph:       newGraph,
		Dirty:       &dirty,
	}))

	got, err := s.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.False(t, got.Dirty)
	assert.JSONEq(t, string(newGraph), string(got.Graph))
}

func TestUpdateDraft_NoFields(t *testing.T) {
	s := newTestStore(t)
	d := seedDraft(t, s)
	require.NoError(t, s.UpdateDraft(context.Background(), d.ID, DraftUpdate{}))
}

func TestUpdateDraft_NotFound(t *testing.T) {
	s := newTestStore(t)
	name := "x"
	err := s.UpdateDraft(context.Background(), "nonexistent", DraftUpdate{DisplayName: &name})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.ErrorCode(err))
}

func TestListDrafts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d := &Draft{
			ID:    uuid.New().String(),
			Slug:  fmt.Sprintf("draft-%d", i),
			Graph: json.RawMessage(minimalGraph),
			Dirty: i == 1,
		}
		require.NoError(t, s.CreateDraft(ctx, d))
	}

	all, err := s.ListDrafts(ctx, DraftFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	dirty := true
	onlyDirty, err := s.ListDrafts(ctx, DraftFilter{Dirty: &dirty})
	require.NoError(t, err)
	require.Len(t, onlyDirty, 1)
	assert.Equal(t, "draft-1", onlyDirty[0].Slug)

	limited, err := s.ListDrafts(ctx, DraftFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	require.NoError(t, s.DeleteDraft(ctx, d.ID))
	_, err := s.GetDraft(ctx, d.ID)
	assert.Equal(t, schema.ErrCodeNotFound, schema.ErrorCode(err))

	err = s.DeleteDraft(ctx, d.ID)
	assert.Equal(t, schema.ErrCodeNotFound, schema.ErrorCode(err))
}

// --- Version Tests ---

func TestCreateAndGetVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	v := &Version{
		ID:        uuid.New().String(),
		DraftID:   d.ID,
		Name:      "v1",
		Graph:     json.RawMessage(minimalGraph),
		CreatedBy: "cli",
	}
	require.NoError(t, s.CreateVersion(ctx, v))

	got, err := s.GetVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.DraftID)
	assert.Equal(t, "v1", got.Name)
	assert.Equal(t, VersionOriginManual, got.Origin, "origin defaults to manual")
	assert.False(t, got.Active)
	assert.JSONEq(t, minimalGraph, string(got.Graph))
}

func TestActivateVersion_Exclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.New().String()
		v := &Version{
			ID:      ids[i],
			DraftID: d.ID,
			Origin:  VersionOriginDeploy,
			Graph:   json.RawMessage(minimalGraph),
			Active:  true,
		}
		require.NoError(t, s.CreateVersion(ctx, v))
	}

	// Creating each active version deactivated the previous one.
	active := true
	activeRows, err := s.ListVersions(ctx, d.ID, VersionFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, activeRows, 1)
	assert.Equal(t, ids[2], activeRows[0].ID)

	require.NoError(t, s.ActivateVersion(ctx, d.ID, ids[0]))
	activeRows, err = s.ListVersions(ctx, d.ID, VersionFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, activeRows, 1)
	assert.Equal(t, ids[0], activeRows[0].ID)
}

func TestActivateVersion_NotFound(t *testing.T) {
	s := newTestStore(t)
	d := seedDraft(t, s)
	err := s.ActivateVersion(context.Background(), d.ID, "nonexistent")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.ErrorCode(err))
}

func TestListVersions_FilterByOrigin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	for _, origin := range []string{VersionOriginManual, VersionOriginAutosave, VersionOriginAutosave} {
		v := &Version{ID: uuid.New().String(), DraftID: d.ID, Origin: origin, Graph: json.RawMessage(minimalGraph)}
		require.NoError(t, s.CreateVersion(ctx, v))
	}

	autosaves, err := s.ListVersions(ctx, d.ID, VersionFilter{Origin: VersionOriginAutosave})
	require.NoError(t, err)
	assert.Len(t, autosaves, 2)
}

func TestPruneAutosaves(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		v := &Version{
			ID:        uuid.New().String(),
			DraftID:   d.ID,
			Origin:    VersionOriginAutosave,
			Graph:     json.RawMessage(minimalGraph),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateVersion(ctx, v))
	}
	manual := &Version{ID: uuid.New().String(), DraftID: d.ID, Graph: json.RawMessage(minimalGraph)}
	require.NoError(t, s.CreateVersion(ctx, manual))

	pruned, err := s.PruneAutosaves(ctx, d.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	remaining, err := s.ListVersions(ctx, d.ID, VersionFilter{Origin: VersionOriginAutosave})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	// Newest first: the survivors are the two most recent snapshots.
	assert.True(t, remaining[0].CreatedAt.After(remaining[1].CreatedAt))

	// The manual version is untouched.
	manuals, err := s.ListVersions(ctx, d.ID, VersionFilter{Origin: VersionOriginManual})
	require.NoError(t, err)
	assert.Len(t, manuals, 1)
}

func TestDeleteDraft_CascadesToVersions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	v := &Version{ID: uuid.New().String(), DraftID: d.ID, Graph: json.RawMessage(minimalGraph)}
	require.NoError(t, s.CreateVersion(ctx, v))
	require.NoError(t, s.DeleteDraft(ctx, d.ID))

	_, err := s.GetVersion(ctx, v.ID)
	assert.Equal(t, schema.ErrCodeNotFound, schema.ErrorCode(err))
}

// --- Settings Tests ---

func TestPutAndGetSetting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSetting(ctx, "autosave_cron", "*/5 * * * *"))
	got, err := s.GetSetting(ctx, "autosave_cron")
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", got)

	// Upsert overwrites.
	require.NoError(t, s.PutSetting(ctx, "autosave_cron", "0 * * * *"))
	got, err = s.GetSetting(ctx, "autosave_cron")
	require.NoError(t, err)
	assert.Equal(t, "0 * * * *", got)
}

func TestGetSetting_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSetting(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.ErrorCode(err))
}

func TestListAndDeleteSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutSetting(ctx, "a", "1"))
	require.NoError(t, s.PutSetting(ctx, "b", "2"))

	all, err := s.ListSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

	require.NoError(t, s.DeleteSetting(ctx, "a"))
	all, err = s.ListSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, all)
}

// --- Maintenance Tests ---

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	// Second run is a no-op.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Vacuum(context.Background()))
}
