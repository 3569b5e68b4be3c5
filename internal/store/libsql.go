package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/easelkit/easel/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. edit log).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Drafts ---

func (s *LibSQLStore) CreateDraft(ctx context.Context, d *Draft) error {
	if len(d.Graph) == 0 {
		return schema.NewError(schema.ErrCodeStore, "draft graph payload is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, slug, display_name, description, workflow_id, graph, dirty, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Slug, nullStr(d.DisplayName), nullStr(d.Description),
		nullInt(d.WorkflowID), string(d.Graph), boolInt(d.Dirty),
		timeOrNow(d.CreatedAt), timeOrNow(d.UpdatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return schema.NewErrorf(schema.ErrCodeConflict, "draft slug %q already exists", d.Slug)
	}
	return err
}

func (s *LibSQLStore) GetDraft(ctx context.Context, id string) (*Draft, error) {
	return s.getDraftWhere(ctx, "id = ?", id, "draft", id)
}

func (s *LibSQLStore) GetDraftBySlug(ctx context.Context, slug string) (*Draft, error) {
	return s.getDraftWhere(ctx, "slug = ?", slug, "draft", slug)
}

func (s *LibSQLStore) getDraftWhere(ctx context.Context, where string, arg any, resource, id string) (*Draft, error) {
	d := &Draft{}
	var (
		displayName, description sql.NullString
		workflowID               sql.NullInt64
		graphJSON                string
		dirty                    int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, display_name, description, workflow_id, graph, dirty, created_at, updated_at
		 FROM drafts WHERE `+where, arg,
	).Scan(&d.ID, &d.Slug, &displayName, &description, &workflowID, &graphJSON, &dirty, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound(resource, id)
	}
	if err != nil {
		return nil, err
	}
	d.DisplayName = displayName.String
	d.Description = description.String
	d.WorkflowID = workflowID.Int64
	d.Graph = json.RawMessage(graphJSON)
	d.Dirty = dirty != 0
	return d, nil
}

func (s *LibSQLStore) UpdateDraft(ctx context.Context, id string, update DraftUpdate) error {
	var sets []string
	var args []any

	if update.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, nullStr(*update.DisplayName))
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullStr(*update.Description))
	}
	if update.Graph != nil {
		sets = append(sets, "graph = ?")
		args = append(args, string(update.Graph))
	}
	if update.Dirty != nil {
		sets = append(sets, "dirty = ?")
		args = append(args, boolInt(*update.Dirty))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE drafts SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "draft", id)
}

func (s *LibSQLStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]*Draft, error) {
	var where []string
	var args []any

	if filter.Slug != "" {
		where = append(where, "slug = ?")
		args = append(args, filter.Slug)
	}
	if filter.Dirty != nil {
		where = append(where, "dirty = ?")
		args = append(args, boolInt(*filter.Dirty))
	}

	query := "SELECT id, slug, display_name, description, workflow_id, graph, dirty, created_at, updated_at FROM drafts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		d := &Draft{}
		var (
			displayName, description sql.NullString
			workflowID               sql.NullInt64
			graphJSON                string
			dirty                    int
		)
		if err := rows.Scan(&d.ID, &d.Slug, &displayName, &description, &workflowID,
			&graphJSON, &dirty, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.DisplayName = displayName.String
		d.Description = description.String
		d.WorkflowID = workflowID.Int64
		d.Graph = json.RawMessage(graphJSON)
		d.Dirty = dirty != 0
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (s *LibSQLStore) DeleteDraft(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "draft", id)
}

// --- Versions ---

func (s *LibSQLStore) CreateVersion(ctx context.Context, v *Version) error {
	if len(v.Graph) == 0 {
		return schema.NewError(schema.ErrCodeStore, "version graph payload is empty")
	}
	origin := v.Origin
	if origin == "" {
		origin = VersionOriginManual
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version tx: %w", err)
	}
	defer tx.Rollback()

	if v.Active {
		if _, err := tx.ExecContext(ctx,
			`UPDATE versions SET active = 0 WHERE draft_id = ?`, v.DraftID); err != nil {
			return fmt.Errorf("deactivate versions: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO versions (id, draft_id, name, origin, graph, created_by, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.DraftID, nullStr(v.Name), origin, string(v.Graph),
		nullStr(v.CreatedBy), boolInt(v.Active), timeOrNow(v.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return tx.Commit()
}

func (s *LibSQLStore) GetVersion(ctx context.Context, id string) (*Version, error) {
	v := &Version{}
	var (
		name, createdBy sql.NullString
		graphJSON       string
		active          int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, draft_id, name, origin, graph, created_by, active, created_at
		 FROM versions WHERE id = ?`, id,
	).Scan(&v.ID, &v.DraftID, &name, &v.Origin, &graphJSON, &createdBy, &active, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("version", id)
	}
	if err != nil {
		return nil, err
	}
	v.Name = name.String
	v.CreatedBy = createdBy.String
	v.Graph = json.RawMessage(graphJSON)
	v.Active = active != 0
	return v, nil
}

func (s *LibSQLStore) ListVersions(ctx context.Context, draftID string, filter VersionFilter) ([]*Version, error) {
	where := []string{"draft_id = ?"}
	args := []any{draftID}

	if filter.Origin != "" {
		where = append(where, "origin = ?")
		args = append(args, filter.Origin)
	}
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, boolInt(*filter.Active))
	}

	query := `SELECT id, draft_id, name, origin, graph, created_by, active, created_at FROM versions
	 WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*Version
	for rows.Next() {
		v := &Version{}
		var (
			name, createdBy sql.NullString
			graphJSON       string
			active          int
		)
		if err := rows.Scan(&v.ID, &v.DraftID, &name, &v.Origin, &graphJSON, &createdBy, &active, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Name = name.String
		v.CreatedBy = createdBy.String
		v.Graph = json.RawMessage(graphJSON)
		v.Active = active != 0
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ActivateVersion marks one version of a draft active and every other
// version inactive, in a single transaction.
func (s *LibSQLStore) ActivateVersion(ctx context.Context, draftID, versionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE versions SET active = 0 WHERE draft_id = ?`, draftID); err != nil {
		return fmt.Errorf("deactivate versions: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE versions SET active = 1 WHERE id = ? AND draft_id = ?`, versionID, draftID)
	if err != nil {
		return fmt.Errorf("activate version: %w", err)
	}
	if err := checkRowsAffected(res, "version", versionID); err != nil {
		return err
	}
	return tx.Commit()
}

// PruneAutosaves deletes inactive autosave versions beyond the keep newest
// and reports how many rows went away.
func (s *LibSQLStore) PruneAutosaves(ctx context.Context, draftID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM versions WHERE draft_id = ? AND origin = ? AND active = 0 AND id NOT IN (
		 SELECT id FROM versions WHERE draft_id = ? AND origin = ? AND active = 0
		 ORDER BY created_at DESC, id DESC LIMIT ?)`,
		draftID, VersionOriginAutosave, draftID, VersionOriginAutosave, keep,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- Edit log ---

// AppendEditEvent appends an event with a monotonically increasing per-draft
// sequence. The transaction forces a write lock before reading the current
// maximum so concurrent appenders cannot interleave.
func (s *LibSQLStore) AppendEditEvent(ctx context.Context, event *EditEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin edit event tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx starts a deferred transaction; a write-intent
	// statement upgrades it to a write lock before the sequence read.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM edit_events WHERE draft_id = ?`, event.DraftID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Seq = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO edit_events (draft_id, seq, op, payload, actor, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.DraftID, seq, event.Op, nullRaw(event.Payload), nullStr(event.Actor), event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert edit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edit event: %w", err)
	}
	return nil
}

// GetEditEvents returns events for a draft with seq > since, ordered by seq ASC.
func (s *LibSQLStore) GetEditEvents(ctx context.Context, draftID string, since int64) ([]*EditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, draft_id, seq, op, payload, actor, timestamp FROM edit_events
		 WHERE draft_id = ? AND seq > ? ORDER BY seq ASC`, draftID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*EditEvent
	for rows.Next() {
		e := &EditEvent{}
		var payload, actor sql.NullString
		if err := rows.Scan(&e.ID, &e.DraftID, &e.Seq, &e.Op, &payload, &actor, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Payload = rawOrNil(payload)
		e.Actor = actor.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Settings ---

func (s *LibSQLStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}

func (s *LibSQLStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", storeNotFound("setting", key)
	}
	return value, err
}

func (s *LibSQLStore) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *LibSQLStore) DeleteSetting(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "setting", key)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.EaselError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
