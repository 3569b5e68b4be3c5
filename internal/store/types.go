package store

import (
	"encoding/json"
	"time"
)

// Draft is the persisted representation of an editable canvas. The graph
// column holds the canonical wire JSON produced by the codec; the store
// never re-encodes it.
type Draft struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	DisplayName string          `json:"display_name,omitempty"`
	Description string          `json:"description,omitempty"`
	WorkflowID  int64           `json:"workflow_id,omitempty"`
	Graph       json.RawMessage `json:"graph"`
	Dirty       bool            `json:"dirty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Version origins. Autosave versions are subject to retention pruning;
// manual and deploy versions are kept until explicitly deleted.
const (
	VersionOriginManual   = "manual"
	VersionOriginAutosave = "autosave"
	VersionOriginDeploy   = "deploy"
)

// Version is an immutable snapshot of a draft's graph. At most one version
// per draft is active at a time; activation is exclusive.
type Version struct {
	ID        string          `json:"id"`
	DraftID   string          `json:"draft_id"`
	Name      string          `json:"name,omitempty"`
	Origin    string          `json:"origin"`
	Graph     json.RawMessage `json:"graph"`
	CreatedBy string          `json:"created_by,omitempty"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// EditEvent is an immutable entry in the per-draft edit log.
type EditEvent struct {
	ID        int64           `json:"id"`
	DraftID   string          `json:"draft_id"`
	Seq       int64           `json:"seq"`
	Op        string          `json:"op"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// --- Filter and update types ---

// DraftFilter specifies criteria for listing drafts.
type DraftFilter struct {
	Slug   string `json:"slug,omitempty"`
	Dirty  *bool  `json:"dirty,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// DraftUpdate specifies mutable fields of a draft. Nil pointers and nil
// raw messages leave the column untouched.
type DraftUpdate struct {
	DisplayName *string         `json:"display_name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Graph       json.RawMessage `json:"graph,omitempty"`
	Dirty       *bool           `json:"dirty,omitempty"`
}

// VersionFilter specifies criteria for listing versions of a draft.
type VersionFilter struct {
	Origin string `json:"origin,omitempty"`
	Active *bool  `json:"active,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}
