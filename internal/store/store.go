package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Drafts
	CreateDraft(ctx context.Context, d *Draft) error
	GetDraft(ctx context.Context, id string) (*Draft, error)
	GetDraftBySlug(ctx context.Context, slug string) (*Draft, error)
	UpdateDraft(ctx context.Context, id string, update DraftUpdate) error
	ListDrafts(ctx context.Context, filter DraftFilter) ([]*Draft, error)
	DeleteDraft(ctx context.Context, id string) error

	// Versions
	CreateVersion(ctx context.Context, v *Version) error
	GetVersion(ctx context.Context, id string) (*Version, error)
	ListVersions(ctx context.Context, draftID string, filter VersionFilter) ([]*Version, error)
	ActivateVersion(ctx context.Context, draftID, versionID string) error
	PruneAutosaves(ctx context.Context, draftID string, keep int) (int, error)

	// Edit log (append-only)
	AppendEditEvent(ctx context.Context, event *EditEvent) error
	GetEditEvents(ctx context.Context, draftID string, since int64) ([]*EditEvent, error)

	// Settings
	PutSetting(ctx context.Context, key, value string) error
	GetSetting(ctx context.Context, key string) (string, error)
	ListSettings(ctx context.Context) (map[string]string, error)
	DeleteSetting(ctx context.Context, key string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
