package store

import (
	"context"
	"fmt"
	"time"

	"github.com/easelkit/easel/pkg/schema"
)

// EditLog provides history queries on top of a LibSQLStore's edit events.
type EditLog struct {
	store *LibSQLStore
}

// NewEditLog wraps a LibSQLStore to provide edit-history operations.
func NewEditLog(s *LibSQLStore) *EditLog {
	return &EditLog{store: s}
}

// Append records one edit operation against a draft.
func (el *EditLog) Append(ctx context.Context, event *EditEvent) error {
	return el.store.AppendEditEvent(ctx, event)
}

// Events returns events for a draft with seq > since, ordered by seq ASC.
func (el *EditLog) Events(ctx context.Context, draftID string, since int64) ([]*EditEvent, error) {
	return el.store.GetEditEvents(ctx, draftID, since)
}

// EditSummary aggregates a draft's edit history.
type EditSummary struct {
	DraftID string           `json:"draft_id"`
	Total   int64            `json:"total"`
	Ops     map[string]int64 `json:"ops,omitempty"`
	Actors  map[string]int64 `json:"actors,omitempty"`
	LastOp  string           `json:"last_op,omitempty"`
	FirstAt *time.Time       `json:"first_at,omitempty"`
	LastAt  *time.Time       `json:"last_at,omitempty"`
}

// Summarize replays a draft's full edit log into per-op and per-actor
// counts. Returns an error if sequence gaps are detected, since a gap means
// the log can no longer be trusted as a complete history.
func (el *EditLog) Summarize(ctx context.Context, draftID string) (*EditSummary, error) {
	events, err := el.store.GetEditEvents(ctx, draftID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for summary: %w", err)
	}

	summary := &EditSummary{DraftID: draftID}
	if len(events) == 0 {
		return summary, nil
	}

	// Validate sequence contiguity.
	for i, e := range events {
		expected := int64(i + 1)
		if e.Seq != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in draft %s: expected %d, got %d", draftID, expected, e.Seq)
		}
	}

	summary.Total = int64(len(events))
	summary.Ops = make(map[string]int64)
	summary.Actors = make(map[string]int64)
	for _, e := range events {
		summary.Ops[e.Op]++
		if e.Actor != "" {
			summary.Actors[e.Actor]++
		}
	}
	last := events[len(events)-1]
	summary.LastOp = last.Op

	first := events[0].Timestamp
	summary.FirstAt = &first
	end := last.Timestamp
	summary.LastAt = &end

	return summary, nil
}
