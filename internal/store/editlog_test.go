package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelkit/easel/pkg/schema"
)

func appendOp(t *testing.T, el *EditLog, draftID, op string) *EditEvent {
	t.Helper()
	e := &EditEvent{
		DraftID: draftID,
		Op:      op,
		Payload: json.RawMessage(`{"revision":1}`),
		Actor:   "tester",
	}
	require.NoError(t, el.Append(context.Background(), e))
	return e
}

func TestEditLog_MonotonicSequence(t *testing.T) {
	s := newTestStore(t)
	el := NewEditLog(s)
	d := seedDraft(t, s)

	for i := 1; i <= 5; i++ {
		e := appendOp(t, el, d.ID, "insert")
		assert.Equal(t, int64(i), e.Seq)
	}
}

func TestEditLog_EventsSince(t *testing.T) {
	s := newTestStore(t)
	el := NewEditLog(s)
	d := seedDraft(t, s)
	ctx := context.Background()

	for _, op := range []string{"insert", "remove", "connect"} {
		appendOp(t, el, d.ID, op)
	}

	all, err := el.Events(ctx, d.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "insert", all[0].Op)
	assert.JSONEq(t, `{"revision":1}`, string(all[0].Payload))
	assert.Equal(t, "tester", all[0].Actor)

	tail, err := el.Events(ctx, d.ID, 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "connect", tail[0].Op)
	assert.Equal(t, int64(3), tail[0].Seq)
}

func TestEditLog_DraftScopedSequences(t *testing.T) {
	s := newTestStore(t)
	el := NewEditLog(s)
	a := seedDraft(t, s)
	b := seedDraft(t, s)

	appendOp(t, el, a.ID, "insert")
	appendOp(t, el, b.ID, "insert")
	second := appendOp(t, el, a.ID, "remove")

	assert.Equal(t, int64(2), second.Seq, "sequences are per draft, not global")

	events, err := el.Events(context.Background(), b.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].Seq)
}

func TestEditLog_Summarize(t *testing.T) {
	s := newTestStore(t)
	el := NewEditLog(s)
	d := seedDraft(t, s)

	for _, op := range []string{"insert", "insert", "remove", "selection"} {
		appendOp(t, el, d.ID, op)
	}

	summary, err := el.Summarize(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Total)
	assert.Equal(t, int64(2), summary.Ops["insert"])
	assert.Equal(t, int64(1), summary.Ops["remove"])
	assert.Equal(t, int64(4), summary.Actors["tester"])
	assert.Equal(t, "selection", summary.LastOp)
	require.NotNil(t, summary.FirstAt)
	require.NotNil(t, summary.LastAt)
	assert.False(t, summary.LastAt.Before(*summary.FirstAt))
}

func TestEditLog_Summarize_EmptyDraft(t *testing.T) {
	s := newTestStore(t)
	el := NewEditLog(s)

	summary, err := el.Summarize(context.Background(), "never-edited")
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Nil(t, summary.FirstAt)
}

func TestEditLog_Summarize_SequenceGap(t *testing.T) {
	s := newTestStore(t)
	el := NewEditLog(s)
	d := seedDraft(t, s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		appendOp(t, el, d.ID, "insert")
	}
	// Punch a hole in the log.
	_, err := s.DB().ExecContext(ctx, `DELETE FROM edit_events WHERE draft_id = ? AND seq = 2`, d.ID)
	require.NoError(t, err)

	_, err = el.Summarize(ctx, d.ID)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeStore, schema.ErrorCode(err))
	assert.Contains(t, err.Error(), "sequence gap")
}

func TestEditLog_ConcurrentAppend_DifferentDrafts(t *testing.T) {
	s := newTestStore(t)
	el := NewEditLog(s)
	ctx := context.Background()

	drafts := make([]*Draft, 4)
	for i := range drafts {
		drafts[i] = seedDraft(t, s)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(drafts)*5)
	for _, d := range drafts {
		wg.Add(1)
		go func(draftID string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				e := &EditEvent{DraftID: draftID, Op: fmt.Sprintf("op-%d", i)}
				if err := el.Append(ctx, e); err != nil {
					errs <- err
				}
			}
		}(d.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append failed: %v", err)
	}

	for _, d := range drafts {
		events, err := el.Events(ctx, d.ID, 0)
		require.NoError(t, err)
		require.Len(t, events, 5)
		for i, e := range events {
			assert.Equal(t, int64(i+1), e.Seq)
		}
	}
}
