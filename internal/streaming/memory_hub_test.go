package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHub_PublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, EditorEvent{
		DraftID: "d1", EventType: EventGraphCommitted, Payload: map[string]any{"revision": 3},
	}))

	got := <-ch
	assert.Equal(t, "d1", got.DraftID)
	assert.Equal(t, EventGraphCommitted, got.EventType)
}

func TestMemoryHub_FilterByDraftAndType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{
		DraftID:    "d1",
		EventTypes: []string{EventNotice},
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, EditorEvent{DraftID: "d2", EventType: EventNotice}))
	require.NoError(t, hub.Publish(ctx, EditorEvent{DraftID: "d1", EventType: EventGraphCommitted}))
	require.NoError(t, hub.Publish(ctx, EditorEvent{DraftID: "d1", EventType: EventNotice}))

	got := <-ch
	assert.Equal(t, "d1", got.DraftID)
	assert.Equal(t, EventNotice, got.EventType)
	assert.Empty(t, ch, "mismatched events were filtered out")
}

func TestMemoryHub_CancelStopsDelivery(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	cancel()

	require.NoError(t, hub.Publish(ctx, EditorEvent{DraftID: "d1", EventType: EventNotice}))
	assert.Empty(t, ch)
}

func TestMemoryHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	_, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	// Overflow the buffer; Publish must not block.
	for i := 0; i < subscriberBuffer*2; i++ {
		require.NoError(t, hub.Publish(ctx, EditorEvent{DraftID: "d1", EventType: EventNotice}))
	}
}

func TestMemoryHub_CancelIsIdempotent(t *testing.T) {
	hub := NewMemoryHub()

	_, cancel, err := hub.Subscribe(context.Background(), EventFilter{})
	require.NoError(t, err)

	cancel()
	cancel()
	assert.Equal(t, 0, subscriberCount(hub))
}

func TestMemoryHub_ContextCancelUnsubscribes(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancelCtx := context.WithCancel(context.Background())

	_, _, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, subscriberCount(hub))

	cancelCtx()
	require.Eventually(t, func() bool { return subscriberCount(hub) == 0 },
		time.Second, 5*time.Millisecond)
}

func TestMemoryHub_SubscribeAfterContextDone(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancelCtx := context.WithCancel(context.Background())
	cancelCtx()

	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.Error(t, err)
}

func subscriberCount(h *MemoryHub) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func TestMemoryHub_ConcurrentPublish(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{EventTypes: []string{EventDraftSaved}})
	require.NoError(t, err)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				_ = hub.Publish(ctx, EditorEvent{DraftID: "d1", EventType: EventDraftSaved})
			}
		}()
	}
	wg.Wait()

	assert.NotEmpty(t, ch)
}
