package streaming

import (
	"context"
	"sync"
)

// Subscriber channels hold this many events before the hub starts
// dropping. An SSE writer that stalls longer than a burst loses events
// instead of stalling every other listener.
const subscriberBuffer = 64

// MemoryHub fans events out to in-process subscribers.
type MemoryHub struct {
	mu   sync.Mutex
	subs map[*hubSub]struct{}
}

type hubSub struct {
	ch     chan EditorEvent
	filter EventFilter
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[*hubSub]struct{})}
}

// Publish delivers the event to every subscriber whose filter admits it.
// Never blocks on a full subscriber channel.
func (h *MemoryHub) Publish(ctx context.Context, event EditorEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.filter.admits(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a filtered listener. The returned cancel function is
// idempotent, and cancelling ctx also removes the subscription, so an SSE
// handler that dies without cleanup does not accumulate.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan EditorEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sub := &hubSub{ch: make(chan EditorEvent, subscriberBuffer), filter: filter}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return sub.ch, cancel, nil
}

var _ EventHub = (*MemoryHub)(nil)
