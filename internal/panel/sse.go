package panel

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/easelkit/easel/internal/streaming"
)

// handleSSEGlobal streams all editor events to the client via
// Server-Sent Events.
func (s *Server) handleSSEGlobal(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, streaming.EventFilter{})
}

// handleSSEDraft streams events for a single draft. An optional "types"
// query param narrows the event types further.
func (s *Server) handleSSEDraft(w http.ResponseWriter, r *http.Request) {
	filter := streaming.EventFilter{DraftID: r.PathValue("id")}
	if types := r.URL.Query()["type"]; len(types) > 0 {
		filter.EventTypes = types
	}
	s.serveSSE(w, r, filter)
}

// serveSSE is the common SSE implementation.
func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, filter streaming.EventFilter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel, err := s.deps.Manager.Hub().Subscribe(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	// Flush headers so clients see the stream open immediately.
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
			flusher.Flush()
		}
	}
}
