package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Events handles GET /api/events[?job=ID] (SSE endpoint)
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	eventCh := h.hub.Subscribe(r.URL.Query().Get("job"))
	defer h.hub.Unsubscribe(eventCh)

	// Send initial state
	initialData, _ := json.Marshal(map[string]interface{}{
		"type":    "init",
		"running": h.conv.Running(),
	})
	fmt.Fprintf(w, "data: %s\n\n", initialData)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Status, data)
			flusher.Flush()
		}
	}
}
