package coordinatorapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Will-Luck/Docker-Sentinel/internal/metrics"
)

// apiSSE streams DiscoveryUpdatePayload events to a UI client (spec.md
// §6 "Coordinator → UI"). The connection stays open until the client
// disconnects or the server shuts down; a subscriber that falls behind
// the broadcast buffer has events dropped rather than stalling every
// other subscriber (eventbus.Bus.Publish never blocks).
func (s *Server) apiSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.deps.Registry.Subscribe()
	defer sub.Close()

	metrics.SubscribersConnected.Inc()
	defer func() {
		metrics.SubscribersConnected.Dec()
		metrics.SubscriberDropped.Add(float64(sub.Dropped()))
	}()

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case update, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				if s.deps.Log != nil {
					s.deps.Log.Warn("failed to marshal SSE event", "error", err)
				}
				continue
			}
			fmt.Fprintf(w, "event: update\ndata: %s\n\n", data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
