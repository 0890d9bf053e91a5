package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/genesis/service/metrics"
	"github.com/brojonat/genesis/service/session"
)

const sseBuffer = 64

// sseKeepalive is how often an idle stream receives a comment line.
var sseKeepalive = 10 * time.Second

// handleStreamSession streams session events as Server-Sent Events. The
// first event is the current snapshot; every transition applied after it
// follows as an "event: session" message. Events the snapshot already
// reflects (Seq at or below snapshot.seq) are not sent.
// GET /api/v1/sessions/{id}/stream
func handleStreamSession(registry *session.Registry, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store, ok := lookupSession(w, r, registry)
		if !ok {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		// Subscribe before taking the snapshot so no transition is missed.
		events, unsubscribe := store.Subscribe(sseBuffer)
		defer unsubscribe()

		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		m.RecordSSEConnectionChange(1)
		defer m.RecordSSEConnectionChange(-1)

		logger.DebugContext(r.Context(), "SSE client connected",
			"session_id", store.ID(),
			"remote_addr", r.RemoteAddr,
		)

		snap := store.Snapshot()
		if err := writeSSE(w, "snapshot", snap); err != nil {
			return
		}
		flusher.Flush()

		// Create ticker for keepalive comments
		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case ev, ok := <-events:
				if !ok {
					// Session closed
					fmt.Fprintf(w, "event: closed\ndata: {\"session_id\":%q}\n\n", store.ID())
					flusher.Flush()
					return
				}
				if ev.Seq <= snap.Seq {
					continue
				}
				if err := writeSSE(w, "session", ev); err != nil {
					logger.WarnContext(r.Context(), "failed to write event", "error", err)
					return
				}
				flusher.Flush()
				m.RecordSSEEventSent(string(ev.Kind))

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"session_id", store.ID(),
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}

func writeSSE(w http.ResponseWriter, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
