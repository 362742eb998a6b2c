package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pixelforge-ai/pixelforge/internal/event"
	"github.com/pixelforge-ai/pixelforge/internal/logging"
)

// SSEHeartbeatInterval is the interval for SSE heartbeat comments on the
// observer stream.
const SSEHeartbeatInterval = 30 * time.Second

// sseWriter wraps http.ResponseWriter for SSE. Every frame is flushed
// immediately; frame order equals write order.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

// prepare sets the stream headers and flushes them to the client.
func (s *sseWriter) prepare() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering

	s.w.WriteHeader(http.StatusOK)
	s.flush()
}

// writeData writes a bare `data:` frame.
func (s *sseWriter) writeData(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flush()
	return nil
}

// writeEvent writes a named `event:` + `data:` frame.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	s.flush()
	return nil
}

// writeHeartbeat writes an SSE comment to keep the connection alive.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprint(s.w, ": heartbeat\n\n")
	s.flush()
}

func (s *sseWriter) flush() {
	// ResponseController flushes through middleware wrappers; fall back
	// to the plain Flusher if it cannot.
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
}

// busEvent is the wire envelope for observer stream frames.
type busEvent struct {
	Type       event.Type `json:"type"`
	Properties any        `json:"properties"`
}

// globalEvents handles GET /event: an observer SSE stream of everything on
// the bus.
func (s *Server) globalEvents(w http.ResponseWriter, r *http.Request) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, err)
		return
	}
	sse.prepare()

	if err := sse.writeEvent("message", busEvent{Type: "server.connected", Properties: map[string]any{}}); err != nil {
		return
	}

	// Small buffer for low latency; a slow observer drops events rather
	// than stalling publishers.
	events := make(chan event.Event, 10)
	unsub := event.SubscribeAll(func(e event.Event) {
		select {
		case events <- e:
		default:
			logging.Warn().
				Str("eventType", string(e.Type)).
				Msg("observer event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent("message", busEvent{Type: e.Type, Properties: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
