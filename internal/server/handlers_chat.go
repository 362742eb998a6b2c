package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
	"github.com/pixelforge-ai/pixelforge/internal/engine"
)

// ChatRequest is the body for POST /chat.
type ChatRequest struct {
	SessionID string   `json:"sessionId"`
	Message   string   `json:"message,omitempty"`
	Images    []string `json:"images,omitempty"`
}

// chat handles POST /chat: it starts a run and streams its AgentEvents as
// SSE data frames. Failures before the run starts are plain JSON errors;
// once streaming begins every failure arrives as an error event, so the
// client always sees a parseable terminus.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body", apperr.ErrInvalidInput))
		return
	}

	sess, err := s.ownedSession(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := s.orch.RunStream(r.Context(), sess, engine.Turn{
		Message: req.Message,
		Images:  req.Images,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	sse.prepare()

	// One frame per event, flushed as produced. A write failure means the
	// client is gone; the request context cancels and the run aborts at
	// its next suspension point.
	for ev := range run.Events() {
		if err := sse.writeData(ev); err != nil {
			return
		}
	}
}
