package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
	"github.com/pixelforge-ai/pixelforge/internal/event"
	"github.com/pixelforge-ai/pixelforge/internal/provider"
	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

type contextKey string

const contextKeyUserID contextKey = "userID"

// requireUser extracts the caller identity from the X-User-ID header.
// Authentication happens upstream; an absent identity is Unauthorized.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, fmt.Errorf("%w: missing X-User-ID header", apperr.ErrUnauthorized))
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(ctx context.Context) string {
	userID, _ := ctx.Value(contextKeyUserID).(string)
	return userID
}

// ownedSession loads a session and enforces ownership before any further
// logic runs.
func (s *Server) ownedSession(ctx context.Context, id string) (*types.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", apperr.ErrInvalidInput)
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != callerID(ctx) {
		return nil, fmt.Errorf("%w: session %s", apperr.ErrForbidden, id)
	}
	return sess, nil
}

// CreateSessionRequest is the body for POST /session.
type CreateSessionRequest struct {
	Model          string   `json:"model,omitempty"`
	SystemPrompt   string   `json:"systemPrompt,omitempty"`
	Temperature    float64  `json:"temperature,omitempty"`
	MaxTokens      int      `json:"maxTokens,omitempty"`
	MaxSteps       int      `json:"maxSteps,omitempty"`
	AvailableTools []string `json:"availableTools,omitempty"`
}

// CreateSessionResponse is the reply for POST /session.
type CreateSessionResponse struct {
	SessionID string              `json:"sessionId"`
	Status    types.SessionStatus `json:"status"`
	Config    types.SessionConfig `json:"config"`
	CreatedAt int64               `json:"createdAt"`
}

// createSession handles POST /session.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body", apperr.ErrInvalidInput))
		return
	}

	model := req.Model
	if model == "" {
		def, err := s.providers.DefaultModel()
		if err != nil {
			writeError(w, fmt.Errorf("%w: no model configured and no default available", apperr.ErrInvalidInput))
			return
		}
		model = def.ProviderID + "/" + def.ID
	} else {
		providerID, modelID := provider.ParseModelString(model)
		if _, err := s.providers.GetModel(providerID, modelID); err != nil {
			writeError(w, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
			return
		}
	}

	for _, name := range req.AvailableTools {
		if _, err := s.tools.Resolve(name); err != nil {
			writeError(w, fmt.Errorf("%w: availableTools: %v", apperr.ErrInvalidInput, err))
			return
		}
	}

	now := time.Now().UnixMilli()
	sess := &types.Session{
		ID:     ulid.Make().String(),
		UserID: callerID(r.Context()),
		Status: types.StatusIdle,
		Config: types.SessionConfig{
			Model:          model,
			SystemPrompt:   req.SystemPrompt,
			Temperature:    req.Temperature,
			MaxTokens:      req.MaxTokens,
			MaxSteps:       req.MaxSteps,
			AvailableTools: req.AvailableTools,
		},
		Time: types.SessionTime{Created: now, Updated: now},
	}

	if err := s.store.Create(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}

	event.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{Info: sess},
	})

	writeJSON(w, http.StatusOK, CreateSessionResponse{
		SessionID: sess.ID,
		Status:    sess.Status,
		Config:    sess.Config,
		CreatedAt: sess.Time.Created,
	})
}

// getSessions handles GET /session. With ?id= it returns one summary;
// without it, every session owned by the caller.
func (s *Server) getSessions(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id != "" {
		sess, err := s.ownedSession(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.Summarize())
		return
	}

	ids, err := s.store.ListByUser(r.Context(), callerID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]types.SessionSummary, 0, len(ids))
	for _, id := range ids {
		sess, err := s.store.Get(r.Context(), id)
		if err != nil {
			// Deleted between list and get; skip.
			continue
		}
		summaries = append(summaries, sess.Summarize())
	}
	writeJSON(w, http.StatusOK, summaries)
}

// DeleteSessionResponse is the reply for DELETE /session.
type DeleteSessionResponse struct {
	Success bool `json:"success"`
	Existed bool `json:"existed"`
}

// deleteSession handles DELETE /session. Deletion is idempotent: a missing
// session is success with existed=false, not an error.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	sess, err := s.ownedSession(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusOK, DeleteSessionResponse{Success: true, Existed: false})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	existed, err := s.store.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	event.Publish(event.Event{
		Type: event.SessionDeleted,
		Data: event.SessionDeletedData{SessionID: id, UserID: sess.UserID},
	})

	writeJSON(w, http.StatusOK, DeleteSessionResponse{Success: true, Existed: existed})
}

// abortSession handles POST /session/abort. The run finalizes with status
// error at its next suspension point.
func (s *Server) abortSession(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if _, err := s.ownedSession(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	if err := s.orch.Abort(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
