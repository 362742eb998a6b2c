package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

// Memory is a process-local Store. Sessions are cloned on the way in and
// out so callers can never mutate stored state directly.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	byUser   map[string][]string

	updates *keyedLocks
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*types.Session),
		byUser:   make(map[string][]string),
		updates:  newKeyedLocks(),
	}
}

func (m *Memory) Create(ctx context.Context, sess *types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s: %w", sess.ID, apperr.ErrAlreadyExists)
	}

	m.sessions[sess.ID] = cloneSession(sess)
	m.byUser[sess.UserID] = append(m.byUser[sess.UserID], sess.ID)
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return cloneSession(sess), nil
}

func (m *Memory) Update(ctx context.Context, id string, fields UpdateFields) (*types.Session, error) {
	// Per-id lock serializes concurrent updates; the whole record is
	// replaced so field writes never interleave.
	lock := m.updates.get(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyFields(current, fields)
	current.Time.Updated = time.Now().UnixMilli()

	m.mu.Lock()
	m.sessions[id] = cloneSession(current)
	m.mu.Unlock()

	return current, nil
}

func (m *Memory) Delete(ctx context.Context, id string) (bool, error) {
	// Same lock order as Update, so a delete can never land between an
	// update's read and its write and resurrect the record.
	lock := m.updates.get(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return false, nil
	}

	delete(m.sessions, id)
	ids := m.byUser[sess.UserID]
	for i, sid := range ids {
		if sid == id {
			m.byUser[sess.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	m.updates.drop(id)
	return true, nil
}

func (m *Memory) ListByUser(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, len(m.byUser[userID]))
	copy(ids, m.byUser[userID])
	return ids, nil
}

func (m *Memory) Close() error { return nil }

// applyFields merges a partial update into sess.
func applyFields(sess *types.Session, fields UpdateFields) {
	if fields.Status != nil {
		sess.Status = *fields.Status
	}
	if fields.Messages != nil {
		sess.Messages = fields.Messages
	}
	if fields.Steps != nil {
		sess.Steps = fields.Steps
	}
	if fields.TotalCreditsUsed != nil {
		sess.TotalCreditsUsed = *fields.TotalCreditsUsed
	}
}

// cloneSession deep-copies a session record.
func cloneSession(s *types.Session) *types.Session {
	out := *s
	out.Messages = append([]types.Message(nil), s.Messages...)
	out.Steps = append([]types.Step(nil), s.Steps...)
	out.Config.AvailableTools = append([]string(nil), s.Config.AvailableTools...)
	return &out
}
