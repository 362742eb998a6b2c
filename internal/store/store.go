// Package store provides the session store: keyed lifecycle storage for
// agent sessions with per-user indexing.
//
// The contract is lookup-by-id and list-by-user, not the storage medium:
// the process owns one Store instance, backed by either a process-local map
// or Redis. Updates to a single session are serialized by a per-id lock and
// applied as whole-record replacement.
package store

import (
	"context"

	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

// UpdateFields is a partial session update. Nil fields are left untouched;
// set fields replace the stored value wholesale.
type UpdateFields struct {
	Status           *types.SessionStatus
	Messages         []types.Message
	Steps            []types.Step
	TotalCreditsUsed *float64
}

// Store manages session lifecycle and per-user indexing.
type Store interface {
	// Create stores a new session. Fails with apperr.ErrAlreadyExists if
	// the id collides; callers generate collision-resistant ids.
	Create(ctx context.Context, sess *types.Session) error

	// Get returns the session or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*types.Session, error)

	// Update merges fields into the session under the per-id lock and
	// bumps Time.Updated. Fails with apperr.ErrNotFound if absent.
	Update(ctx context.Context, id string, fields UpdateFields) (*types.Session, error)

	// Delete removes the session and its index entry. It is idempotent:
	// the bool reports whether the session existed.
	Delete(ctx context.Context, id string) (bool, error)

	// ListByUser returns the ids of all sessions owned by userID.
	// Order is unspecified.
	ListByUser(ctx context.Context, userID string) ([]string, error)

	// Close releases backend resources.
	Close() error
}
