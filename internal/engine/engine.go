// Package engine implements the agent orchestrator: the bounded step loop
// that drives model calls and tool invocations for one session run.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
	"github.com/pixelforge-ai/pixelforge/internal/credit"
	"github.com/pixelforge-ai/pixelforge/internal/event"
	"github.com/pixelforge-ai/pixelforge/internal/provider"
	"github.com/pixelforge-ai/pixelforge/internal/store"
	"github.com/pixelforge-ai/pixelforge/internal/tool"
	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

const (
	// DefaultMaxSteps bounds tool-call rounds when the session config
	// does not set its own limit.
	DefaultMaxSteps = 10

	// DefaultModelTimeout bounds one model call, stream consumption
	// included.
	DefaultModelTimeout = 5 * time.Minute

	// DefaultStepTimeout bounds one tool invocation.
	DefaultStepTimeout = 2 * time.Minute
)

// Config tunes orchestrator timeouts. Zero values take the defaults.
type Config struct {
	ModelTimeout time.Duration
	StepTimeout  time.Duration
}

// Orchestrator executes agent runs. One run per session at a time; a second
// concurrent run on the same session fails fast with apperr.ErrConflict.
type Orchestrator struct {
	store     store.Store
	tools     *tool.Registry
	meter     credit.Meter
	providers *provider.Registry

	modelTimeout time.Duration
	stepTimeout  time.Duration

	locks      *runLocks
	newBackoff func(context.Context) backoff.BackOff
}

// New creates an orchestrator.
func New(st store.Store, tools *tool.Registry, meter credit.Meter, providers *provider.Registry, cfg Config) *Orchestrator {
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	return &Orchestrator{
		store:        st,
		tools:        tools,
		meter:        meter,
		providers:    providers,
		modelTimeout: cfg.ModelTimeout,
		stepTimeout:  cfg.StepTimeout,
		locks:        newRunLocks(),
		newBackoff:   newRetryBackoff,
	}
}

// Turn is the user input that starts a run.
type Turn struct {
	Message string   `json:"message,omitempty"`
	Images  []string `json:"images,omitempty"`
}

func (t Turn) empty() bool {
	return strings.TrimSpace(t.Message) == "" && len(t.Images) == 0
}

// Run is one in-flight agent run. Events is unbuffered: production is
// coupled to consumption, so the loop never gets ahead of what the
// transport has flushed. The channel closes after the terminal frame.
type Run struct {
	sessionID string
	events    chan types.AgentEvent

	// clientDone signals that the consumer is gone and nobody will read
	// the terminal frame. Distinct from the run context, which an abort
	// cancels while the consumer is still reading.
	clientDone <-chan struct{}
}

// Events returns the run's event stream.
func (r *Run) Events() <-chan types.AgentEvent {
	return r.events
}

// emit delivers one event to the consumer and mirrors it onto the global
// bus. It fails once ctx is cancelled, which aborts the loop at the next
// suspension point.
func (r *Run) emit(ctx context.Context, ev types.AgentEvent) error {
	select {
	case r.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}
	event.PublishSync(event.Event{
		Type: event.RunEvent,
		Data: event.RunEventData{SessionID: r.sessionID, Event: ev},
	})
	return nil
}

// RunStream starts a run for the session. Pre-run failures (conflict,
// credit floor, invalid turn, unknown model) are returned as plain errors
// before any event is produced; once a Run is returned, every subsequent
// failure surfaces as an error event on the stream instead.
func (o *Orchestrator) RunStream(ctx context.Context, sess *types.Session, turn Turn) (*Run, error) {
	if turn.empty() {
		return nil, fmt.Errorf("%w: turn requires a message or images", apperr.ErrInvalidInput)
	}

	providerID, modelID := provider.ParseModelString(sess.Config.Model)
	prov, err := o.providers.Get(providerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	model, err := o.providers.GetModel(providerID, modelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if !o.locks.tryAcquire(sess.ID, cancel) {
		cancel()
		return nil, fmt.Errorf("%w: run already in progress for session %s", apperr.ErrConflict, sess.ID)
	}

	fail := func(err error) (*Run, error) {
		o.locks.release(sess.ID)
		cancel()
		return nil, err
	}

	balance, err := o.meter.Balance(ctx, sess.UserID)
	if err != nil {
		return fail(fmt.Errorf("credit balance: %w", err))
	}
	if balance < credit.Floor {
		return fail(fmt.Errorf("%w: balance %.2f below run floor %.2f",
			apperr.ErrInsufficientCredits, balance, credit.Floor))
	}

	running := types.StatusRunning
	if _, err := o.store.Update(ctx, sess.ID, store.UpdateFields{Status: &running}); err != nil {
		return fail(err)
	}

	r := &Run{sessionID: sess.ID, events: make(chan types.AgentEvent), clientDone: ctx.Done()}

	event.Publish(event.Event{
		Type: event.RunStarted,
		Data: event.RunStartedData{SessionID: sess.ID, UserID: sess.UserID},
	})

	go o.run(runCtx, r, sess, prov, model, turn, balance)
	return r, nil
}

// Abort cancels the active run for a session. The run aborts at its next
// suspension point and finalizes with status error.
func (o *Orchestrator) Abort(sessionID string) error {
	if !o.locks.abort(sessionID) {
		return fmt.Errorf("%w: no active run for session %s", apperr.ErrNotFound, sessionID)
	}
	return nil
}

// Running reports whether the session has an active run.
func (o *Orchestrator) Running(sessionID string) bool {
	return o.locks.running(sessionID)
}

// runLocks is the per-session single-flight guard. The cancel func lets
// Abort reach into the run without holding a reference to it.
type runLocks struct {
	mu   sync.Mutex
	held map[string]context.CancelFunc
}

func newRunLocks() *runLocks {
	return &runLocks{held: make(map[string]context.CancelFunc)}
}

func (l *runLocks) tryAcquire(id string, cancel context.CancelFunc) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[id]; ok {
		return false
	}
	l.held[id] = cancel
	return true
}

func (l *runLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}

// abort cancels the run but leaves the lock held; the run itself releases
// it during finalization.
func (l *runLocks) abort(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cancel, ok := l.held[id]
	if !ok {
		return false
	}
	cancel()
	return true
}

func (l *runLocks) running(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[id]
	return ok
}
