package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge-ai/pixelforge/internal/event"
	"github.com/pixelforge-ai/pixelforge/internal/metrics"
	"github.com/pixelforge-ai/pixelforge/internal/provider"
	"github.com/pixelforge-ai/pixelforge/internal/store"
	"github.com/pixelforge-ai/pixelforge/internal/tool"
	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

const (
	maxRetries           = 3
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
)

// newRetryBackoff builds the exponential backoff used for model calls.
// Jitter keeps concurrent runs from retrying in lockstep.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}

func newID() string {
	return ulid.Make().String()
}

// run executes the step loop on its own goroutine. It always terminates
// through finalize: status resolved, state written back, credits committed
// once, run-lock released, terminal frame last.
func (o *Orchestrator) run(
	ctx context.Context,
	r *Run,
	sess *types.Session,
	prov provider.Provider,
	model *types.Model,
	turn Turn,
	balance float64,
) {
	cfg := sess.Config

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.MaxOutputTokens
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	msgs := append([]types.Message{}, sess.Messages...)
	msgs = append(msgs, types.Message{
		ID:      newID(),
		Role:    "user",
		Content: turn.Message,
		Images:  turn.Images,
		Created: time.Now().UnixMilli(),
	})

	var (
		steps    []types.Step
		spent    float64
		terminal types.AgentEvent
		started  = time.Now()
	)
	defer func() {
		o.finalize(ctx, r, sess, msgs, steps, spent, terminal, started)
	}()

	toolInfos := o.tools.Infos(cfg.AvailableTools)

	for round := 0; ; round++ {
		if round >= maxSteps {
			terminal = types.AgentEvent{Type: types.EventDone, Reason: types.DoneMaxSteps}
			return
		}

		reply, err := o.callModel(ctx, r, prov, model, cfg, msgs, toolInfos, maxTokens)
		if err != nil {
			terminal = failureEvent(err)
			return
		}

		assistant := types.Message{
			ID:      newID(),
			Role:    "assistant",
			Content: reply.Content,
			Created: time.Now().UnixMilli(),
		}
		for _, tc := range reply.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, types.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: json.RawMessage(tc.Function.Arguments),
			})
		}
		msgs = append(msgs, assistant)

		if len(reply.ToolCalls) == 0 {
			terminal = types.AgentEvent{Type: types.EventDone, Reason: types.DoneCompleted}
			return
		}

		// Requested calls execute sequentially, in request order, so
		// step ordering stays deterministic.
		for i, tc := range reply.ToolCalls {
			if len(steps) >= maxSteps {
				msgs = append(msgs, unansweredToolTurns(reply.ToolCalls[i:])...)
				terminal = types.AgentEvent{Type: types.EventDone, Reason: types.DoneMaxSteps}
				return
			}

			step, toolMsg, fatal := o.executeToolCall(ctx, r, cfg, tc, balance-spent)
			if fatal != nil {
				msgs = append(msgs, unansweredToolTurns(reply.ToolCalls[i:])...)
				terminal = *fatal
				return
			}

			steps = append(steps, step)
			spent += step.Cost
			msgs = append(msgs, toolMsg)

			stepCopy := step
			if err := r.emit(ctx, types.AgentEvent{Type: types.EventStepComplete, Step: &stepCopy}); err != nil {
				msgs = append(msgs, unansweredToolTurns(reply.ToolCalls[i+1:])...)
				terminal = failureEvent(err)
				return
			}
		}
	}
}

// callModel performs one model call, retrying stream creation with backoff.
// A failure mid-stream is fatal: deltas already emitted cannot be unsent.
func (o *Orchestrator) callModel(
	ctx context.Context,
	r *Run,
	prov provider.Provider,
	model *types.Model,
	cfg types.SessionConfig,
	msgs []types.Message,
	toolInfos []*schema.ToolInfo,
	maxTokens int,
) (*schema.Message, error) {
	req := &provider.CompletionRequest{
		Model:       model.ID,
		Messages:    provider.BuildMessages(cfg.SystemPrompt, msgs),
		Tools:       toolInfos,
		MaxTokens:   maxTokens,
		Temperature: cfg.Temperature,
	}

	retry := o.newBackoff(ctx)
	for {
		mctx, cancel := context.WithTimeout(ctx, o.modelTimeout)

		stream, err := prov.CreateCompletion(mctx, req)
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			next := retry.NextBackOff()
			if next == backoff.Stop {
				return nil, fmt.Errorf("completion failed: %w", err)
			}
			log.Warn().Err(err).Str("model", model.ID).Dur("retryIn", next).Msg("model call failed, retrying")
			time.Sleep(next)
			continue
		}

		reply, err := o.consumeStream(ctx, r, stream)
		stream.Close()
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		return reply, nil
	}
}

// consumeStream drains one completion stream, emitting a message_delta per
// content chunk, and concatenates the chunks into the full reply.
func (o *Orchestrator) consumeStream(ctx context.Context, r *Run, stream *provider.CompletionStream) (*schema.Message, error) {
	var chunks []*schema.Message
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("completion stream: %w", err)
		}
		chunks = append(chunks, msg)

		if msg.Content != "" {
			if err := r.emit(ctx, types.AgentEvent{Type: types.EventMessageDelta, Delta: msg.Content}); err != nil {
				return nil, err
			}
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("completion stream returned no chunks")
	}
	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("concat stream chunks: %w", err)
	}
	return full, nil
}

// executeToolCall handles one requested call: allow-list, schema validation,
// remaining-credit check, then execution under the step timeout. Rejections
// and tool failures produce a zero-cost Step and the loop continues; only
// insufficient credits and cancellation are fatal.
func (o *Orchestrator) executeToolCall(
	ctx context.Context,
	r *Run,
	cfg types.SessionConfig,
	tc schema.ToolCall,
	remaining float64,
) (types.Step, types.Message, *types.AgentEvent) {
	name := tc.Function.Name
	rawArgs := json.RawMessage(tc.Function.Arguments)

	var argsMap map[string]any
	_ = json.Unmarshal(rawArgs, &argsMap)

	if err := r.emit(ctx, types.AgentEvent{
		Type:   types.EventToolCallStart,
		Tool:   name,
		CallID: tc.ID,
		Args:   argsMap,
	}); err != nil {
		fatal := failureEvent(err)
		return types.Step{}, types.Message{}, &fatal
	}

	step := types.Step{
		ID:      newID(),
		Tool:    name,
		CallID:  tc.ID,
		Args:    rawArgs,
		Created: time.Now().UnixMilli(),
	}

	t, err := o.resolveAllowed(cfg, name)
	if err == nil {
		err = tool.ValidateInput(t, rawArgs)
	}

	switch {
	case err != nil:
		step.Error = err.Error()

	case t.Cost() > remaining:
		fatal := types.AgentEvent{
			Type:    types.EventError,
			Reason:  types.ErrReasonInsufficientCredits,
			Message: fmt.Sprintf("tool %s costs %.2f credits, %.2f remaining", name, t.Cost(), remaining),
		}
		return types.Step{}, types.Message{}, &fatal

	default:
		tctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		result, err := o.tools.Invoke(tctx, t, rawArgs)
		cancel()

		if ctx.Err() != nil {
			// In-flight call interrupted by disconnect or abort;
			// nothing is charged for it.
			fatal := failureEvent(ctx.Err())
			return types.Step{}, types.Message{}, &fatal
		}
		if err != nil {
			step.Error = err.Error()
		} else {
			step.Output = result.Output
			step.Cost = t.Cost()
		}
	}

	status := "ok"
	if step.Error != "" {
		status = "error"
	}
	metrics.ObserveStep(name, status)

	if err := r.emit(ctx, types.AgentEvent{
		Type:    types.EventToolCallResult,
		Tool:    name,
		CallID:  tc.ID,
		Output:  step.Output,
		Message: step.Error,
	}); err != nil {
		fatal := failureEvent(err)
		return types.Step{}, types.Message{}, &fatal
	}

	content := step.Output
	if step.Error != "" {
		content = "Error: " + step.Error
	}
	toolMsg := types.Message{
		ID:         newID(),
		Role:       "tool",
		Content:    content,
		ToolCallID: tc.ID,
		ToolName:   name,
		Created:    time.Now().UnixMilli(),
	}

	return step, toolMsg, nil
}

// unansweredToolTurns closes out requested calls that never executed.
// Providers reject a transcript where an assistant tool call has no matching
// tool turn, so a run that stops mid-round must answer the remaining calls
// before the transcript is persisted.
func unansweredToolTurns(calls []schema.ToolCall) []types.Message {
	msgs := make([]types.Message, 0, len(calls))
	for _, tc := range calls {
		msgs = append(msgs, types.Message{
			ID:         newID(),
			Role:       "tool",
			Content:    "Error: not executed: the run ended before this call",
			ToolCallID: tc.ID,
			ToolName:   tc.Function.Name,
			Created:    time.Now().UnixMilli(),
		})
	}
	return msgs
}

// resolveAllowed resolves a requested tool against the registry and the
// session allow-list.
func (o *Orchestrator) resolveAllowed(cfg types.SessionConfig, name string) (tool.Tool, error) {
	if !cfg.ToolAllowed(name) {
		return nil, fmt.Errorf("tool %q is not available in this session", name)
	}
	return o.tools.Resolve(name)
}

// failureEvent classifies a loop error into the terminal error event.
func failureEvent(err error) types.AgentEvent {
	reason := types.ErrReasonProviderError
	if errors.Is(err, context.Canceled) {
		reason = types.ErrReasonAborted
	}
	return types.AgentEvent{Type: types.EventError, Reason: reason, Message: err.Error()}
}

// finalize resolves the run. The session never stays in running: state is
// written back through the store, credits are committed once as the sum of
// executed step costs, the run-lock is released, and the terminal frame is
// the last event before the channel closes.
func (o *Orchestrator) finalize(
	ctx context.Context,
	r *Run,
	sess *types.Session,
	msgs []types.Message,
	steps []types.Step,
	spent float64,
	terminal types.AgentEvent,
	started time.Time,
) {
	if terminal.Type == "" {
		terminal = types.AgentEvent{
			Type:    types.EventError,
			Reason:  types.ErrReasonInternal,
			Message: "run ended unexpectedly",
		}
	}

	status := types.StatusError
	outcome := "error"
	if terminal.Type == types.EventDone {
		status = types.StatusCompleted
		outcome = terminal.Reason
	}

	// Detached from the request context so a client disconnect cannot
	// lose the write-back or the charge.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	allSteps := append(append([]types.Step{}, sess.Steps...), steps...)
	total := sess.TotalCreditsUsed + spent
	updated, err := o.store.Update(fctx, sess.ID, store.UpdateFields{
		Status:           &status,
		Messages:         msgs,
		Steps:            allSteps,
		TotalCreditsUsed: &total,
	})
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("failed to persist run state")
	}

	if spent > 0 {
		if err := o.meter.Commit(fctx, sess.UserID, spent); err != nil {
			log.Error().Err(err).Str("user", sess.UserID).Float64("amount", spent).
				Msg("failed to commit credits")
		}
	}

	o.locks.release(sess.ID)

	metrics.ObserveRun(outcome, time.Since(started).Seconds(), spent)

	if updated != nil {
		event.Publish(event.Event{
			Type: event.SessionUpdated,
			Data: event.SessionUpdatedData{Info: updated},
		})
	}
	event.Publish(event.Event{
		Type: event.RunFinished,
		Data: event.RunFinishedData{
			SessionID:    sess.ID,
			UserID:       sess.UserID,
			Status:       string(status),
			CreditsUsed:  spent,
			StepsElapsed: len(steps),
		},
	})

	// Delivered even after an abort as long as the consumer is still
	// reading; only a departed client forfeits the frame.
	select {
	case r.events <- terminal:
		event.PublishSync(event.Event{
			Type: event.RunEvent,
			Data: event.RunEventData{SessionID: r.sessionID, Event: terminal},
		})
	case <-r.clientDone:
	}
	close(r.events)
}
