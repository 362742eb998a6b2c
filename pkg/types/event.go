package types

// EventType discriminates the AgentEvent union streamed during a run.
type EventType string

const (
	EventMessageDelta   EventType = "message_delta"
	EventToolCallStart  EventType = "tool_call_start"
	EventToolCallResult EventType = "tool_call_result"
	EventStepComplete   EventType = "step_complete"
	EventError          EventType = "error"
	EventDone           EventType = "done"
)

// Done reasons.
const (
	DoneCompleted = "completed" // model returned final text
	DoneMaxSteps  = "max_steps" // step budget exhausted
)

// Error reasons.
const (
	ErrReasonInsufficientCredits = "insufficient_credits"
	ErrReasonProviderError       = "provider_error"
	ErrReasonAborted             = "aborted"
	ErrReasonInternal            = "internal_error"
)

// AgentEvent is one unit of the streamed run protocol. Events are produced
// in loop order and are never persisted; only final session state is.
// The last event of a well-formed stream is always error or done.
type AgentEvent struct {
	Type EventType `json:"type"`

	// message_delta
	Delta string `json:"delta,omitempty"`

	// tool_call_start / tool_call_result
	Tool   string         `json:"tool,omitempty"`
	CallID string         `json:"callID,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Output string         `json:"output,omitempty"`

	// step_complete
	Step *Step `json:"step,omitempty"`

	// error and done
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the event closes a run stream.
func (e AgentEvent) Terminal() bool {
	return e.Type == EventError || e.Type == EventDone
}
