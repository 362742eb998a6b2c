package types

import "encoding/json"

// Message is one conversation turn. Messages are append-only within a run
// and insertion order is significant.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"` // "user" | "assistant" | "tool"
	Content string `json:"content,omitempty"`

	// Images holds data URLs or remote URLs attached to a user turn.
	Images []string `json:"images,omitempty"`

	// Tool-turn fields, set when Role == "tool".
	ToolCallID string `json:"toolCallID,omitempty"`
	ToolName   string `json:"toolName,omitempty"`

	// ToolCalls records the calls an assistant turn requested, so the
	// transcript can be replayed to the model on later runs.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	Created int64 `json:"created"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Step records one tool invocation (or failed attempt) within a run.
// Cost is zero for rejected or failed calls; only executed work is charged.
type Step struct {
	ID      string          `json:"id"`
	Tool    string          `json:"tool"`
	CallID  string          `json:"callID"`
	Args    json.RawMessage `json:"args,omitempty"`
	Output  string          `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`
	Cost    float64         `json:"cost"`
	Created int64           `json:"created"`
}

// Succeeded reports whether the step executed without error.
func (s Step) Succeeded() bool {
	return s.Error == ""
}
