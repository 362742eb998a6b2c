// Package tool provides the image-processing tool framework: the Tool
// interface, the static registry, and argument validation.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is a named, costed capability the agent can invoke. Tools are
// registered once at process start and are pure dispatch targets.
type Tool interface {
	// ID returns the tool identifier the model calls it by.
	ID() string

	// Description returns the tool description shown to the model.
	Description() string

	// Cost returns the credit cost of one successful invocation.
	Cost() float64

	// Parameters returns the JSON Schema for tool arguments.
	Parameters() json.RawMessage

	// Execute runs the tool. It returns a structured result or a
	// structured error; it never panics through to the caller.
	Execute(ctx context.Context, input json.RawMessage) (*Result, error)
}

// Result is the output of a tool execution.
type Result struct {
	// Output is the text fed back to the model as the tool turn.
	Output string `json:"output"`

	// Images holds result image URLs (or data URLs).
	Images []string `json:"images,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// BaseTool is a closure-backed Tool implementation.
type BaseTool struct {
	id          string
	description string
	cost        float64
	parameters  json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage) (*Result, error)
}

// NewBaseTool creates a tool from its parts.
func NewBaseTool(id, description string, cost float64, params json.RawMessage, execute func(context.Context, json.RawMessage) (*Result, error)) *BaseTool {
	return &BaseTool{
		id:          id,
		description: description,
		cost:        cost,
		parameters:  params,
		execute:     execute,
	}
}

func (t *BaseTool) ID() string                  { return t.id }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Cost() float64               { return t.cost }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	return t.execute(ctx, input)
}
