package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaTool() *BaseTool {
	params := json.RawMessage(`{
		"type": "object",
		"properties": {
			"image": {"type": "string"},
			"factor": {"type": "integer"},
			"lossless": {"type": "boolean"}
		},
		"required": ["image", "factor"]
	}`)
	return NewBaseTool("upscale", "upscales", 3, params,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			return &Result{Output: "done"}, nil
		})
}

func TestValidateInput(t *testing.T) {
	tool := schemaTool()

	tests := []struct {
		name    string
		args    string
		wantErr string
	}{
		{"valid", `{"image": "https://x/cat.png", "factor": 2}`, ""},
		{"valid with optional", `{"image": "https://x/cat.png", "factor": 4, "lossless": true}`, ""},
		{"missing required", `{"image": "https://x/cat.png"}`, `missing required argument "factor"`},
		{"wrong type", `{"image": "https://x/cat.png", "factor": "two"}`, `argument "factor"`},
		{"not an object", `[1, 2]`, "not a JSON object"},
		{"unknown extra passes", `{"image": "i", "factor": 2, "hint": "fast"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tool, json.RawMessage(tt.args))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateInputEmptyArgs(t *testing.T) {
	// No required fields means empty args are fine.
	free := NewBaseTool("free", "no args", 0, json.RawMessage(`{"type": "object", "properties": {}}`),
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			return &Result{}, nil
		})
	assert.NoError(t, ValidateInput(free, nil))

	// A required field makes them invalid.
	assert.Error(t, ValidateInput(schemaTool(), nil))
}
