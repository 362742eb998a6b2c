package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

func newMockTool(id string, cost float64) *BaseTool {
	params := json.RawMessage(`{"type": "object", "properties": {}}`)
	return NewBaseTool(id, "a mock tool", cost, params,
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			return &Result{Output: "ok"}, nil
		})
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(newMockTool("upscale", 3))

	got, err := r.Resolve("upscale")
	require.NoError(t, err)
	assert.Equal(t, "upscale", got.ID())
	assert.Equal(t, 3.0, got.Cost())
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewRegistry(newMockTool("upscale", 3))

	_, err := r.Resolve("teleport")
	assert.ErrorIs(t, err, apperr.ErrUnknownTool)
}

func TestRegistryInfosAllowList(t *testing.T) {
	r := NewRegistry(newMockTool("upscale", 3), newMockTool("compress", 1), newMockTool("generate_image", 5))

	infos := r.Infos(nil)
	assert.Len(t, infos, 3)

	infos = r.Infos([]string{"compress"})
	require.Len(t, infos, 1)
	assert.Equal(t, "compress", infos[0].Name)
}

func TestRegistryInvokeRecoversPanic(t *testing.T) {
	bomb := NewBaseTool("bomb", "panics", 1, json.RawMessage(`{}`),
		func(ctx context.Context, input json.RawMessage) (*Result, error) {
			panic("boom")
		})
	r := NewRegistry(bomb)

	result, err := r.Invoke(context.Background(), bomb, nil)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestDefaultRegistryTools(t *testing.T) {
	r := DefaultRegistry(types.ToolsConfig{BaseURL: "https://img.example.com", TimeoutSeconds: 5})

	assert.Equal(t, []string{"compress", "generate_image", "remove_background", "style_transfer", "upscale"}, r.IDs())

	up, err := r.Resolve("upscale")
	require.NoError(t, err)
	assert.Equal(t, CostUpscale, up.Cost())
}
