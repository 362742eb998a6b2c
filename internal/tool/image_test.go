package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

func TestRemoteToolExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/upscale", r.URL.Path)

		var args map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "https://x/cat.png", args["image"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(remoteResponse{
			Output: "upscaled 2x",
			Images: []string{"https://cdn.example.com/out.png"},
		})
	}))
	defer srv.Close()

	r := DefaultRegistry(types.ToolsConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	up, err := r.Resolve("upscale")
	require.NoError(t, err)

	result, err := r.Invoke(context.Background(), up, json.RawMessage(`{"image": "https://x/cat.png", "factor": 2}`))
	require.NoError(t, err)
	assert.Equal(t, "upscaled 2x", result.Output)
	assert.Equal(t, []string{"https://cdn.example.com/out.png"}, result.Images)
}

func TestRemoteToolExecuteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(remoteResponse{Error: "unsupported image format"})
	}))
	defer srv.Close()

	r := DefaultRegistry(types.ToolsConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	rb, err := r.Resolve("remove_background")
	require.NoError(t, err)

	result, err := r.Invoke(context.Background(), rb, json.RawMessage(`{"image": "x"}`))
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image format")
}
