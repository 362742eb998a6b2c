package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

func TestSSEWriterDataFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, sse.writeData(types.AgentEvent{Type: types.EventDone, Reason: types.DoneCompleted}))

	body := rec.Body.String()
	assert.Equal(t, "data: {\"type\":\"done\",\"reason\":\"completed\"}\n\n", body)
	assert.True(t, rec.Flushed)
}

func TestSSEWriterNamedEventFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, sse.writeEvent("message", map[string]string{"hello": "world"}))

	assert.Equal(t, "event: message\ndata: {\"hello\":\"world\"}\n\n", rec.Body.String())
}

func TestSSEWriterFrameOrdering(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, sse.writeData(types.AgentEvent{Type: types.EventMessageDelta, Delta: "a"}))
	require.NoError(t, sse.writeData(types.AgentEvent{Type: types.EventMessageDelta, Delta: "b"}))
	sse.writeHeartbeat()

	body := rec.Body.String()
	first := strings.Index(body, `data: {"type":"message_delta","delta":"a"}`)
	second := strings.Index(body, `data: {"type":"message_delta","delta":"b"}`)
	require.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, second)
	assert.Contains(t, body, ": heartbeat\n\n")
}
