package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge-ai/pixelforge/internal/credit"
	"github.com/pixelforge-ai/pixelforge/internal/engine"
	"github.com/pixelforge-ai/pixelforge/internal/provider"
	"github.com/pixelforge-ai/pixelforge/internal/store"
	"github.com/pixelforge-ai/pixelforge/internal/tool"
	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

// cannedProvider answers every completion with fixed final text.
type cannedProvider struct {
	text string
}

func (p *cannedProvider) ID() string                            { return "fake" }
func (p *cannedProvider) Name() string                          { return "Fake" }
func (p *cannedProvider) ChatModel() model.ToolCallingChatModel { return nil }

func (p *cannedProvider) Models() []types.Model {
	return []types.Model{{ID: "fake-model", ProviderID: "fake", MaxOutputTokens: 512, SupportsTools: true}}
}

func (p *cannedProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	return provider.NewCompletionStream(schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage(p.text, nil),
	})), nil
}

type testEnv struct {
	srv   *httptest.Server
	store store.Store
	meter *credit.MemoryMeter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })

	meter := credit.NewMemoryMeter()
	meter.SetBalance("alice", 10)
	meter.SetBalance("bob", 10)

	reg := provider.NewRegistry(&types.Config{Model: "fake/fake-model"})
	reg.Register(&cannedProvider{text: "hello there"})

	tools := tool.NewRegistry(tool.NewBaseTool("compress", "Compress an image", 1,
		json.RawMessage(`{"type":"object","properties":{"image":{"type":"string"}},"required":["image"]}`),
		func(ctx context.Context, input json.RawMessage) (*tool.Result, error) {
			return &tool.Result{Output: "compressed"}, nil
		}))

	orch := engine.New(st, tools, meter, reg, engine.Config{})
	s := New(DefaultConfig(), st, orch, reg, tools)

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: st, meter: meter}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) createSession(t *testing.T, user string, req CreateSessionRequest) CreateSessionResponse {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/session", user, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[CreateSessionResponse](t, resp)
}

func TestMissingIdentityRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/session", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateSessionDefaults(t *testing.T) {
	env := newTestEnv(t)

	created := env.createSession(t, "alice", CreateSessionRequest{})
	assert.NotEmpty(t, created.SessionID)
	assert.Equal(t, types.StatusIdle, created.Status)
	assert.Equal(t, "fake/fake-model", created.Config.Model)

	got, err := env.store.Get(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.Empty(t, got.Steps)
	assert.Zero(t, got.TotalCreditsUsed)
}

func TestCreateSessionUnknownModel(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/session", "alice", CreateSessionRequest{Model: "fake/nope"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSessionUnknownTool(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/session", "alice", CreateSessionRequest{
		AvailableTools: []string{"no_such_tool"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSessionOwnership(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, "alice", CreateSessionRequest{})

	resp := env.do(t, http.MethodGet, "/session?id="+created.SessionID, "alice", nil)
	summary := decode[types.SessionSummary](t, resp)
	assert.Equal(t, created.SessionID, summary.ID)

	// Summary timestamps use the same wire keys as the create response.
	resp = env.do(t, http.MethodGet, "/session?id="+created.SessionID, "alice", nil)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"createdAt"`)
	assert.Contains(t, string(body), `"updatedAt"`)

	resp = env.do(t, http.MethodGet, "/session?id="+created.SessionID, "bob", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/session?id=01MISSING", "alice", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSessionsPerUser(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t, "alice", CreateSessionRequest{})
	env.createSession(t, "alice", CreateSessionRequest{})
	env.createSession(t, "bob", CreateSessionRequest{})

	resp := env.do(t, http.MethodGet, "/session", "alice", nil)
	summaries := decode[[]types.SessionSummary](t, resp)
	assert.Len(t, summaries, 2)
}

func TestDeleteSessionIdempotent(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, "alice", CreateSessionRequest{})

	resp := env.do(t, http.MethodDelete, "/session?id="+created.SessionID, "alice", nil)
	del := decode[DeleteSessionResponse](t, resp)
	assert.True(t, del.Success)
	assert.True(t, del.Existed)

	resp = env.do(t, http.MethodDelete, "/session?id="+created.SessionID, "alice", nil)
	del = decode[DeleteSessionResponse](t, resp)
	assert.True(t, del.Success)
	assert.False(t, del.Existed)
}

func TestDeleteSessionForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, "alice", CreateSessionRequest{})

	resp := env.do(t, http.MethodDelete, "/session?id="+created.SessionID, "bob", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAbortWithoutActiveRun(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, "alice", CreateSessionRequest{})

	resp := env.do(t, http.MethodPost, "/session/abort?id="+created.SessionID, "alice", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// readSSEEvents parses bare data: frames from a chat stream.
func readSSEEvents(t *testing.T, resp *http.Response) []types.AgentEvent {
	t.Helper()
	defer resp.Body.Close()

	var events []types.AgentEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev types.AgentEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestChatStreamsRunEvents(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, "alice", CreateSessionRequest{})

	resp := env.do(t, http.MethodPost, "/chat", "alice", ChatRequest{
		SessionID: created.SessionID,
		Message:   "hi",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := readSSEEvents(t, resp)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, types.EventDone, last.Type)
	assert.Equal(t, types.DoneCompleted, last.Reason)

	got, err := env.store.Get(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hello there", got.Messages[1].Content)
}

func TestChatEmptyTurnRejectedBeforeStreaming(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, "alice", CreateSessionRequest{})

	resp := env.do(t, http.MethodPost, "/chat", "alice", ChatRequest{SessionID: created.SessionID})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestChatInsufficientCreditsRejectedBeforeStreaming(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, "alice", CreateSessionRequest{})
	env.meter.SetBalance("alice", 0.05)

	resp := env.do(t, http.MethodPost, "/chat", "alice", ChatRequest{
		SessionID: created.SessionID,
		Message:   "hi",
	})
	errResp := decode[ErrorResponse](t, resp)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "INSUFFICIENT_CREDITS", errResp.Error.Code)
}

func TestChatForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, "alice", CreateSessionRequest{})

	resp := env.do(t, http.MethodPost, "/chat", "bob", ChatRequest{
		SessionID: created.SessionID,
		Message:   "hi",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
