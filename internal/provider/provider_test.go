package provider

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

func TestParseModelString(t *testing.T) {
	tests := []struct {
		input        string
		wantProvider string
		wantModel    string
	}{
		{"anthropic/claude-sonnet-4-20250514", "anthropic", "claude-sonnet-4-20250514"},
		{"openai/gpt-4o", "openai", "gpt-4o"},
		{"gpt-4o", "", "gpt-4o"},
		{"a/b/c", "a", "b/c"},
	}

	for _, tt := range tests {
		providerID, modelID := ParseModelString(tt.input)
		assert.Equal(t, tt.wantProvider, providerID, tt.input)
		assert.Equal(t, tt.wantModel, modelID, tt.input)
	}
}

func TestBuildMessages(t *testing.T) {
	history := []types.Message{
		{Role: "user", Content: "remove the background", Images: []string{"https://x/in.png"}},
		{
			Role:    "assistant",
			Content: "I'll remove it.",
			ToolCalls: []types.ToolCall{
				{ID: "call-1", Name: "remove_background", Args: json.RawMessage(`{"image":"https://x/in.png"}`)},
			},
		},
		{Role: "tool", ToolCallID: "call-1", ToolName: "remove_background", Content: "done"},
	}

	msgs := BuildMessages("You are an image editor.", history)
	require.Len(t, msgs, 4)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "You are an image editor.", msgs[0].Content)

	assert.Equal(t, schema.User, msgs[1].Role)
	require.Len(t, msgs[1].MultiContent, 2)
	assert.Equal(t, schema.ChatMessagePartTypeText, msgs[1].MultiContent[0].Type)
	assert.Equal(t, "remove the background", msgs[1].MultiContent[0].Text)
	assert.Equal(t, schema.ChatMessagePartTypeImageURL, msgs[1].MultiContent[1].Type)
	assert.Equal(t, "https://x/in.png", msgs[1].MultiContent[1].ImageURL.URL)

	assert.Equal(t, schema.Assistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call-1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, "remove_background", msgs[2].ToolCalls[0].Function.Name)

	assert.Equal(t, schema.Tool, msgs[3].Role)
	assert.Equal(t, "call-1", msgs[3].ToolCallID)
}

func TestBuildMessagesNoSystemPrompt(t *testing.T) {
	msgs := BuildMessages("", []types.Message{{Role: "user", Content: "hi"}})
	require.Len(t, msgs, 1)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestCompletionStream(t *testing.T) {
	reader := schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage("hello", nil),
	})
	stream := NewCompletionStream(reader)
	defer stream.Close()

	msg, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}
