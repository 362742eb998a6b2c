// Package provider abstracts chat-model backends behind the Eino framework.
package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/pixelforge-ai/pixelforge/pkg/types"
)

// Provider is one chat-model backend.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest is a request to generate a streaming completion.
type CompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []*schema.Message  `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int                `json:"maxTokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// BuildMessages converts a session transcript into the Eino message form
// expected by chat models. An optional system prompt is prepended.
func BuildMessages(systemPrompt string, history []types.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(history)+1)

	if systemPrompt != "" {
		result = append(result, schema.SystemMessage(systemPrompt))
	}

	for _, msg := range history {
		role := schema.Assistant
		switch msg.Role {
		case "user":
			role = schema.User
		case "system":
			role = schema.System
		case "tool":
			role = schema.Tool
		}

		out := &schema.Message{
			Role:       role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}

		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Args),
				},
			})
		}

		// Image attachments turn a user message into multi-part content.
		if role == schema.User && len(msg.Images) > 0 {
			parts := make([]schema.ChatMessagePart, 0, len(msg.Images)+1)
			if msg.Content != "" {
				parts = append(parts, schema.ChatMessagePart{
					Type: schema.ChatMessagePartTypeText,
					Text: msg.Content,
				})
			}
			for _, img := range msg.Images {
				parts = append(parts, schema.ChatMessagePart{
					Type:     schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{URL: img},
				})
			}
			out.Content = ""
			out.MultiContent = parts
		}

		result = append(result, out)
	}

	return result
}
