package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/satriadhikara/dock/internal/service"
)

// DefaultChatModel is the OpenAI model used for copilot conversations
const DefaultChatModel = openai.GPT4oMini

// ChatClient implements service.ChatModel on top of the OpenAI chat
// completions streaming API.
type ChatClient struct {
	client *openai.Client
	model  string
}

type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewChatClient creates a new ChatClient instance
func NewChatClient(cfg ChatConfig) *ChatClient {
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &ChatClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// copilotTools describes the two callable tools to the model. The parameter
// schemas must stay in sync with service.RetrieveCall and
// service.AddKnowledgeCall.
var copilotTools = []openai.Tool{
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        service.ToolRetrieveKnowledge,
			Description: "Look up relevant information from the user's contract knowledge base to answer a question.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"question": {
						Type:        jsonschema.String,
						Description: "The user's question, rephrased as a standalone query.",
					},
				},
				Required: []string{"question"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        service.ToolAddKnowledge,
			Description: "Store a piece of contract knowledge the user shared so it can be retrieved later.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"content": {
						Type:        jsonschema.String,
						Description: "The knowledge to store, verbatim or lightly normalized.",
					},
				},
				Required: []string{"content"},
			},
		},
	},
}

// Step runs one model interaction. Text deltas are forwarded to onDelta as
// they arrive; tool-call deltas are accumulated and returned whole once the
// stream ends.
func (c *ChatClient) Step(ctx context.Context, in service.ChatStepInput, onDelta func(text string) error) (*service.ChatStepResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(in.Messages),
		Stream:   true,
	}
	if in.AllowTools {
		req.Tools = copilotTools
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to start chat completion: %w", err)
	}
	defer stream.Close()

	var content string
	var calls []service.ToolRequest

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("chat completion stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			content += delta.Content
			if onDelta != nil {
				if err := onDelta(delta.Content); err != nil {
					return nil, err
				}
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := len(calls) - 1
			if tc.Index != nil {
				idx = *tc.Index
			}
			for idx >= len(calls) {
				calls = append(calls, service.ToolRequest{})
			}
			if idx < 0 {
				continue
			}
			if tc.ID != "" {
				calls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].Name = tc.Function.Name
			}
			calls[idx].Arguments += tc.Function.Arguments
		}
	}

	return &service.ChatStepResult{
		Content:   content,
		ToolCalls: calls,
	}, nil
}

func toOpenAIMessages(messages []service.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}
