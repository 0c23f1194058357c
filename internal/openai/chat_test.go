package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriadhikara/dock/internal/service"
)

// newStreamServer returns a ChatClient pointed at a fake completions
// endpoint replaying the given SSE data payloads, plus the captured request.
func newStreamServer(t *testing.T, payloads []string) (*ChatClient, *openai.ChatCompletionRequest) {
	t.Helper()
	captured := &openai.ChatCompletionRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, p := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", p)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)

	return NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: server.URL}), captured
}

func TestChatClient_Step_StreamsContent(t *testing.T) {
	client, captured := newStreamServer(t, []string{
		`{"choices":[{"delta":{"content":"Net 30 "}}]}`,
		`{"choices":[{"delta":{"content":"days."}}]}`,
	})

	var deltas []string
	result, err := client.Step(context.Background(), service.ChatStepInput{
		Messages:   []service.Message{{Role: service.RoleUser, Content: "payment terms?"}},
		AllowTools: true,
	}, func(text string) error {
		deltas = append(deltas, text)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Net 30 days.", result.Content)
	assert.Empty(t, result.ToolCalls)
	assert.Equal(t, []string{"Net 30 ", "days."}, deltas)

	require.Len(t, captured.Tools, 2)
	assert.Equal(t, service.ToolRetrieveKnowledge, captured.Tools[0].Function.Name)
	assert.Equal(t, service.ToolAddKnowledge, captured.Tools[1].Function.Name)
}

func TestChatClient_Step_AccumulatesToolCallDeltas(t *testing.T) {
	client, _ := newStreamServer(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","function":{"name":"retrieve_knowledge","arguments":"{\"ques"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"tion\":\"terms\"}"}}]}}]}`,
	})

	result, err := client.Step(context.Background(), service.ChatStepInput{
		Messages:   []service.Message{{Role: service.RoleUser, Content: "q"}},
		AllowTools: true,
	}, nil)

	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "call-1", result.ToolCalls[0].ID)
	assert.Equal(t, service.ToolRetrieveKnowledge, result.ToolCalls[0].Name)
	assert.JSONEq(t, `{"question":"terms"}`, result.ToolCalls[0].Arguments)
}

func TestChatClient_Step_ToolsOmittedWhenDisallowed(t *testing.T) {
	client, captured := newStreamServer(t, []string{
		`{"choices":[{"delta":{"content":"Final."}}]}`,
	})

	_, err := client.Step(context.Background(), service.ChatStepInput{
		Messages:   []service.Message{{Role: service.RoleUser, Content: "q"}},
		AllowTools: false,
	}, nil)

	require.NoError(t, err)
	assert.Empty(t, captured.Tools)
}

func TestChatClient_Step_OnDeltaErrorAbortsStream(t *testing.T) {
	client, _ := newStreamServer(t, []string{
		`{"choices":[{"delta":{"content":"first"}}]}`,
		`{"choices":[{"delta":{"content":"second"}}]}`,
	})

	wantErr := fmt.Errorf("consumer gone")
	_, err := client.Step(context.Background(), service.ChatStepInput{
		Messages: []service.Message{{Role: service.RoleUser, Content: "q"}},
	}, func(string) error {
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
}

func TestToOpenAIMessages_MapsToolFields(t *testing.T) {
	msgs := toOpenAIMessages([]service.Message{
		{Role: service.RoleAssistant, ToolCalls: []service.ToolRequest{{ID: "call-1", Name: "retrieve_knowledge", Arguments: `{"question":"q"}`}}},
		{Role: service.RoleTool, ToolCallID: "call-1", Content: "[]"},
	})

	require.Len(t, msgs, 2)
	require.Len(t, msgs[0].ToolCalls, 1)
	assert.Equal(t, "call-1", msgs[0].ToolCalls[0].ID)
	assert.Equal(t, openai.ToolTypeFunction, msgs[0].ToolCalls[0].Type)
	assert.Equal(t, "retrieve_knowledge", msgs[0].ToolCalls[0].Function.Name)
	assert.Equal(t, "call-1", msgs[1].ToolCallID)
}
