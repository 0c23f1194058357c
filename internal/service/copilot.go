package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/satriadhikara/dock/internal/telemetry"
)

// Message roles exchanged with the chat model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool names exposed to the chat model.
const (
	ToolRetrieveKnowledge = "retrieve_knowledge"
	ToolAddKnowledge      = "add_knowledge"
)

// NoMatchReply is the exact sentence the model is instructed to answer with
// when neither tool produced relevant information.
const NoMatchReply = "Sorry, I don't know."

// Message is one entry in a conversation turn's history.
type Message struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []ToolRequest `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// ToolRequest is a raw tool invocation as emitted by the model.
type ToolRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is the closed set of tools the copilot can execute.
type ToolCall interface {
	isToolCall()
}

// RetrieveCall asks the knowledge base a question.
type RetrieveCall struct {
	Question string `json:"question"`
}

// AddKnowledgeCall stores new freeform knowledge for the caller.
type AddKnowledgeCall struct {
	Content string `json:"content"`
}

func (RetrieveCall) isToolCall()     {}
func (AddKnowledgeCall) isToolCall() {}

// ParseToolCall maps a raw model tool request onto the closed ToolCall set.
func ParseToolCall(req ToolRequest) (ToolCall, error) {
	switch req.Name {
	case ToolRetrieveKnowledge:
		var call RetrieveCall
		if err := json.Unmarshal([]byte(req.Arguments), &call); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", ToolRetrieveKnowledge, err)
		}
		return call, nil
	case ToolAddKnowledge:
		var call AddKnowledgeCall
		if err := json.Unmarshal([]byte(req.Arguments), &call); err != nil {
			return nil, fmt.Errorf("invalid %s arguments: %w", ToolAddKnowledge, err)
		}
		return call, nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

// ChatStepInput is one model interaction within a turn.
type ChatStepInput struct {
	Messages   []Message
	AllowTools bool
}

// ChatStepResult is what the model produced for one step: either tool
// requests, final text, or both (text already streamed through onDelta).
type ChatStepResult struct {
	Content   string
	ToolCalls []ToolRequest
}

// ChatModel drives one reasoning step of the conversation loop. onDelta is
// invoked for each text fragment as the model produces it; returning an
// error from onDelta aborts the step.
type ChatModel interface {
	Step(ctx context.Context, in ChatStepInput, onDelta func(text string) error) (*ChatStepResult, error)
}

// RetrieverInterface is the retrieval function exposed as a tool.
type RetrieverInterface interface {
	Retrieve(ctx context.Context, ownerID, query string, topK int, minSimilarity float64) ([]*RetrievalResult, error)
}

// KnowledgeWriterInterface is the knowledge-base mutation exposed as a tool.
type KnowledgeWriterInterface interface {
	AddKnowledge(ctx context.Context, ownerID, content string) (string, error)
}

// CopilotConfig controls conversation loop behavior.
type CopilotConfig struct {
	MaxSteps      int
	TopK          int
	MinSimilarity float64
}

// DefaultCopilotConfig returns the default loop configuration.
func DefaultCopilotConfig() CopilotConfig {
	return CopilotConfig{
		MaxSteps:      5,
		TopK:          DefaultTopK,
		MinSimilarity: DefaultMinSimilarity,
	}
}

// StreamEvent is one fragment of a streamed copilot reply. Exactly one
// terminal event (Done or Err set) ends the stream before the channel closes.
type StreamEvent struct {
	Text string
	Done bool
	Err  error
}

// CopilotService runs the bounded tool-calling conversation loop.
type CopilotService struct {
	model     ChatModel
	retriever RetrieverInterface
	knowledge KnowledgeWriterInterface
	cfg       CopilotConfig
}

// NewCopilotService creates a new CopilotService instance
func NewCopilotService(model ChatModel, retriever RetrieverInterface, knowledge KnowledgeWriterInterface) *CopilotService {
	return NewCopilotServiceWithConfig(model, retriever, knowledge, DefaultCopilotConfig())
}

// NewCopilotServiceWithConfig creates a new CopilotService with explicit configuration.
func NewCopilotServiceWithConfig(model ChatModel, retriever RetrieverInterface, knowledge KnowledgeWriterInterface, cfg CopilotConfig) *CopilotService {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 5
	}
	return &CopilotService{
		model:     model,
		retriever: retriever,
		knowledge: knowledge,
		cfg:       cfg,
	}
}

// Chat runs one conversation turn for the given owner and message history.
// Text fragments are delivered on the returned channel as the model produces
// them; the producer blocks until the consumer reads, so a slow consumer
// applies backpressure instead of growing a buffer. Cancelling ctx stops the
// stream; tool side effects that already committed stay committed.
func (s *CopilotService) Chat(ctx context.Context, ownerID string, history []Message) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		emit := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := s.runTurn(ctx, ownerID, history, func(text string) error {
			if !emit(StreamEvent{Text: text}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			emit(StreamEvent{Err: err})
			return
		}
		emit(StreamEvent{Done: true})
	}()

	return events
}

func (s *CopilotService) runTurn(ctx context.Context, ownerID string, history []Message, onDelta func(string) error) error {
	ctx, span := telemetry.StartSpan(ctx, "CopilotService.Chat", telemetry.SpanAttributes{
		OwnerID:   ownerID,
		Operation: "chat",
	})
	defer span.End()

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)

	for step := 0; ; step++ {
		// Once the step cap is reached the model loses tool access, which
		// forces a textual answer and bounds the turn at MaxSteps+1
		// model interactions.
		allowTools := step < s.cfg.MaxSteps

		result, err := s.model.Step(ctx, ChatStepInput{Messages: messages, AllowTools: allowTools}, onDelta)
		if err != nil {
			span.SetError(err)
			return fmt.Errorf("chat step failed: %w", err)
		}

		if len(result.ToolCalls) == 0 {
			return nil
		}
		// Past the cap the model was told tools are unavailable; if it
		// requests them anyway, drop the requests and end the turn with
		// whatever text it streamed. The loop itself guarantees the bound,
		// not the model's cooperation.
		if !allowTools {
			log.Printf("copilot: dropping %d tool calls past step cap for owner %s", len(result.ToolCalls), ownerID)
			return nil
		}

		messages = append(messages, Message{Role: RoleAssistant, Content: result.Content, ToolCalls: result.ToolCalls})

		// Tools run synchronously, one at a time, in the exact order the
		// model requested them.
		for _, req := range result.ToolCalls {
			output, err := s.executeTool(ctx, ownerID, req)
			if err != nil {
				span.SetError(err)
				return err
			}
			messages = append(messages, Message{Role: RoleTool, ToolCallID: req.ID, Content: output})
		}
	}
}

// executeTool dispatches a single tool request. Malformed input is reported
// back to the model as the tool result rather than failing the turn;
// upstream I/O failures propagate and end the turn.
func (s *CopilotService) executeTool(ctx context.Context, ownerID string, req ToolRequest) (string, error) {
	call, err := ParseToolCall(req)
	if err != nil {
		return err.Error(), nil
	}

	switch call := call.(type) {
	case RetrieveCall:
		if strings.TrimSpace(call.Question) == "" {
			return "question must not be empty", nil
		}
		results, err := s.retriever.Retrieve(ctx, ownerID, call.Question, s.cfg.TopK, s.cfg.MinSimilarity)
		if err != nil {
			return "", fmt.Errorf("retrieve knowledge: %w", err)
		}
		payload, err := json.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("encode retrieval results: %w", err)
		}
		log.Printf("copilot: retrieved %d chunks for owner %s", len(results), ownerID)
		return string(payload), nil

	case AddKnowledgeCall:
		if strings.TrimSpace(call.Content) == "" {
			return "content must not be empty", nil
		}
		confirmation, err := s.knowledge.AddKnowledge(ctx, ownerID, call.Content)
		if err != nil {
			return "", fmt.Errorf("add knowledge: %w", err)
		}
		return confirmation, nil

	default:
		return fmt.Sprintf("unsupported tool call: %T", call), nil
	}
}
