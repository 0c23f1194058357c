package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/satriadhikara/dock/internal/api"
	"github.com/satriadhikara/dock/internal/api/middleware"
	"github.com/satriadhikara/dock/internal/service"
)

// ChatStreamer runs one copilot turn and streams the reply.
type ChatStreamer interface {
	Chat(ctx context.Context, ownerID string, history []service.Message) <-chan service.StreamEvent
}

type ChatHandler struct {
	copilot ChatStreamer
}

func NewChatHandler(copilot ChatStreamer) *ChatHandler {
	return &ChatHandler{copilot: copilot}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// failureReply is sent instead of surfacing internal errors mid-stream.
const failureReply = "Sorry, something went wrong while answering. Please try again."

// Chat handles POST /api/chat. The reply is streamed as Server-Sent Events:
// "chunk" events carry text fragments, a single "done" or "error" event
// terminates the stream.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		api.Error(w, http.StatusBadRequest, "messages is required")
		return
	}

	history := make([]service.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case service.RoleUser, service.RoleAssistant:
		default:
			api.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid role %q", m.Role))
			return
		}
		history = append(history, service.Message{Role: m.Role, Content: m.Content})
	}
	if last := history[len(history)-1]; last.Role != service.RoleUser {
		api.Error(w, http.StatusBadRequest, "last message must be from the user")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := h.copilot.Chat(r.Context(), ownerID, history)
	for ev := range events {
		switch {
		case ev.Err != nil:
			// Internal detail stays out of the wire; the copilot already
			// reported it to telemetry.
			writeSSE(w, "error", failureReply)
			flusher.Flush()
			return
		case ev.Done:
			writeSSE(w, "done", "")
			flusher.Flush()
			return
		default:
			writeSSE(w, "chunk", ev.Text)
			flusher.Flush()
		}
	}
}

type ssePayload struct {
	Text string `json:"text,omitempty"`
}

func writeSSE(w http.ResponseWriter, event, text string) {
	data, err := json.Marshal(ssePayload{Text: text})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
