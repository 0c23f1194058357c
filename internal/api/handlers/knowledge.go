package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/satriadhikara/dock/internal/api"
	"github.com/satriadhikara/dock/internal/api/middleware"
	"github.com/satriadhikara/dock/internal/service"
	"github.com/go-chi/chi/v5"
)

type IngestRunner interface {
	Ingest(ctx context.Context, ownerID string) (*service.IngestResult, error)
}

type KnowledgeManager interface {
	AddKnowledge(ctx context.Context, ownerID, content string) (string, error)
	ListChunks(ctx context.Context, input service.ListChunksInput) (*service.ListChunksOutput, error)
	PurgeContract(ctx context.Context, ownerID, contractID string) (int64, error)
}

type KnowledgeHandler struct {
	ingest    IngestRunner
	knowledge KnowledgeManager
}

func NewKnowledgeHandler(ingest IngestRunner, knowledge KnowledgeManager) *KnowledgeHandler {
	return &KnowledgeHandler{ingest: ingest, knowledge: knowledge}
}

// Ingest handles POST /api/knowledge/ingest. It re-embeds every contract
// owned by the caller and reports how many chunks were written.
func (h *KnowledgeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.ingest.Ingest(r.Context(), ownerID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

type AddKnowledgeRequest struct {
	Content string `json:"content"`
}

type AddKnowledgeResponse struct {
	Message string `json:"message"`
}

// Add handles POST /api/knowledge, storing freeform text as knowledge chunks.
func (h *KnowledgeHandler) Add(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AddKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	message, err := h.knowledge.AddKnowledge(r.Context(), ownerID, req.Content)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, AddKnowledgeResponse{Message: message})
}

type ChunkResponse struct {
	ID         int64  `json:"id"`
	ContractID string `json:"contract_id,omitempty"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

type ChunkListResponse struct {
	Items   []*ChunkResponse `json:"items"`
	Total   int64            `json:"total"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"has_more"`
}

// List handles GET /api/knowledge with cursor pagination, newest chunks first.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.knowledge.ListChunks(r.Context(), service.ListChunksInput{
		OwnerID: ownerID,
		Cursor:  cursor,
		Limit:   limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ChunkResponse, len(output.Items))
	for i, chunk := range output.Items {
		items[i] = &ChunkResponse{
			ID:         chunk.ID,
			ContractID: chunk.ContractID,
			Content:    chunk.Content,
			CreatedAt:  chunk.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	api.Success(w, http.StatusOK, ChunkListResponse{
		Items:   items,
		Total:   output.Total,
		Cursor:  output.NextCursor,
		HasMore: output.HasMore,
	})
}

type PurgeContractResponse struct {
	Deleted int64 `json:"deleted"`
}

// PurgeContract handles DELETE /api/knowledge/contract/{id}, removing every
// chunk embedded from that contract.
func (h *KnowledgeHandler) PurgeContract(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	contractID := chi.URLParam(r, "id")
	if contractID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	deleted, err := h.knowledge.PurgeContract(r.Context(), ownerID, contractID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, PurgeContractResponse{Deleted: deleted})
}
