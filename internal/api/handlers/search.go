package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/satriadhikara/dock/internal/api"
	"github.com/satriadhikara/dock/internal/api/middleware"
	"github.com/satriadhikara/dock/internal/service"
)

type Retriever interface {
	Retrieve(ctx context.Context, ownerID, query string, topK int, minSimilarity float64) ([]*service.RetrievalResult, error)
}

type SearchHandler struct {
	retriever     Retriever
	topK          int
	minSimilarity float64
}

func NewSearchHandler(retriever Retriever, topK int, minSimilarity float64) *SearchHandler {
	if topK <= 0 {
		topK = service.DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = service.DefaultMinSimilarity
	}
	return &SearchHandler{retriever: retriever, topK: topK, minSimilarity: minSimilarity}
}

type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type SearchResponse struct {
	Results []*service.RetrievalResult `json:"results"`
}

// Search handles POST /api/search, returning the caller's most similar
// knowledge chunks for a query.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	topK := h.topK
	if req.TopK > 0 && req.TopK < topK {
		topK = req.TopK
	}

	results, err := h.retriever.Retrieve(r.Context(), ownerID, req.Query, topK, h.minSimilarity)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if results == nil {
		results = []*service.RetrievalResult{}
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: results})
}
