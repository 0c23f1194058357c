package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satriadhikara/dock/internal/service"
)

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, ownerID, query string, topK int, minSimilarity float64) ([]*service.RetrievalResult, error) {
	args := m.Called(ctx, ownerID, query, topK, minSimilarity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.RetrievalResult), args.Error(1)
}

func TestSearchHandler_Search_Success(t *testing.T) {
	retriever := &MockRetriever{}
	results := []*service.RetrievalResult{
		{Content: "Payment is due net 30 days.", Similarity: 0.91, ContractID: "c-1", ContractName: "Hosting Agreement"},
	}
	retriever.On("Retrieve", mock.Anything, "owner-1", "payment terms", 8, 0.6).Return(results, nil)

	payload, _ := json.Marshal(SearchRequest{Query: "payment terms"})
	rec := httptest.NewRecorder()
	NewSearchHandler(retriever, 8, 0.6).Search(rec, ownedRequest(http.MethodPost, "/api/search", payload))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Results, 1)
	assert.Equal(t, "Hosting Agreement", body.Data.Results[0].ContractName)
}

func TestSearchHandler_Search_RequestTopKOnlyLowersCap(t *testing.T) {
	retriever := &MockRetriever{}
	retriever.On("Retrieve", mock.Anything, "owner-1", "q", 3, 0.6).Return([]*service.RetrievalResult{}, nil).Once()
	retriever.On("Retrieve", mock.Anything, "owner-1", "q2", 8, 0.6).Return([]*service.RetrievalResult{}, nil).Once()

	handler := NewSearchHandler(retriever, 8, 0.6)

	payload, _ := json.Marshal(SearchRequest{Query: "q", TopK: 3})
	handler.Search(httptest.NewRecorder(), ownedRequest(http.MethodPost, "/api/search", payload))

	// asking for more than the server cap keeps the cap
	payload, _ = json.Marshal(SearchRequest{Query: "q2", TopK: 50})
	handler.Search(httptest.NewRecorder(), ownedRequest(http.MethodPost, "/api/search", payload))

	retriever.AssertExpectations(t)
}

func TestSearchHandler_Search_NilResultsBecomeEmptyList(t *testing.T) {
	retriever := &MockRetriever{}
	retriever.On("Retrieve", mock.Anything, "owner-1", "q", 8, 0.6).Return(nil, nil)

	payload, _ := json.Marshal(SearchRequest{Query: "q"})
	rec := httptest.NewRecorder()
	NewSearchHandler(retriever, 8, 0.6).Search(rec, ownedRequest(http.MethodPost, "/api/search", payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestSearchHandler_Search_EmptyQuery(t *testing.T) {
	payload, _ := json.Marshal(SearchRequest{})
	rec := httptest.NewRecorder()
	NewSearchHandler(&MockRetriever{}, 8, 0.6).Search(rec, ownedRequest(http.MethodPost, "/api/search", payload))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query is required")
}

func TestSearchHandler_Search_RequiresOwner(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	NewSearchHandler(&MockRetriever{}, 8, 0.6).Search(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewSearchHandler_Defaults(t *testing.T) {
	handler := NewSearchHandler(&MockRetriever{}, 0, 0)

	assert.Equal(t, service.DefaultTopK, handler.topK)
	assert.Equal(t, service.DefaultMinSimilarity, handler.minSimilarity)
}
