package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satriadhikara/dock/internal/api/middleware"
	"github.com/satriadhikara/dock/internal/domain"
	"github.com/satriadhikara/dock/internal/service"
)

type MockIngestRunner struct {
	mock.Mock
}

func (m *MockIngestRunner) Ingest(ctx context.Context, ownerID string) (*service.IngestResult, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

type MockKnowledgeManager struct {
	mock.Mock
}

func (m *MockKnowledgeManager) AddKnowledge(ctx context.Context, ownerID, content string) (string, error) {
	args := m.Called(ctx, ownerID, content)
	return args.String(0), args.Error(1)
}

func (m *MockKnowledgeManager) ListChunks(ctx context.Context, input service.ListChunksInput) (*service.ListChunksOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListChunksOutput), args.Error(1)
}

func (m *MockKnowledgeManager) PurgeContract(ctx context.Context, ownerID, contractID string) (int64, error) {
	args := m.Called(ctx, ownerID, contractID)
	return args.Get(0).(int64), args.Error(1)
}

func ownedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(context.WithValue(req.Context(), middleware.OwnerIDKey, "owner-1"))
}

func TestKnowledgeHandler_Ingest_Success(t *testing.T) {
	ingest := &MockIngestRunner{}
	ingest.On("Ingest", mock.Anything, "owner-1").Return(&service.IngestResult{Inserted: 12, Contracts: 3}, nil)

	rec := httptest.NewRecorder()
	NewKnowledgeHandler(ingest, &MockKnowledgeManager{}).Ingest(rec, ownedRequest(http.MethodPost, "/api/knowledge/ingest", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data service.IngestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 12, body.Data.Inserted)
	assert.Equal(t, 3, body.Data.Contracts)
}

func TestKnowledgeHandler_Ingest_RequiresOwner(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/ingest", nil)
	NewKnowledgeHandler(&MockIngestRunner{}, &MockKnowledgeManager{}).Ingest(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKnowledgeHandler_Add_Success(t *testing.T) {
	knowledge := &MockKnowledgeManager{}
	knowledge.On("AddKnowledge", mock.Anything, "owner-1", "Renewal notice is 60 days.").
		Return(service.KnowledgeAddedReply, nil)

	payload, _ := json.Marshal(AddKnowledgeRequest{Content: "Renewal notice is 60 days."})
	rec := httptest.NewRecorder()
	NewKnowledgeHandler(&MockIngestRunner{}, knowledge).Add(rec, ownedRequest(http.MethodPost, "/api/knowledge", payload))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), service.KnowledgeAddedReply)
}

func TestKnowledgeHandler_Add_EmptyContent(t *testing.T) {
	payload, _ := json.Marshal(AddKnowledgeRequest{})
	rec := httptest.NewRecorder()
	NewKnowledgeHandler(&MockIngestRunner{}, &MockKnowledgeManager{}).Add(rec, ownedRequest(http.MethodPost, "/api/knowledge", payload))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "content is required")
}

func TestKnowledgeHandler_Add_DomainErrorMapped(t *testing.T) {
	knowledge := &MockKnowledgeManager{}
	knowledge.On("AddKnowledge", mock.Anything, "owner-1", "x").
		Return("", domain.NewDomainError(domain.ErrCodeValidation, "content is required"))

	payload, _ := json.Marshal(AddKnowledgeRequest{Content: "x"})
	rec := httptest.NewRecorder()
	NewKnowledgeHandler(&MockIngestRunner{}, knowledge).Add(rec, ownedRequest(http.MethodPost, "/api/knowledge", payload))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKnowledgeHandler_List_Success(t *testing.T) {
	knowledge := &MockKnowledgeManager{}
	created := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	knowledge.On("ListChunks", mock.Anything, service.ListChunksInput{OwnerID: "owner-1", Cursor: "abc", Limit: 10}).
		Return(&service.ListChunksOutput{
			Items: []*domain.KnowledgeChunk{
				{ID: 42, OwnerID: "owner-1", ContractID: "c-1", Content: "Payment is due net 30 days.", CreatedAt: created},
				{ID: 41, OwnerID: "owner-1", Content: "Freeform note.", CreatedAt: created},
			},
			Total:      7,
			NextCursor: "next",
			HasMore:    true,
		}, nil)

	rec := httptest.NewRecorder()
	NewKnowledgeHandler(&MockIngestRunner{}, knowledge).List(rec, ownedRequest(http.MethodGet, "/api/knowledge?cursor=abc&limit=10", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data ChunkListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Items, 2)
	assert.Equal(t, int64(42), body.Data.Items[0].ID)
	assert.Equal(t, "c-1", body.Data.Items[0].ContractID)
	assert.Equal(t, "2026-01-15T10:30:00Z", body.Data.Items[0].CreatedAt)
	assert.Empty(t, body.Data.Items[1].ContractID)
	assert.Equal(t, int64(7), body.Data.Total)
	assert.Equal(t, "next", body.Data.Cursor)
	assert.True(t, body.Data.HasMore)
}

func TestKnowledgeHandler_List_IgnoresBadLimit(t *testing.T) {
	knowledge := &MockKnowledgeManager{}
	knowledge.On("ListChunks", mock.Anything, service.ListChunksInput{OwnerID: "owner-1"}).
		Return(&service.ListChunksOutput{Items: []*domain.KnowledgeChunk{}}, nil)

	rec := httptest.NewRecorder()
	NewKnowledgeHandler(&MockIngestRunner{}, knowledge).List(rec, ownedRequest(http.MethodGet, "/api/knowledge?limit=whatever", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	knowledge.AssertExpectations(t)
}

func TestKnowledgeHandler_PurgeContract_Success(t *testing.T) {
	knowledge := &MockKnowledgeManager{}
	knowledge.On("PurgeContract", mock.Anything, "owner-1", "c-1").Return(int64(5), nil)

	router := chi.NewRouter()
	handler := NewKnowledgeHandler(&MockIngestRunner{}, knowledge)
	router.Delete("/api/knowledge/contract/{id}", handler.PurgeContract)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ownedRequest(http.MethodDelete, "/api/knowledge/contract/c-1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"deleted":5`))
}

func TestKnowledgeHandler_PurgeContract_NotFound(t *testing.T) {
	knowledge := &MockKnowledgeManager{}
	knowledge.On("PurgeContract", mock.Anything, "owner-1", "missing").
		Return(int64(0), domain.ErrContractNotFound)

	router := chi.NewRouter()
	handler := NewKnowledgeHandler(&MockIngestRunner{}, knowledge)
	router.Delete("/api/knowledge/contract/{id}", handler.PurgeContract)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, ownedRequest(http.MethodDelete, "/api/knowledge/contract/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
