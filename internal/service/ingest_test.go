package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/satriadhikara/dock/internal/domain"
)

type MockContractReader struct {
	mock.Mock
}

func (m *MockContractReader) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Contract, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Contract), args.Error(1)
}

type MockChunkWriteRepository struct {
	mock.Mock
}

func (m *MockChunkWriteRepository) InsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkWriteRepository) ReplaceForContracts(ctx context.Context, ownerID string, contractIDs []string, chunks []domain.KnowledgeChunk) error {
	args := m.Called(ctx, ownerID, contractIDs, chunks)
	return args.Error(0)
}

func testContract(id, name string) *domain.Contract {
	return &domain.Contract{
		ID:      id,
		OwnerID: "owner-1",
		Name:    name,
		Status:  domain.ContractStatusActive,
		Type:    domain.ContractTypeBuiltIn,
	}
}

func TestIngestService_Ingest_RequiresOwner(t *testing.T) {
	svc := NewIngestService(&MockContractReader{}, &MockChunkWriteRepository{}, &MockEmbeddingClient{})

	_, err := svc.Ingest(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner ID is required")
}

func TestIngestService_Ingest_NoContracts(t *testing.T) {
	contracts := &MockContractReader{}
	chunks := &MockChunkWriteRepository{}
	embedding := &MockEmbeddingClient{}

	contracts.On("ListByOwner", mock.Anything, "owner-1").Return([]*domain.Contract{}, nil)

	svc := NewIngestService(contracts, chunks, embedding)
	result, err := svc.Ingest(context.Background(), "owner-1")

	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 0, result.Contracts)
	embedding.AssertNotCalled(t, "EmbedMany")
}

func TestIngestService_Ingest_ReplacesByDefault(t *testing.T) {
	contracts := &MockContractReader{}
	chunks := &MockChunkWriteRepository{}
	embedding := &MockEmbeddingClient{}

	contracts.On("ListByOwner", mock.Anything, "owner-1").Return([]*domain.Contract{
		testContract("c-1", "Hosting Agreement"),
		testContract("c-2", "Support Contract"),
	}, nil)

	var embedded []string
	embedding.On("EmbedMany", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		embedded = args.Get(1).([]string)
	}).Return([][]float32{{0.1}, {0.2}}, nil)

	var stored []domain.KnowledgeChunk
	chunks.On("ReplaceForContracts", mock.Anything, "owner-1", []string{"c-1", "c-2"}, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(3).([]domain.KnowledgeChunk)
		}).Return(nil)

	svc := NewIngestService(contracts, chunks, embedding)
	result, err := svc.Ingest(context.Background(), "owner-1")

	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 2, result.Contracts)

	require.Len(t, embedded, 2)
	assert.Contains(t, embedded[0], "Contract: Hosting Agreement")
	assert.Contains(t, embedded[0], "Status: Active")

	require.Len(t, stored, 2)
	assert.Equal(t, "owner-1", stored[0].OwnerID)
	assert.Equal(t, "c-1", stored[0].ContractID)
	assert.Equal(t, []float32{0.1}, stored[0].Embedding)
	assert.Equal(t, "c-2", stored[1].ContractID)

	chunks.AssertNotCalled(t, "InsertChunks")
}

func TestIngestService_Ingest_AdditiveAppends(t *testing.T) {
	contracts := &MockContractReader{}
	chunks := &MockChunkWriteRepository{}
	embedding := &MockEmbeddingClient{}

	contracts.On("ListByOwner", mock.Anything, "owner-1").Return([]*domain.Contract{
		testContract("c-1", "Hosting Agreement"),
	}, nil)
	embedding.On("EmbedMany", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	chunks.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)

	svc := NewIngestServiceWithConfig(contracts, chunks, embedding, IngestConfig{Additive: true})
	result, err := svc.Ingest(context.Background(), "owner-1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	chunks.AssertNotCalled(t, "ReplaceForContracts")
	chunks.AssertExpectations(t)
}

func TestIngestService_Ingest_LongContractSplitsIntoChunks(t *testing.T) {
	contracts := &MockContractReader{}
	chunks := &MockChunkWriteRepository{}
	embedding := &MockEmbeddingClient{}

	long := testContract("c-1", "Hosting Agreement")
	long.Content = []byte(`{"clause":"` + strings.Repeat("payment due upon invoice ", 80) + `"}`)

	contracts.On("ListByOwner", mock.Anything, "owner-1").Return([]*domain.Contract{long}, nil)

	var embedded []string
	embedding.On("EmbedMany", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		embedded = args.Get(1).([]string)
	}).Return([][]float32{{0}, {1}, {2}}, nil)
	chunks.On("ReplaceForContracts", mock.Anything, "owner-1", []string{"c-1"}, mock.Anything).Return(nil)

	svc := NewIngestService(contracts, chunks, embedding)
	result, err := svc.Ingest(context.Background(), "owner-1")

	require.NoError(t, err)
	assert.Greater(t, len(embedded), 1)
	assert.Equal(t, len(embedded), result.Inserted)
}

func TestIngestService_Ingest_EmbeddingFailureAbortsBatch(t *testing.T) {
	contracts := &MockContractReader{}
	chunks := &MockChunkWriteRepository{}
	embedding := &MockEmbeddingClient{}

	contracts.On("ListByOwner", mock.Anything, "owner-1").Return([]*domain.Contract{
		testContract("c-1", "Hosting Agreement"),
	}, nil)
	embedding.On("EmbedMany", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

	svc := NewIngestService(contracts, chunks, embedding)
	_, err := svc.Ingest(context.Background(), "owner-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed chunks")
	chunks.AssertNotCalled(t, "ReplaceForContracts")
	chunks.AssertNotCalled(t, "InsertChunks")
}

func TestIngestService_Ingest_ListError(t *testing.T) {
	contracts := &MockContractReader{}
	contracts.On("ListByOwner", mock.Anything, "owner-1").Return(nil, errors.New("db down"))

	svc := NewIngestService(contracts, &MockChunkWriteRepository{}, &MockEmbeddingClient{})
	_, err := svc.Ingest(context.Background(), "owner-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list contracts")
}

func TestContractToText(t *testing.T) {
	started := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ending := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &domain.Contract{
		ID:             "c-1",
		OwnerID:        "owner-1",
		Name:           "Hosting Agreement",
		Status:         domain.ContractStatusSigned,
		StartedAt:      &started,
		InitialEndDate: &ending,
		Content:        []byte(`{ "term":  "net 30" }`),
	}

	text := ContractToText(c)

	lines := strings.Split(text, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Contract: Hosting Agreement", lines[0])
	assert.Equal(t, "Status: Signed", lines[1])
	assert.Equal(t, "Started: 2025-03-01T00:00:00Z", lines[2])
	assert.Equal(t, "Initial End: 2026-03-01T00:00:00Z", lines[3])
	assert.Equal(t, `Content JSON: {"term":"net 30"}`, lines[4])
}

func TestContractToText_MinimalContract(t *testing.T) {
	c := &domain.Contract{ID: "c-1", OwnerID: "owner-1", Name: "Draft NDA", Status: domain.ContractStatusDraft}

	text := ContractToText(c)

	assert.Equal(t, "Contract: Draft NDA\nStatus: Draft", text)
}
