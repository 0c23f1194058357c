package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/satriadhikara/dock/internal/telemetry"
)

const (
	// DefaultTopK is the maximum number of chunks returned per query.
	DefaultTopK = 8
	// DefaultMinSimilarity is the cosine similarity floor below which
	// chunks are not considered relevant.
	DefaultMinSimilarity = 0.6
)

// RetrievalResult is one matched chunk with its provenance. Produced fresh
// per query, never cached.
type RetrievalResult struct {
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
	ContractID   string  `json:"contract_id,omitempty"`
	ContractName string  `json:"contract_name,omitempty"`
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkSearchRepository answers similarity queries against stored chunks.
type ChunkSearchRepository interface {
	SearchByOwner(ctx context.Context, ownerID string, embedding []float32, minSimilarity float64, limit int) ([]*RetrievalResult, error)
}

// RetrievalService embeds a query and finds the owner's most similar stored chunks.
type RetrievalService struct {
	repo      ChunkSearchRepository
	embedding EmbeddingClient
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(repo ChunkSearchRepository, embedding EmbeddingClient) *RetrievalService {
	return &RetrievalService{
		repo:      repo,
		embedding: embedding,
	}
}

// Retrieve embeds query and returns at most topK chunks owned by ownerID
// whose cosine similarity to the query exceeds minSimilarity, ordered by
// descending similarity. An empty result is a valid outcome, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, ownerID, query string, topK int, minSimilarity float64) ([]*RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		OwnerID:   ownerID,
		Operation: "retrieve",
	})
	defer span.End()

	if ownerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	// Newlines in the query hurt embedding quality, flatten them first.
	flat := strings.Join(strings.Split(query, "\n"), " ")

	embedding, err := s.embedding.EmbedOne(ctx, flat)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.repo.SearchByOwner(ctx, ownerID, embedding, minSimilarity, topK)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	return results, nil
}
