package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/satriadhikara/dock/internal/domain"
	"github.com/satriadhikara/dock/internal/telemetry"
)

// ContractReader reads contract records from the contract store.
// The ingestion pipeline never writes back to it.
type ContractReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Contract, error)
}

// ChunkWriteRepository persists knowledge chunks. Both operations commit a
// whole batch atomically: retrieval never observes a partially-ingested
// contract.
type ChunkWriteRepository interface {
	InsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error
	ReplaceForContracts(ctx context.Context, ownerID string, contractIDs []string, chunks []domain.KnowledgeChunk) error
}

// IngestResult reports what an ingestion run did.
type IngestResult struct {
	Inserted  int `json:"inserted"`
	Contracts int `json:"contracts"`
}

// IngestConfig controls ingestion behavior.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// Additive re-runs append chunks without purging prior ones, matching
	// the original pipeline's behavior. The default replaces a contract's
	// chunks on every run so re-ingestion stays idempotent.
	Additive bool
}

// DefaultIngestConfig returns the default ingestion configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// IngestService turns an owner's contracts into embedded knowledge chunks.
type IngestService struct {
	contracts ContractReader
	chunks    ChunkWriteRepository
	embedding EmbeddingClient
	cfg       IngestConfig
}

// NewIngestService creates a new IngestService instance
func NewIngestService(contracts ContractReader, chunks ChunkWriteRepository, embedding EmbeddingClient) *IngestService {
	return NewIngestServiceWithConfig(contracts, chunks, embedding, DefaultIngestConfig())
}

// NewIngestServiceWithConfig creates a new IngestService with explicit configuration.
func NewIngestServiceWithConfig(contracts ContractReader, chunks ChunkWriteRepository, embedding EmbeddingClient, cfg IngestConfig) *IngestService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	return &IngestService{
		contracts: contracts,
		chunks:    chunks,
		embedding: embedding,
		cfg:       cfg,
	}
}

// Ingest reads every contract owned by ownerID, renders each to a
// descriptive text blob, chunks the blobs, embeds all chunks in one batched
// call and commits them in one atomic write. An embedding failure aborts the
// whole batch with nothing inserted.
func (s *IngestService) Ingest(ctx context.Context, ownerID string) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		OwnerID:   ownerID,
		Operation: "ingest",
	})
	defer span.End()

	if ownerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}

	contracts, err := s.contracts.ListByOwner(ctx, ownerID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	if len(contracts) == 0 {
		return &IngestResult{}, nil
	}

	type pending struct {
		contractID string
		content    string
	}

	var records []pending
	contractIDs := make([]string, 0, len(contracts))
	for _, contract := range contracts {
		contractIDs = append(contractIDs, contract.ID)
		text := ContractToText(contract)
		for _, part := range ChunkText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap) {
			records = append(records, pending{contractID: contract.ID, content: part})
		}
	}

	if len(records) == 0 {
		return &IngestResult{Contracts: len(contracts)}, nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.content
	}

	embeddings, err := s.embedding.EmbedMany(ctx, texts)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	now := time.Now().UTC()
	chunks := make([]domain.KnowledgeChunk, len(records))
	for i, r := range records {
		chunks[i] = domain.KnowledgeChunk{
			OwnerID:    ownerID,
			ContractID: r.contractID,
			Content:    r.content,
			Embedding:  embeddings[i],
			CreatedAt:  now,
		}
	}

	if s.cfg.Additive {
		err = s.chunks.InsertChunks(ctx, chunks)
	} else {
		err = s.chunks.ReplaceForContracts(ctx, ownerID, contractIDs, chunks)
	}
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	log.Printf("ingest: stored %d chunks from %d contracts for owner %s", len(chunks), len(contracts), ownerID)

	return &IngestResult{
		Inserted:  len(chunks),
		Contracts: len(contracts),
	}, nil
}

// ContractToText renders a contract into the descriptive blob that gets
// chunked and embedded. Structured fields come first so even the smallest
// contract produces a searchable line.
func ContractToText(c *domain.Contract) string {
	pieces := []string{
		fmt.Sprintf("Contract: %s", c.Name),
		fmt.Sprintf("Status: %s", c.Status),
	}
	if c.StartedAt != nil {
		pieces = append(pieces, fmt.Sprintf("Started: %s", c.StartedAt.UTC().Format(time.RFC3339)))
	}
	if c.InitialEndDate != nil {
		pieces = append(pieces, fmt.Sprintf("Initial End: %s", c.InitialEndDate.UTC().Format(time.RFC3339)))
	}
	if len(c.Content) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, c.Content); err == nil {
			pieces = append(pieces, fmt.Sprintf("Content JSON: %s", compact.String()))
		}
	}
	return strings.Join(pieces, "\n")
}
