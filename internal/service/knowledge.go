package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/satriadhikara/dock/internal/domain"
	"github.com/satriadhikara/dock/internal/pagination"
	"github.com/satriadhikara/dock/internal/telemetry"
)

// Tool confirmations returned to the model and API callers.
const (
	KnowledgeAddedReply   = "Resource successfully created and embedded."
	NothingToEmbedReply   = "No content to embed."
	DefaultListChunkLimit = 50
)

// ChunkListRepository lists and deletes stored chunks for management calls.
type ChunkListRepository interface {
	ListByOwner(ctx context.Context, ownerID string, beforeID int64, limit int) ([]*domain.KnowledgeChunk, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	DeleteByContract(ctx context.Context, ownerID, contractID string) (int64, error)
}

// KnowledgeRepositoryInterface is the chunk persistence surface the
// knowledge service needs.
type KnowledgeRepositoryInterface interface {
	ChunkWriteRepository
	ChunkListRepository
}

// KnowledgeService manages the owner-scoped knowledge base: freeform
// additions from the add-knowledge tool plus chunk listing and purging.
type KnowledgeService struct {
	repo      KnowledgeRepositoryInterface
	embedding EmbeddingClient
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(repo KnowledgeRepositoryInterface, embedding EmbeddingClient) *KnowledgeService {
	return &KnowledgeService{
		repo:      repo,
		embedding: embedding,
	}
}

// AddKnowledge splits content into sentence fragments, embeds them and
// stores them for the owner with no source contract. The return value is a
// short confirmation meant to be fed back to the model as a tool result.
func (s *KnowledgeService) AddKnowledge(ctx context.Context, ownerID, content string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.AddKnowledge", telemetry.SpanAttributes{
		OwnerID:   ownerID,
		Operation: "add_knowledge",
	})
	defer span.End()

	if ownerID == "" {
		return "", fmt.Errorf("owner ID is required")
	}
	if strings.TrimSpace(content) == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "content is required")
	}

	fragments := SplitSentences(content)
	if len(fragments) == 0 {
		return NothingToEmbedReply, nil
	}

	embeddings, err := s.embedding.EmbedMany(ctx, fragments)
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("failed to embed content: %w", err)
	}

	now := time.Now().UTC()
	chunks := make([]domain.KnowledgeChunk, len(fragments))
	for i, fragment := range fragments {
		chunks[i] = domain.KnowledgeChunk{
			OwnerID:   ownerID,
			Content:   fragment,
			Embedding: embeddings[i],
			CreatedAt: now,
		}
	}

	if err := s.repo.InsertChunks(ctx, chunks); err != nil {
		span.SetError(err)
		return "", fmt.Errorf("failed to store chunks: %w", err)
	}

	return KnowledgeAddedReply, nil
}

// ListChunksInput represents input for listing an owner's chunks.
type ListChunksInput struct {
	OwnerID string
	Cursor  string
	Limit   int
}

// ListChunksOutput is one page of chunks with an opaque cursor for the next page.
type ListChunksOutput struct {
	Items      []*domain.KnowledgeChunk
	Total      int64
	NextCursor string
	HasMore    bool
}

// ListChunks returns one page of the owner's chunks, newest first. The
// cursor is keyset-based so concurrent inserts never shift pages.
func (s *KnowledgeService) ListChunks(ctx context.Context, input ListChunksInput) (*ListChunksOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.ListChunks", telemetry.SpanAttributes{
		OwnerID:   input.OwnerID,
		Operation: "list_chunks",
	})
	defer span.End()

	if input.OwnerID == "" {
		return nil, fmt.Errorf("owner ID is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListChunkLimit
	}

	var beforeID int64
	if input.Cursor != "" {
		cursor, err := pagination.DecodeCursor(input.Cursor)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
		}
		beforeID, err = strconv.ParseInt(cursor.LastID, 10, 64)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
		}
	}

	items, err := s.repo.ListByOwner(ctx, input.OwnerID, beforeID, limit+1)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(strconv.FormatInt(last.ID, 10), last.CreatedAt)
	}

	total, err := s.repo.CountByOwner(ctx, input.OwnerID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	return &ListChunksOutput{
		Items:      items,
		Total:      total,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// PurgeContract removes every stored chunk for one of the owner's
// contracts. Callers use it ahead of a re-ingest when running in additive
// mode, and it backs the cascade when a contract is deleted upstream.
func (s *KnowledgeService) PurgeContract(ctx context.Context, ownerID, contractID string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.PurgeContract", telemetry.SpanAttributes{
		OwnerID:    ownerID,
		ContractID: contractID,
		Operation:  "purge_contract",
	})
	defer span.End()

	if ownerID == "" {
		return 0, fmt.Errorf("owner ID is required")
	}
	if contractID == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "contract ID is required")
	}

	deleted, err := s.repo.DeleteByContract(ctx, ownerID, contractID)
	if err != nil {
		span.SetError(err)
		return 0, fmt.Errorf("failed to purge chunks: %w", err)
	}

	return deleted, nil
}
