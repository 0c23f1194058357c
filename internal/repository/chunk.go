package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/satriadhikara/dock/internal/domain"
	"github.com/satriadhikara/dock/internal/service"
)

// KnowledgeChunkRepository persists embedded chunks and answers similarity
// queries against them.
type KnowledgeChunkRepository struct {
	pool *pgxpool.Pool
}

func NewKnowledgeChunkRepository(pool *pgxpool.Pool) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{pool: pool}
}

const insertChunkSQL = `
	INSERT INTO contract_chunk_embeddings (owner_id, contract_id, content, embedding, created_at)
	VALUES ($1, $2, $3, $4, $5)`

// InsertChunks writes a batch of chunks in a single transaction. Either the
// whole batch becomes visible or none of it does.
func (r *KnowledgeChunkRepository) InsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		if err := domain.ValidateKnowledgeChunk(&c); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertChunkSQL,
			c.OwnerID,
			nullableString(c.ContractID),
			c.Content,
			pgvector.NewVector(c.Embedding),
			c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ReplaceForContracts deletes the owner's existing chunks for the given
// contract IDs and inserts the new batch, all in one transaction. A reader
// never sees a contract half-refreshed.
func (r *KnowledgeChunkRepository) ReplaceForContracts(ctx context.Context, ownerID string, contractIDs []string, chunks []domain.KnowledgeChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if len(contractIDs) > 0 {
		_, err = tx.Exec(ctx,
			`DELETE FROM contract_chunk_embeddings WHERE owner_id = $1 AND contract_id = ANY($2)`,
			ownerID, contractIDs,
		)
		if err != nil {
			return fmt.Errorf("failed to delete prior chunks: %w", err)
		}
	}

	for _, c := range chunks {
		if err := domain.ValidateKnowledgeChunk(&c); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertChunkSQL,
			c.OwnerID,
			nullableString(c.ContractID),
			c.Content,
			pgvector.NewVector(c.Embedding),
			c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// SearchByOwner returns the owner's chunks whose cosine similarity to the
// query embedding exceeds minSimilarity, most similar first and at most
// limit rows. Ties are broken by chunk ID so repeated identical queries
// return stable results.
func (r *KnowledgeChunkRepository) SearchByOwner(ctx context.Context, ownerID string, embedding []float32, minSimilarity float64, limit int) ([]*service.RetrievalResult, error) {
	if limit <= 0 {
		limit = service.DefaultTopK
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.pool.Query(ctx, `
		SELECT c.content,
		       1 - (c.embedding <=> $1) AS similarity,
		       c.contract_id,
		       ct.name
		FROM contract_chunk_embeddings c
		LEFT JOIN contract ct ON ct.id = c.contract_id
		WHERE c.owner_id = $2
		  AND 1 - (c.embedding <=> $1) > $3
		ORDER BY similarity DESC, c.id ASC
		LIMIT $4`,
		vec, ownerID, minSimilarity, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*service.RetrievalResult, 0)
	for rows.Next() {
		var result service.RetrievalResult
		var contractID, contractName *string
		if err := rows.Scan(&result.Content, &result.Similarity, &contractID, &contractName); err != nil {
			return nil, err
		}
		if contractID != nil {
			result.ContractID = *contractID
		}
		if contractName != nil {
			result.ContractName = *contractName
		}
		results = append(results, &result)
	}

	return results, rows.Err()
}

// ListByOwner returns up to limit chunks newest first, skipping rows at or
// after beforeID when it is non-zero. Embeddings are not loaded; management
// listings only need the text and provenance.
func (r *KnowledgeChunkRepository) ListByOwner(ctx context.Context, ownerID string, beforeID int64, limit int) ([]*domain.KnowledgeChunk, error) {
	query := `
		SELECT id, owner_id, contract_id, content, created_at
		FROM contract_chunk_embeddings
		WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if beforeID > 0 {
		query += " AND id < $2"
		args = append(args, beforeID)
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.KnowledgeChunk
	for rows.Next() {
		var c domain.KnowledgeChunk
		var contractID *string
		if err := rows.Scan(&c.ID, &c.OwnerID, &contractID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		if contractID != nil {
			c.ContractID = *contractID
		}
		chunks = append(chunks, &c)
	}

	return chunks, rows.Err()
}

// CountByOwner returns the number of chunks stored for an owner.
func (r *KnowledgeChunkRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contract_chunk_embeddings WHERE owner_id = $1`,
		ownerID,
	).Scan(&count)
	return count, err
}

// DeleteByContract removes all of the owner's chunks for one contract and
// reports how many were deleted.
func (r *KnowledgeChunkRepository) DeleteByContract(ctx context.Context, ownerID, contractID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM contract_chunk_embeddings WHERE owner_id = $1 AND contract_id = $2`,
		ownerID, contractID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
