package domain

import "time"

// KnowledgeChunk is a single retrievable unit of text with its embedding.
// Chunks are immutable after insert; refreshing a contract's knowledge is
// modeled as delete-then-insert, never in-place mutation.
type KnowledgeChunk struct {
	ID         int64
	OwnerID    string
	ContractID string // empty for freeform added knowledge
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// ValidateKnowledgeChunk validates a KnowledgeChunk prior to insert
func ValidateKnowledgeChunk(c *KnowledgeChunk) error {
	if c == nil {
		return NewDomainError(ErrCodeValidation, "knowledge chunk cannot be nil")
	}
	if c.OwnerID == "" {
		return NewDomainError(ErrCodeValidation, "knowledge chunk owner ID is required")
	}
	if c.Content == "" {
		return NewDomainError(ErrCodeValidation, "knowledge chunk content is required")
	}
	if len(c.Embedding) == 0 {
		return NewDomainError(ErrCodeValidation, "knowledge chunk embedding is required")
	}
	return nil
}
