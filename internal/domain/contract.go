package domain

import (
	"time"
)

// ContractStatus represents where a contract sits in its lifecycle
type ContractStatus string

const (
	ContractStatusDraft       ContractStatus = "Draft"
	ContractStatusOnReview    ContractStatus = "On Review"
	ContractStatusNegotiating ContractStatus = "Negotiating"
	ContractStatusActive      ContractStatus = "Active"
	ContractStatusSigned      ContractStatus = "Signed"
	ContractStatusFinished    ContractStatus = "Finished"
)

// ContractType represents the origin of a contract document
type ContractType string

const (
	ContractTypeBuiltIn  ContractType = "BuiltIn"
	ContractTypeImported ContractType = "Imported"
)

// Contract represents a contract record as read from the contract store.
// The copilot core only reads contracts; lifecycle management lives elsewhere.
type Contract struct {
	ID             string
	OwnerID        string
	Name           string
	Status         ContractStatus
	Type           ContractType
	CreatedAt      time.Time
	StartedAt      *time.Time
	InitialEndDate *time.Time
	Content        []byte // raw JSON document body, may be nil
}

// IsValidContractStatus checks if the given status is valid
func IsValidContractStatus(s ContractStatus) bool {
	switch s {
	case ContractStatusDraft, ContractStatusOnReview, ContractStatusNegotiating,
		ContractStatusActive, ContractStatusSigned, ContractStatusFinished:
		return true
	}
	return false
}

// ValidateContract validates a Contract instance
func ValidateContract(c *Contract) error {
	if c == nil {
		return NewDomainError(ErrCodeValidation, "contract cannot be nil")
	}
	if c.ID == "" {
		return NewDomainError(ErrCodeValidation, "contract ID is required")
	}
	if c.OwnerID == "" {
		return NewDomainError(ErrCodeValidation, "contract owner ID is required")
	}
	if c.Name == "" {
		return NewDomainError(ErrCodeValidation, "contract name is required")
	}
	if !IsValidContractStatus(c.Status) {
		return ErrInvalidContractStatus
	}
	return nil
}
