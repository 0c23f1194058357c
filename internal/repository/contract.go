package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satriadhikara/dock/internal/domain"
)

// ContractRepository reads contract records for ingestion and provenance.
// Contract lifecycle writes happen in the main application, never here.
type ContractRepository struct {
	db dbtx
}

func NewContractRepository(pool *pgxpool.Pool) *ContractRepository {
	return &ContractRepository{db: pool}
}

func (r *ContractRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Contract, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, owner_id, name, status, type, created_at, started_at, initial_end_date, content
		 FROM contract
		 WHERE owner_id = $1
		 ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContractRows(rows)
}

func (r *ContractRepository) GetByID(ctx context.Context, id string) (*domain.Contract, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, owner_id, name, status, type, created_at, started_at, initial_end_date, content
		 FROM contract
		 WHERE id = $1`,
		id,
	)

	contract, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}
	return contract, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*domain.Contract, error) {
	var c domain.Contract
	var status, contractType string
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &status, &contractType,
		&c.CreatedAt, &c.StartedAt, &c.InitialEndDate, &c.Content); err != nil {
		return nil, err
	}
	c.Status = domain.ContractStatus(status)
	c.Type = domain.ContractType(contractType)
	return &c, nil
}

func scanContractRows(rows pgx.Rows) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
