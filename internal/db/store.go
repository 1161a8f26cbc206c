package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/contract-broker/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// ingestLockKey serializes ingestion batches across processes.
const ingestLockKey int64 = 0x6b6470 // "kdp"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ContractBatch is the transactional view the ingestion coordinator writes through.
// Exists sees rows inserted earlier in the same batch.
type ContractBatch interface {
	Exists(ctx context.Context, title, agency string) (bool, error)
	Insert(ctx context.Context, c *models.Contract) error
}

type txContractBatch struct {
	tx pgx.Tx
}

func (b *txContractBatch) Exists(ctx context.Context, title, agency string) (bool, error) {
	var exists bool
	err := b.tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM contracts WHERE title = $1 AND agency = $2)",
		title, agency,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup lookup failed: %w", err)
	}
	return exists, nil
}

func (b *txContractBatch) Insert(ctx context.Context, c *models.Contract) error {
	if c.Status == "" {
		c.Status = models.ContractStatusActive
	}
	err := b.tx.QueryRow(ctx, `
		INSERT INTO contracts (title, agency, naics_code, value, deadline, status, opportunity_score, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, c.Title, c.Agency, c.NAICSCode, c.Value, c.Deadline, c.Status, c.OpportunityScore, c.Notes,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contract failed: %w", err)
	}
	return nil
}

// WithContractBatch runs fn inside one transaction holding the ingestion lock.
// The transaction commits only when fn returns nil.
func (s *Store) WithContractBatch(ctx context.Context, fn func(ContractBatch) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", ingestLockKey); err != nil {
		return fmt.Errorf("acquire ingest lock: %w", err)
	}

	if err := fn(&txContractBatch{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

const contractCols = `id, title, agency, naics_code, value, deadline, status, opportunity_score, notes, created_at, updated_at`

func scanContract(scan func(dest ...interface{}) error) (models.Contract, error) {
	var c models.Contract
	err := scan(&c.ID, &c.Title, &c.Agency, &c.NAICSCode, &c.Value, &c.Deadline,
		&c.Status, &c.OpportunityScore, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type ContractFilter struct {
	Query          string
	Agency         string
	MinValue       float64
	MaxValue       float64
	Status         string
	DeadlineAfter  *time.Time
	DeadlineBefore *time.Time
	Limit          int
	Offset         int
}

func buildContractWhere(f ContractFilter) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if f.Query != "" {
		where += fmt.Sprintf(" AND (title ILIKE '%%' || $%d || '%%' OR agency ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, f.Query)
		argIdx++
	}
	if f.Agency != "" {
		where += fmt.Sprintf(" AND agency = $%d", argIdx)
		args = append(args, f.Agency)
		argIdx++
	}
	if f.MinValue > 0 {
		where += fmt.Sprintf(" AND value >= $%d", argIdx)
		args = append(args, f.MinValue)
		argIdx++
	}
	if f.MaxValue > 0 {
		where += fmt.Sprintf(" AND value <= $%d", argIdx)
		args = append(args, f.MaxValue)
		argIdx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, f.Status)
		argIdx++
	}
	if f.DeadlineAfter != nil {
		where += fmt.Sprintf(" AND deadline >= $%d", argIdx)
		args = append(args, *f.DeadlineAfter)
		argIdx++
	}
	if f.DeadlineBefore != nil {
		where += fmt.Sprintf(" AND deadline <= $%d", argIdx)
		args = append(args, *f.DeadlineBefore)
	}

	return where, args
}

func (s *Store) ListContracts(ctx context.Context, f ContractFilter) ([]models.Contract, error) {
	where, args := buildContractWhere(f)
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	sql := fmt.Sprintf("SELECT %s FROM contracts %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		contractCols, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	contracts := []models.Contract{}
	for rows.Next() {
		c, err := scanContract(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return contracts, nil
}

func (s *Store) GetContract(ctx context.Context, id int64) (*models.Contract, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM contracts WHERE id = $1", contractCols), id)
	c, err := scanContract(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("contract %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get contract %d: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ContractsCreatedSince(ctx context.Context, since time.Time) ([]models.Contract, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM contracts WHERE created_at >= $1 ORDER BY created_at ASC, id ASC", contractCols),
		since)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		c, err := scanContract(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
