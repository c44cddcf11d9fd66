package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"docanchor/internal/anchor/models"
	"docanchor/pkg/platform/sentinel"
)

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

// PostgresStore persists document proofs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed proof index.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert writes a new proof row. The unique index on content_hash resolves
// check-then-insert races: the losing writer gets sentinel.ErrConflict and
// must respond with the winner's row.
func (s *PostgresStore) Insert(ctx context.Context, proof *models.DocumentProof) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_proofs
			(id, content_hash, transaction_id, consensus_timestamp, issuer_identity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		proof.ID,
		proof.ContentHash,
		proof.TransactionID,
		proof.ConsensusTimestamp,
		proof.IssuerIdentity,
		proof.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("insert proof: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert proof: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByHash(ctx context.Context, contentHash string) (*models.DocumentProof, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, content_hash, transaction_id, consensus_timestamp, issuer_identity, created_at
		FROM document_proofs
		WHERE content_hash = $1`,
		contentHash,
	)

	var proof models.DocumentProof
	err := row.Scan(
		&proof.ID,
		&proof.ContentHash,
		&proof.TransactionID,
		&proof.ConsensusTimestamp,
		&proof.IssuerIdentity,
		&proof.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get proof: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get proof: %w", err)
	}
	return &proof, nil
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, issuerIdentity string, limit int) ([]*models.DocumentProof, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content_hash, transaction_id, consensus_timestamp, issuer_identity, created_at
		FROM document_proofs
		WHERE issuer_identity = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		issuerIdentity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list proofs: %w", err)
	}
	defer rows.Close()

	proofs := make([]*models.DocumentProof, 0)
	for rows.Next() {
		var proof models.DocumentProof
		if err := rows.Scan(
			&proof.ID,
			&proof.ContentHash,
			&proof.TransactionID,
			&proof.ConsensusTimestamp,
			&proof.IssuerIdentity,
			&proof.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan proof: %w", err)
		}
		proofs = append(proofs, &proof)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list proofs: %w", err)
	}
	return proofs, nil
}
