// Package store persists the proof index: a deduplicated mapping from content
// hash to anchoring metadata. The unique constraint on content_hash is the
// only thing that resolves concurrent anchor races.
package store

import (
	"context"

	"docanchor/internal/anchor/models"
)

// Store is the proof index contract. Implementations return
// sentinel.ErrConflict from Insert when the hash is already indexed and
// sentinel.ErrNotFound from GetByHash when it is not.
type Store interface {
	Insert(ctx context.Context, proof *models.DocumentProof) error
	GetByHash(ctx context.Context, contentHash string) (*models.DocumentProof, error)
	ListByIssuer(ctx context.Context, issuerIdentity string, limit int) ([]*models.DocumentProof, error)
}
