// Package orgs exposes the organization/identity binding consumed by the
// anchor workflow. Organization and API-key CRUD live in the account service;
// this package only reads the one invariant anchoring depends on: an identity
// belongs to at most one organization, set once and immutable.
package orgs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docanchor/pkg/platform/sentinel"
)

// Bindings resolves the one-to-one organization/identity binding.
type Bindings interface {
	// OrgForIdentity returns the owning organization ID, or
	// sentinel.ErrNotFound if the identity is bound to no organization.
	OrgForIdentity(ctx context.Context, identity string) (string, error)
	// IdentityForOrg returns the organization's assigned identity, or
	// sentinel.ErrNotFound if none has been assigned yet.
	IdentityForOrg(ctx context.Context, orgID string) (string, error)
}

// PostgresBindings reads the binding from the shared organizations table.
type PostgresBindings struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresBindings {
	return &PostgresBindings{pool: pool}
}

func (b *PostgresBindings) OrgForIdentity(ctx context.Context, identity string) (string, error) {
	var orgID string
	err := b.pool.QueryRow(ctx,
		`SELECT id FROM organizations WHERE identity = $1`,
		identity,
	).Scan(&orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("identity binding: %w", sentinel.ErrNotFound)
		}
		return "", fmt.Errorf("identity binding: %w", err)
	}
	return orgID, nil
}

func (b *PostgresBindings) IdentityForOrg(ctx context.Context, orgID string) (string, error) {
	var identity string
	err := b.pool.QueryRow(ctx,
		`SELECT identity FROM organizations WHERE id = $1 AND identity IS NOT NULL`,
		orgID,
	).Scan(&identity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("org identity: %w", sentinel.ErrNotFound)
		}
		return "", fmt.Errorf("org identity: %w", err)
	}
	return identity, nil
}

// MemoryBindings is the in-memory twin for unit tests and local development.
type MemoryBindings struct {
	mu    sync.RWMutex
	byDID map[string]string
}

func NewMemory() *MemoryBindings {
	return &MemoryBindings{byDID: make(map[string]string)}
}

// Bind assigns identity to orgID. Rebinding an identity is rejected to match
// the set-once invariant of the real organization store.
func (b *MemoryBindings) Bind(identity, orgID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byDID[identity]; exists {
		return sentinel.ErrConflict
	}
	b.byDID[identity] = orgID
	return nil
}

func (b *MemoryBindings) OrgForIdentity(_ context.Context, identity string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	orgID, exists := b.byDID[identity]
	if !exists {
		return "", fmt.Errorf("identity binding: %w", sentinel.ErrNotFound)
	}
	return orgID, nil
}

func (b *MemoryBindings) IdentityForOrg(_ context.Context, orgID string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for identity, owner := range b.byDID {
		if owner == orgID {
			return identity, nil
		}
	}
	return "", fmt.Errorf("org identity: %w", sentinel.ErrNotFound)
}
