package store

import (
	"context"
	"sort"
	"sync"

	"docanchor/internal/anchor/models"
	"docanchor/pkg/platform/sentinel"
)

// MemoryStore is the in-memory twin of the Postgres store, used by unit tests
// and local development. Mirrors the uniqueness semantics exactly.
type MemoryStore struct {
	mu     sync.RWMutex
	byHash map[string]*models.DocumentProof
}

func NewMemory() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]*models.DocumentProof)}
}

func (s *MemoryStore) Insert(_ context.Context, proof *models.DocumentProof) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[proof.ContentHash]; exists {
		return sentinel.ErrConflict
	}
	cp := *proof
	s.byHash[proof.ContentHash] = &cp
	return nil
}

func (s *MemoryStore) GetByHash(_ context.Context, contentHash string) (*models.DocumentProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proof, exists := s.byHash[contentHash]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	cp := *proof
	return &cp, nil
}

func (s *MemoryStore) ListByIssuer(_ context.Context, issuerIdentity string, limit int) ([]*models.DocumentProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.DocumentProof, 0)
	for _, proof := range s.byHash {
		if proof.IssuerIdentity == issuerIdentity {
			cp := *proof
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
