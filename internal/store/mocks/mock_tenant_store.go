package mocks

import (
	"context"
	"sync"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

type MockTenantStore struct {
	mu    sync.Mutex
	tiers map[string]models.Tier
}

func NewMockTenantStore() *MockTenantStore {
	return &MockTenantStore{tiers: make(map[string]models.Tier)}
}

func (m *MockTenantStore) SetTier(tenantID string, tier models.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[tenantID] = tier
}

func (m *MockTenantStore) GetTier(ctx context.Context, tenantID string) (models.Tier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tier, ok := m.tiers[tenantID]
	if !ok {
		return "", store.ErrNotFound
	}
	return tier, nil
}
