package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"agentsched/internal/models"
	"agentsched/internal/store"
)

type TenantStore struct {
	db *sql.DB
}

func NewTenantStore(db *sql.DB) *TenantStore {
	return &TenantStore{db: db}
}

func (s *TenantStore) GetTier(ctx context.Context, tenantID string) (models.Tier, error) {
	var tier models.Tier
	err := s.db.QueryRowContext(ctx, `SELECT tier FROM tenants WHERE id = $1`, tenantID).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query tenant tier: %w", err)
	}
	return tier, nil
}
