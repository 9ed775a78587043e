package db

import (
	"context"
	"encoding/json"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// AuditStore writes audit_logs rows through the transaction in context.
type AuditStore struct {
	m *Manager
}

// NewAuditStore constructs AuditStore.
func NewAuditStore(m *Manager) *AuditStore {
	return &AuditStore{m: m}
}

// InsertAuditLog implements shared.AuditStore.
func (s *AuditStore) InsertAuditLog(ctx context.Context, log shared.AuditLog) error {
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = s.m.Conn(ctx).Exec(ctx, `INSERT INTO audit_logs (tenant_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, log.TenantID, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
