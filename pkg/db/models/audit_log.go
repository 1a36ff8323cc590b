package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only trail of state transitions. Rows are never
// updated or deleted.
type AuditLog struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID  uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	ActorID   *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	Action    string          `gorm:"column:action;not null"`
	Entity    string          `gorm:"column:entity;not null"`
	EntityID  uuid.UUID       `gorm:"column:entity_id;type:uuid;not null;index"`
	Metadata  json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
