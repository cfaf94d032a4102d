package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an append-only record of an administrative action or an
// order note written by the commission engine.
type AuditLog struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType    string            `gorm:"not null;default:''" json:"actor_type"`
	ActorID      string            `gorm:"not null;default:''" json:"actor_id"`
	Action       string            `gorm:"not null" json:"action"`
	ResourceType string            `gorm:"not null;default:'';index:idx_audit_logs_resource,priority:1" json:"resource_type"`
	ResourceID   string            `gorm:"not null;default:'';index:idx_audit_logs_resource,priority:2" json:"resource_id"`
	Note         string            `gorm:"type:text;not null;default:''" json:"note"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	RequestID    string            `gorm:"not null;default:''" json:"request_id"`
	IPAddress    string            `gorm:"not null;default:''" json:"ip_address"`
	UserAgent    string            `gorm:"type:text;not null;default:''" json:"user_agent"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

const (
	ResourceTypeOrder     = "order"
	ResourceTypeAffiliate = "affiliate"
	ResourceTypeExport    = "export_batch"
)
