package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	ListByResource(ctx context.Context, db *gorm.DB, resourceType, resourceID string, limit int) ([]AuditLog, error)
}
