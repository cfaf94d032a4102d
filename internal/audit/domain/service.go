package domain

import (
	"context"
	"errors"
)

// Service writes the audit trail. OrderNote is best-effort: callers in the
// order pipeline must not fail when a note cannot be written.
type Service interface {
	Log(ctx context.Context, action, resourceType, resourceID string, metadata map[string]any) error
	OrderNote(ctx context.Context, orderID, note string)
	ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
)
