package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/worldcitisim/affiliates/internal/audit/domain"
	"github.com/worldcitisim/affiliates/internal/clock"
	"github.com/worldcitisim/affiliates/internal/reqcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Log(ctx context.Context, action, resourceType, resourceID string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	resourceType = strings.TrimSpace(resourceType)
	if resourceType == "" {
		resourceType = "unknown"
	}

	payload := map[string]any{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	actorType, actorID := reqcontext.ActorFromContext(ctx)

	entry := auditdomain.AuditLog{
		ID:           s.genID.Generate(),
		ActorType:    actorType,
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   strings.TrimSpace(resourceID),
		Metadata:     datatypes.JSONMap(payload),
		RequestID:    reqcontext.RequestIDFromContext(ctx),
		IPAddress:    reqcontext.IPAddressFromContext(ctx),
		UserAgent:    reqcontext.UserAgentFromContext(ctx),
		CreatedAt:    s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

// OrderNote appends an informational note to an order's audit trail.
// Failures are logged and swallowed so the order pipeline never breaks.
func (s *Service) OrderNote(ctx context.Context, orderID, note string) {
	note = strings.TrimSpace(note)
	if note == "" || strings.TrimSpace(orderID) == "" {
		return
	}

	entry := auditdomain.AuditLog{
		ID:           s.genID.Generate(),
		Action:       "order_note",
		ResourceType: auditdomain.ResourceTypeOrder,
		ResourceID:   strings.TrimSpace(orderID),
		Note:         note,
		RequestID:    reqcontext.RequestIDFromContext(ctx),
		IPAddress:    reqcontext.IPAddressFromContext(ctx),
		UserAgent:    reqcontext.UserAgentFromContext(ctx),
		CreatedAt:    s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write order note",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (s *Service) ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]auditdomain.AuditLog, error) {
	return s.repo.ListByResource(ctx, s.db, strings.TrimSpace(resourceType), strings.TrimSpace(resourceID), limit)
}
