package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/worldcitisim/affiliates/internal/clock"
	"github.com/worldcitisim/affiliates/internal/identity/domain"
	"github.com/worldcitisim/affiliates/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Provisioner {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// EnsureUser finds or creates the login identity for an email. Safe to call
// repeatedly; a concurrent insert for the same email resolves to the winner.
func (s *Service) EnsureUser(ctx context.Context, req domain.EnsureUserRequest) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.User{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.clock.Now()
	user := domain.User{
		ID:          s.genID.Generate(),
		Email:       email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			winner, findErr := s.repo.FindByEmail(ctx, s.db, email)
			if findErr == nil && winner != nil {
				return *winner, nil
			}
		}
		return domain.User{}, err
	}

	s.log.Info("user provisioned", zap.String("email", email))
	return user, nil
}
