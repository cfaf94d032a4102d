package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/worldcitisim/affiliates/internal/affiliate/domain"
	auditdomain "github.com/worldcitisim/affiliates/internal/audit/domain"
	"github.com/worldcitisim/affiliates/internal/clock"
	"github.com/worldcitisim/affiliates/internal/config"
	identitydomain "github.com/worldcitisim/affiliates/internal/identity/domain"
	ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"
	"github.com/worldcitisim/affiliates/pkg/db"
	"github.com/worldcitisim/affiliates/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	uidLength      = 6
	uidMaxAttempts = 10
	bulkMaxCount   = 500
)

var uidPattern = regexp.MustCompile(`^[A-Z0-9]{4,128}$`)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	LedgerRepo  ledgerdomain.Repository
	Provisioner identitydomain.Provisioner
	Audit       auditdomain.Service
	Program     *config.ProgramConfigHolder
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	ledgerRepo  ledgerdomain.Repository
	provisioner identitydomain.Provisioner
	audit       auditdomain.Service
	program     *config.ProgramConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("affiliate.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		ledgerRepo:  p.LedgerRepo,
		provisioner: p.Provisioner,
		audit:       p.Audit,
		program:     p.Program,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAffiliateRequest) (domain.Affiliate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Affiliate{}, domain.ErrInvalidName
	}
	if req.CommissionPercent.IsNegative() {
		return domain.Affiliate{}, domain.ErrInvalidPercent
	}

	uid := strings.ToUpper(strings.TrimSpace(req.UID))
	if uid != "" {
		if !uidPattern.MatchString(uid) {
			return domain.Affiliate{}, domain.ErrInvalidUID
		}
		taken, err := s.repo.UIDExists(ctx, s.db, uid)
		if err != nil {
			return domain.Affiliate{}, err
		}
		if taken {
			return domain.Affiliate{}, domain.ErrUIDTaken
		}
	} else {
		generated, err := s.generateUniqueUID(ctx)
		if err != nil {
			return domain.Affiliate{}, err
		}
		uid = generated
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = s.autoEmail(uid)
	}

	now := s.clock.Now()
	affiliate := domain.Affiliate{
		ID:                s.genID.Generate(),
		UID:               uid,
		Name:              name,
		Email:             email,
		Phone:             strings.TrimSpace(req.Phone),
		NequiPhone:        strings.TrimSpace(req.NequiPhone),
		BankName:          strings.TrimSpace(req.BankName),
		BankAccountType:   strings.TrimSpace(req.BankAccountType),
		BankAccountNumber: strings.TrimSpace(req.BankAccountNumber),
		CommissionPercent: req.CommissionPercent,
		DashboardMode:     normalizeDashboardMode(req.DashboardMode),
		Status:            domain.StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Login provisioning is best-effort: a directory entry without a login
	// is still a valid agent.
	if user, err := s.provisioner.EnsureUser(ctx, identitydomain.EnsureUserRequest{
		Email:       email,
		DisplayName: name,
	}); err != nil {
		s.log.Warn("user provisioning failed",
			zap.String("uid", uid),
			zap.Error(err),
		)
	} else {
		affiliate.UserID = user.ID
	}

	if err := s.repo.Insert(ctx, s.db, &affiliate); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Affiliate{}, domain.ErrUIDTaken
		}
		return domain.Affiliate{}, err
	}

	s.auditLog(ctx, "affiliate_created", affiliate, nil)
	return affiliate, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateAffiliateRequest) (domain.Affiliate, error) {
	affiliate, err := s.findByID(ctx, req.ID)
	if err != nil {
		return domain.Affiliate{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Affiliate{}, domain.ErrInvalidName
	}
	if req.CommissionPercent.IsNegative() {
		return domain.Affiliate{}, domain.ErrInvalidPercent
	}

	affiliate.Name = name
	if email := strings.TrimSpace(req.Email); email != "" {
		affiliate.Email = email
	}
	affiliate.Phone = strings.TrimSpace(req.Phone)
	affiliate.NequiPhone = strings.TrimSpace(req.NequiPhone)
	affiliate.BankName = strings.TrimSpace(req.BankName)
	affiliate.BankAccountType = strings.TrimSpace(req.BankAccountType)
	affiliate.BankAccountNumber = strings.TrimSpace(req.BankAccountNumber)
	affiliate.CommissionPercent = req.CommissionPercent
	affiliate.DashboardMode = normalizeDashboardMode(req.DashboardMode)
	if req.Status == domain.StatusActive || req.Status == domain.StatusInactive {
		affiliate.Status = req.Status
	}
	affiliate.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, affiliate); err != nil {
		return domain.Affiliate{}, err
	}

	s.auditLog(ctx, "affiliate_updated", *affiliate, nil)
	return *affiliate, nil
}

// BulkGenerate creates UID-only agents: no login provisioning, placeholder
// name, auto-generated email.
func (s *Service) BulkGenerate(ctx context.Context, count int) ([]domain.Affiliate, error) {
	if count < 1 || count > bulkMaxCount {
		return nil, domain.ErrInvalidCount
	}

	affiliates := make([]domain.Affiliate, 0, count)
	for i := 0; i < count; i++ {
		uid, err := s.generateUniqueUID(ctx)
		if err != nil {
			return affiliates, err
		}
		now := s.clock.Now()
		affiliate := domain.Affiliate{
			ID:            s.genID.Generate(),
			UID:           uid,
			Name:          "Affiliate " + uid,
			Email:         s.autoEmail(uid),
			DashboardMode: "default",
			Status:        domain.StatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Insert(ctx, s.db, &affiliate); err != nil {
			return affiliates, err
		}
		affiliates = append(affiliates, affiliate)
	}

	s.audit.Log(ctx, "affiliates_bulk_generated", auditdomain.ResourceTypeAffiliate, "", map[string]any{
		"count": len(affiliates),
	})
	return affiliates, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Affiliate, error) {
	affiliate, err := s.findByID(ctx, id)
	if err != nil {
		return domain.Affiliate{}, err
	}
	return *affiliate, nil
}

// GetActiveByUID is the lookup the attribution tracker uses: inactive
// agents are invisible to it so stale cookies cannot attribute sales.
func (s *Service) GetActiveByUID(ctx context.Context, uid string) (domain.Affiliate, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return domain.Affiliate{}, domain.ErrNotFound
	}
	affiliate, err := s.repo.FindByUID(ctx, s.db, uid)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if affiliate == nil {
		return domain.Affiliate{}, domain.ErrNotFound
	}
	if !affiliate.IsActive() {
		return domain.Affiliate{}, domain.ErrInactive
	}
	return *affiliate, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAffiliateRequest) (domain.ListAffiliateResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	filter := domain.ListAffiliateFilter{
		Status: req.Status,
		Search: strings.TrimSpace(req.Search),
	}
	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListAffiliateResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(affiliate *domain.Affiliate) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        affiliate.ID.String(),
			CreatedAt: affiliate.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	affiliates := make([]domain.AffiliateWithTotals, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		row := domain.AffiliateWithTotals{Affiliate: *item}
		if req.WithTotals {
			totals, err := s.ledgerRepo.TotalsByAffiliate(ctx, s.db, item.ID)
			if err != nil {
				return domain.ListAffiliateResponse{}, err
			}
			row.Totals = totals
		}
		affiliates = append(affiliates, row)
	}

	resp := domain.ListAffiliateResponse{Affiliates: affiliates}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) UpdatePayoutDetails(ctx context.Context, req domain.UpdatePayoutRequest) (domain.Affiliate, error) {
	if !s.program.Get().AllowEditPayout {
		return domain.Affiliate{}, domain.ErrPayoutEditDisabled
	}

	affiliate, err := s.repo.FindByUID(ctx, s.db, strings.TrimSpace(req.UID))
	if err != nil {
		return domain.Affiliate{}, err
	}
	if affiliate == nil {
		return domain.Affiliate{}, domain.ErrNotFound
	}

	affiliate.NequiPhone = strings.TrimSpace(req.NequiPhone)
	affiliate.BankName = strings.TrimSpace(req.BankName)
	affiliate.BankAccountType = strings.TrimSpace(req.BankAccountType)
	affiliate.BankAccountNumber = strings.TrimSpace(req.BankAccountNumber)
	affiliate.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, affiliate); err != nil {
		return domain.Affiliate{}, err
	}

	s.auditLog(ctx, "affiliate_payout_updated", *affiliate, nil)
	return *affiliate, nil
}

// Delete removes the agent and every ledger row referencing it. This is
// the one irreversible operation in the directory.
func (s *Service) Delete(ctx context.Context, id string) error {
	affiliate, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledgerRepo.DeleteByAffiliate(ctx, tx, affiliate.ID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, affiliate.ID)
	})
	if err != nil {
		return err
	}

	s.auditLog(ctx, "affiliate_deleted", *affiliate, nil)
	return nil
}

// ReferralURL builds the share link: the UID (optionally prefixed) rides
// as a bare query key to keep the URL short, UTM tags follow when enabled.
func (s *Service) ReferralURL(uid string) string {
	cfg := s.program.Get()

	key := strings.TrimSpace(uid)
	if cfg.LinkPrefix != "" {
		key = cfg.LinkPrefix + "-" + key
	}
	referral := cfg.StoreURL + "/?" + url.QueryEscape(key)

	if cfg.EnableUTM {
		utm := url.Values{}
		if cfg.UTMSource != "" {
			utm.Set("utm_source", cfg.UTMSource)
		}
		if cfg.UTMMedium != "" {
			utm.Set("utm_medium", cfg.UTMMedium)
		}
		if cfg.UTMCampaign != "" {
			utm.Set("utm_campaign", cfg.UTMCampaign)
		}
		if cfg.UTMIncludeUIDContent {
			utm.Set("utm_content", uid)
		}
		if encoded := utm.Encode(); encoded != "" {
			referral += "&" + encoded
		}
	}

	return referral
}

func (s *Service) findByID(ctx context.Context, id string) (*domain.Affiliate, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return nil, domain.ErrInvalidID
	}
	affiliate, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, domain.ErrNotFound
	}
	return affiliate, nil
}

func (s *Service) generateUniqueUID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < uidMaxAttempts; attempt++ {
		uid, err := randomUID(uidLength)
		if err != nil {
			return "", err
		}
		exists, err := s.repo.UIDExists(ctx, s.db, uid)
		if err != nil {
			return "", err
		}
		if !exists {
			return uid, nil
		}
	}
	// Exhausted the random attempts; fall back to a timestamped UID that
	// cannot collide within a second.
	return fmt.Sprintf("AFF%d", s.clock.Now().Unix()), nil
}

func (s *Service) autoEmail(uid string) string {
	host := "example.com"
	if parsed, err := url.Parse(s.program.Get().StoreURL); err == nil && parsed.Hostname() != "" {
		host = parsed.Hostname()
	}
	return fmt.Sprintf("affiliate_%s@%s", strings.ToLower(uid), host)
}

func (s *Service) auditLog(ctx context.Context, action string, affiliate domain.Affiliate, extra map[string]any) {
	metadata := map[string]any{"uid": affiliate.UID}
	for key, value := range extra {
		metadata[key] = value
	}
	if err := s.audit.Log(ctx, action, auditdomain.ResourceTypeAffiliate, affiliate.ID.String(), metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizeDashboardMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case config.DashboardModeSimple:
		return config.DashboardModeSimple
	case config.DashboardModeAdvanced:
		return config.DashboardModeAdvanced
	default:
		return "default"
	}
}

const uidAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomUID(length int) (string, error) {
	max := big.NewInt(int64(len(uidAlphabet)))
	chars := make([]byte, length)
	for i := range chars {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		chars[i] = uidAlphabet[n.Int64()]
	}
	return string(chars), nil
}
