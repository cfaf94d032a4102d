package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	auditdomain "github.com/worldcitisim/affiliates/internal/audit/domain"
	"github.com/worldcitisim/affiliates/internal/clock"
	ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"
	"github.com/worldcitisim/affiliates/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNothingToExport = errors.New("nothing_to_export")
	ErrBatchNotFound   = errors.New("batch_not_found")
)

var csvHeader = []string{
	"affiliate_id",
	"uid",
	"name",
	"email",
	"nequi_phone",
	"bank_name",
	"bank_account_type",
	"bank_account_number",
	"total_commission",
	"currency",
}

// PayoutBatch is one CSV payout run: every pending row aggregated per
// agent, then flipped to exported under a shared batch id.
type PayoutBatch struct {
	BatchID    string `json:"batch_id"`
	Filename   string `json:"filename"`
	CSV        []byte `json:"-"`
	Entries    int    `json:"entries"`
	Affiliates int    `json:"affiliates"`
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Ledger     ledgerdomain.Repository
	Affiliates affiliatedomain.Repository
	Audit      auditdomain.Service
	Metrics    *metrics.Metrics
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	ledger     ledgerdomain.Repository
	affiliates affiliatedomain.Repository
	audit      auditdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("export.service"),
		clock:      p.Clock,
		ledger:     p.Ledger,
		affiliates: p.Affiliates,
		audit:      p.Audit,
		metrics:    p.Metrics,
	}
}

// BuildPayoutBatch aggregates all pending rows per agent into a CSV and
// marks them exported under a fresh batch id.
func (s *Service) BuildPayoutBatch(ctx context.Context) (PayoutBatch, error) {
	pending, err := s.ledger.ListPending(ctx, s.db)
	if err != nil {
		return PayoutBatch{}, err
	}
	if len(pending) == 0 {
		return PayoutBatch{}, ErrNothingToExport
	}

	type aggregate struct {
		total    decimal.Decimal
		currency string
	}
	sums := map[snowflake.ID]*aggregate{}
	order := make([]snowflake.ID, 0, 8)
	ids := make([]snowflake.ID, 0, len(pending))
	for _, entry := range pending {
		ids = append(ids, entry.ID)
		agg, ok := sums[entry.AffiliateID]
		if !ok {
			agg = &aggregate{total: decimal.Zero, currency: entry.Currency}
			sums[entry.AffiliateID] = agg
			order = append(order, entry.AffiliateID)
		}
		agg.total = agg.total.Add(entry.CommissionAmount)
	}

	now := s.clock.Now()
	batchID := "batch-" + now.Format("20060102-150405")

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return PayoutBatch{}, err
	}
	written := 0
	for _, affiliateID := range order {
		affiliate, err := s.affiliates.FindByID(ctx, s.db, affiliateID)
		if err != nil {
			return PayoutBatch{}, err
		}
		if affiliate == nil {
			// Directory row gone but ledger rows remain; export the rest.
			s.log.Warn("pending commission for missing affiliate",
				zap.String("affiliate_id", affiliateID.String()),
			)
			continue
		}
		agg := sums[affiliateID]
		record := []string{
			affiliate.ID.String(),
			affiliate.UID,
			affiliate.Name,
			affiliate.Email,
			affiliate.NequiPhone,
			affiliate.BankName,
			affiliate.BankAccountType,
			affiliate.BankAccountNumber,
			agg.total.StringFixed(2),
			agg.currency,
		}
		if err := writer.Write(record); err != nil {
			return PayoutBatch{}, err
		}
		written++
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return PayoutBatch{}, err
	}

	marked, err := s.ledger.MarkPendingExported(ctx, s.db, ids, batchID)
	if err != nil {
		return PayoutBatch{}, err
	}

	s.metrics.IncExportBatch(int(marked))
	if err := s.audit.Log(ctx, "payout_batch_exported", auditdomain.ResourceTypeExport, batchID, map[string]any{
		"entries":    marked,
		"affiliates": written,
	}); err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}
	s.log.Info("payout batch exported",
		zap.String("batch_id", batchID),
		zap.Int64("entries", marked),
		zap.Int("affiliates", written),
	)

	return PayoutBatch{
		BatchID:    batchID,
		Filename:   fmt.Sprintf("affiliate-commissions-%s.csv", now.Format("20060102-150405")),
		CSV:        buf.Bytes(),
		Entries:    int(marked),
		Affiliates: written,
	}, nil
}

// MarkBatchPaid moves every exported row in the batch to paid.
func (s *Service) MarkBatchPaid(ctx context.Context, batchID string) (int64, error) {
	if batchID == "" {
		return 0, ErrBatchNotFound
	}
	marked, err := s.ledger.MarkBatchPaid(ctx, s.db, batchID, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if marked == 0 {
		return 0, ErrBatchNotFound
	}

	if err := s.audit.Log(ctx, "payout_batch_paid", auditdomain.ResourceTypeExport, batchID, map[string]any{
		"entries": marked,
	}); err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}
	s.log.Info("payout batch marked paid",
		zap.String("batch_id", batchID),
		zap.Int64("entries", marked),
	)
	return marked, nil
}
