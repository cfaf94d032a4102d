package commission

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	auditdomain "github.com/worldcitisim/affiliates/internal/audit/domain"
	"github.com/worldcitisim/affiliates/internal/clock"
	"github.com/worldcitisim/affiliates/internal/config"
	ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"
	"github.com/worldcitisim/affiliates/internal/observability/metrics"
	orderdomain "github.com/worldcitisim/affiliates/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// epsilon below which a net refund is treated as zero.
var epsilon = decimal.New(1, -6)

var oneHundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Affiliates affiliatedomain.Repository
	Ledger     ledgerdomain.Repository
	Audit      auditdomain.Service
	Program    *config.ProgramConfigHolder
	Metrics    *metrics.Metrics
}

// Engine is the commission lifecycle state machine. State per
// (order, agent) pair is never stored; it is re-derived from the ledger
// rows on every event, which makes all three entry points idempotent and
// safe against replayed order events.
type Engine struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	affiliates affiliatedomain.Repository
	ledger     ledgerdomain.Repository
	audit      auditdomain.Service
	program    *config.ProgramConfigHolder
	metrics    *metrics.Metrics
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:         p.DB,
		log:        p.Log.Named("commission.engine"),
		genID:      p.GenID,
		clock:      p.Clock,
		affiliates: p.Affiliates,
		ledger:     p.Ledger,
		audit:      p.Audit,
		program:    p.Program,
		metrics:    p.Metrics,
	}
}

// CreateCommission inserts the pending commission row for a completed
// order. Re-delivery of the completed event is a duplicate no-op.
func (e *Engine) CreateCommission(ctx context.Context, order orderdomain.Order) (Outcome, error) {
	uid := order.AffiliateUID()
	rawID := ""
	if order.Metadata != nil {
		rawID = order.Metadata[orderdomain.MetaAffiliateID]
	}
	if uid == "" || rawID == "" {
		e.metrics.IncCommissionNoop(ReasonNoAttribution)
		return noop(ReasonNoAttribution), nil
	}
	affiliateID, err := snowflake.ParseString(rawID)
	if err != nil || affiliateID == 0 {
		e.metrics.IncCommissionNoop(ReasonNoAttribution)
		return noop(ReasonNoAttribution), nil
	}

	exists, err := e.ledger.ExistsForOrderAffiliate(ctx, e.db, order.ID, affiliateID)
	if err != nil {
		return Outcome{}, err
	}
	if exists {
		e.metrics.IncCommissionNoop(ReasonDuplicate)
		return noop(ReasonDuplicate), nil
	}

	affiliate, err := e.affiliates.FindByID(ctx, e.db, affiliateID)
	if err != nil {
		return Outcome{}, err
	}
	if affiliate == nil {
		e.metrics.IncCommissionNoop(ReasonAgentNotFound)
		return noop(ReasonAgentNotFound), nil
	}
	if !affiliate.IsActive() {
		e.metrics.IncCommissionNoop(ReasonAgentInactive)
		return noop(ReasonAgentInactive), nil
	}

	cfg := e.program.Get()
	rate := affiliate.CommissionPercent
	if !rate.IsPositive() {
		rate = decimal.NewFromFloat(cfg.DefaultCommissionPercent)
	}

	base := commissionBase(order, cfg.CommissionBase).Round(6)
	amount := base.Mul(rate).Div(oneHundred).Round(6)
	if !amount.IsPositive() {
		e.metrics.IncCommissionNoop(ReasonZeroAmount)
		return noop(ReasonZeroAmount), nil
	}

	entry := ledgerdomain.Entry{
		ID:                e.genID.Generate(),
		AffiliateID:       affiliate.ID,
		UID:               affiliate.UID,
		OrderID:           order.ID,
		OrderTotal:        order.Total,
		CommissionBase:    base,
		CommissionPercent: rate,
		CommissionAmount:  amount,
		Currency:          order.Currency,
		Status:            ledgerdomain.StatusPending,
		CreatedAt:         e.clock.Now(),
	}
	if err := e.ledger.Insert(ctx, e.db, &entry); err != nil {
		e.log.Error("commission insert failed",
			zap.String("order_id", order.ID),
			zap.String("uid", affiliate.UID),
			zap.Error(err),
		)
		return Outcome{}, err
	}

	e.metrics.IncLedgerEntry("commission")
	e.audit.OrderNote(ctx, order.ID, fmt.Sprintf(
		"Affiliate commission %s %s recorded for agent %s.",
		amount.StringFixed(2), order.Currency, affiliate.UID,
	))
	e.log.Info("commission created",
		zap.String("order_id", order.ID),
		zap.String("uid", affiliate.UID),
		zap.String("amount", amount.String()),
	)

	return Outcome{Applied: true, Entries: []ledgerdomain.Entry{entry}}, nil
}

// ApplyRefund inserts proportional negative adjustment rows for a partial
// refund. Each partial refund over an order's life produces its own
// adjustment; the running net is always the sum of all rows.
func (e *Engine) ApplyRefund(ctx context.Context, order orderdomain.Order, refund orderdomain.Refund) (Outcome, error) {
	entries, err := e.ledger.ListByOrder(ctx, e.db, order.ID, ledgerdomain.EntryFilter{
		PositiveOnly: true,
		NonVoid:      true,
	})
	if err != nil {
		return Outcome{}, err
	}
	if len(entries) == 0 {
		e.metrics.IncCommissionNoop(ReasonNoEntries)
		return noop(ReasonNoEntries), nil
	}

	// Shipping is excluded from the commission base in both known modes,
	// so it is excluded from the numerator and denominator alike to keep
	// the ratio undistorted.
	netRefund := refund.Amount.Abs().Sub(refund.ShippingAmount).Sub(refund.ShippingTax)
	if netRefund.LessThanOrEqual(epsilon) {
		e.metrics.IncCommissionNoop(ReasonRefundTooSmall)
		return noop(ReasonRefundTooSmall), nil
	}

	denominator := order.Total.Sub(order.ShippingTotal).Sub(order.ShippingTax)
	ratio := decimal.NewFromInt(1)
	if denominator.IsPositive() {
		ratio = netRefund.Div(denominator)
		if ratio.GreaterThan(decimal.NewFromInt(1)) {
			ratio = decimal.NewFromInt(1)
		}
	}

	now := e.clock.Now()
	inserted := make([]ledgerdomain.Entry, 0, len(entries))
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, original := range entries {
			deduction := original.CommissionAmount.Mul(ratio).Round(6)
			if !deduction.IsPositive() {
				continue
			}
			adjustment := ledgerdomain.Entry{
				ID:                e.genID.Generate(),
				AffiliateID:       original.AffiliateID,
				UID:               original.UID,
				OrderID:           order.ID,
				OrderTotal:        order.Total,
				CommissionBase:    netRefund,
				CommissionPercent: original.CommissionPercent,
				CommissionAmount:  deduction.Neg(),
				Currency:          original.Currency,
				Status:            ledgerdomain.StatusPending,
				CreatedAt:         now,
			}
			if err := e.ledger.Insert(ctx, tx, &adjustment); err != nil {
				return err
			}
			inserted = append(inserted, adjustment)
		}
		return nil
	})
	if err != nil {
		e.log.Error("refund adjustment insert failed",
			zap.String("order_id", order.ID),
			zap.String("refund_id", refund.ID),
			zap.Error(err),
		)
		return Outcome{}, err
	}
	if len(inserted) == 0 {
		e.metrics.IncCommissionNoop(ReasonZeroAmount)
		return noop(ReasonZeroAmount), nil
	}

	e.metrics.AddLedgerEntries("refund_adjustment", len(inserted))
	for _, adjustment := range inserted {
		e.audit.OrderNote(ctx, order.ID, fmt.Sprintf(
			"Affiliate commission adjusted by %s %s for agent %s after refund %s.",
			adjustment.CommissionAmount.StringFixed(2), adjustment.Currency, adjustment.UID, refund.ID,
		))
	}
	e.log.Info("refund adjustments created",
		zap.String("order_id", order.ID),
		zap.String("refund_id", refund.ID),
		zap.Int("rows", len(inserted)),
	)

	return Outcome{Applied: true, Entries: inserted}, nil
}

// SettleToZero is the catch-all for orders reaching a terminal negative
// status: void every unpaid row, both signs, then claw back any paid-out
// remainder with a clearing row per (affiliate, currency).
func (e *Engine) SettleToZero(ctx context.Context, order orderdomain.Order, reason string) (Outcome, error) {
	if reason == "" {
		reason = "order_" + order.Status
	}

	var (
		voided   int64
		inserted []ledgerdomain.Entry
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := e.ledger.VoidUnpaidByOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		voided = count

		// Whatever is still non-void is paid; if its net is positive the
		// agent holds money for a dead order and owes it back.
		nets, err := e.ledger.NetByAffiliateCurrency(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		for _, net := range nets {
			if !net.Net.IsPositive() {
				continue
			}
			clearing := ledgerdomain.Entry{
				ID:               e.genID.Generate(),
				AffiliateID:      net.AffiliateID,
				UID:              net.UID,
				OrderID:          order.ID,
				OrderTotal:       order.Total,
				CommissionAmount: net.Net.Neg(),
				Currency:         net.Currency,
				Status:           ledgerdomain.StatusPending,
				CreatedAt:        now,
			}
			if err := e.ledger.Insert(ctx, tx, &clearing); err != nil {
				return err
			}
			inserted = append(inserted, clearing)
		}
		return nil
	})
	if err != nil {
		e.log.Error("settle to zero failed",
			zap.String("order_id", order.ID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return Outcome{}, err
	}

	if voided > 0 {
		e.audit.OrderNote(ctx, order.ID, fmt.Sprintf("Affiliate commission voided (%s).", reason))
	}
	for _, clearing := range inserted {
		e.metrics.IncLedgerEntry("clearing")
		e.audit.OrderNote(ctx, order.ID, fmt.Sprintf(
			"Affiliate clearing entry %s %s recorded for agent %s (%s).",
			clearing.CommissionAmount.StringFixed(2), clearing.Currency, clearing.UID, reason,
		))
	}

	hasPaid, err := e.ledger.HasPaidByOrder(ctx, e.db, order.ID)
	if err != nil {
		return Outcome{}, err
	}
	if hasPaid {
		// Paid money is never auto-clawed-back.
		e.audit.OrderNote(ctx, order.ID,
			"Affiliate commission was already marked as paid for this order. Manual reversal may be required.")
	}

	if voided == 0 && len(inserted) == 0 {
		e.metrics.IncCommissionNoop(ReasonNothingToDo)
		return noop(ReasonNothingToDo), nil
	}

	e.log.Info("order settled to zero",
		zap.String("order_id", order.ID),
		zap.String("reason", reason),
		zap.Int64("voided", voided),
		zap.Int("clearing_rows", len(inserted)),
	)
	return Outcome{Applied: true, Entries: inserted, Voided: voided}, nil
}

func commissionBase(order orderdomain.Order, mode string) decimal.Decimal {
	if mode == config.CommissionBaseTotalExclShipping {
		base := order.Total.Sub(order.ShippingTotal).Sub(order.ShippingTax)
		if base.IsNegative() {
			return decimal.Zero
		}
		return base
	}
	base := decimal.Zero
	for _, item := range order.LineItems {
		base = base.Add(item.Subtotal)
	}
	return base
}
