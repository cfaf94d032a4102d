package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/worldcitisim/affiliates/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO affiliate_commissions (id, affiliate_id, uid, order_id, order_total, commission_base, commission_percent, commission_amount, currency, status, batch_id, created_at, paid_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.AffiliateID,
		entry.UID,
		entry.OrderID,
		entry.OrderTotal,
		entry.CommissionBase,
		entry.CommissionPercent,
		entry.CommissionAmount,
		entry.Currency,
		entry.Status,
		entry.BatchID,
		entry.CreatedAt,
		entry.PaidAt,
	).Error
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID string, filter domain.EntryFilter) ([]domain.Entry, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("order_id = ?", orderID)
	if filter.PositiveOnly {
		stmt = stmt.Where("commission_amount > 0")
	}
	if filter.NonVoid {
		stmt = stmt.Where("status <> ?", domain.StatusVoid)
	}
	if filter.UnpaidOnly {
		stmt = stmt.Where("status IN ?", []domain.EntryStatus{domain.StatusPending, domain.StatusExported})
	}

	var entries []domain.Entry
	err := stmt.Order("created_at asc, id asc").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ExistsForOrderAffiliate(ctx context.Context, db *gorm.DB, orderID string, affiliateID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM affiliate_commissions WHERE order_id = ? AND affiliate_id = ?`,
		orderID,
		affiliateID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) HasPaidByOrder(ctx context.Context, db *gorm.DB, orderID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM affiliate_commissions WHERE order_id = ? AND status = ?`,
		orderID,
		domain.StatusPaid,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) VoidUnpaidByOrder(ctx context.Context, db *gorm.DB, orderID string) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE affiliate_commissions SET status = ? WHERE order_id = ? AND status IN (?, ?)`,
		domain.StatusVoid,
		orderID,
		domain.StatusPending,
		domain.StatusExported,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) NetByAffiliateCurrency(ctx context.Context, db *gorm.DB, orderID string) ([]domain.AffiliateCurrencyNet, error) {
	// Fold the rows in Go; the row set per order is tiny and the fold is
	// the ground truth for balances.
	entries, err := r.ListByOrder(ctx, db, orderID, domain.EntryFilter{NonVoid: true})
	if err != nil {
		return nil, err
	}

	type key struct {
		affiliateID snowflake.ID
		currency    string
	}
	sums := map[key]*domain.AffiliateCurrencyNet{}
	order := make([]key, 0, len(entries))
	for _, entry := range entries {
		k := key{affiliateID: entry.AffiliateID, currency: entry.Currency}
		net, ok := sums[k]
		if !ok {
			net = &domain.AffiliateCurrencyNet{
				AffiliateID: entry.AffiliateID,
				UID:         entry.UID,
				Currency:    entry.Currency,
				Net:         decimal.Zero,
			}
			sums[k] = net
			order = append(order, k)
		}
		net.Net = net.Net.Add(entry.CommissionAmount)
	}

	nets := make([]domain.AffiliateCurrencyNet, 0, len(order))
	for _, k := range order {
		nets = append(nets, *sums[k])
	}
	return nets, nil
}

func (r *repo) TotalsByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) (domain.AffiliateTotals, error) {
	var row struct {
		Pending  decimal.Decimal
		Exported decimal.Decimal
		Paid     decimal.Decimal
		Total    decimal.Decimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
		   COALESCE(SUM(CASE WHEN status = 'pending' THEN commission_amount ELSE 0 END), 0) AS pending,
		   COALESCE(SUM(CASE WHEN status = 'exported' THEN commission_amount ELSE 0 END), 0) AS exported,
		   COALESCE(SUM(CASE WHEN status = 'paid' THEN commission_amount ELSE 0 END), 0) AS paid,
		   COALESCE(SUM(CASE WHEN status <> 'void' THEN commission_amount ELSE 0 END), 0) AS total
		 FROM affiliate_commissions WHERE affiliate_id = ?`,
		affiliateID,
	).Scan(&row).Error
	if err != nil {
		return domain.AffiliateTotals{}, err
	}
	return domain.AffiliateTotals{
		Pending:  row.Pending,
		Exported: row.Exported,
		Paid:     row.Paid,
		Total:    row.Total,
	}, nil
}

func (r *repo) RecentByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("affiliate_id = ?", affiliateID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) GlobalRollups(ctx context.Context, db *gorm.DB) (domain.Rollups, error) {
	var row struct {
		PendingAmount  decimal.Decimal
		ExportedAmount decimal.Decimal
		PaidAmount     decimal.Decimal
		PendingRows    int64
		ExportedRows   int64
		PaidRows       int64
		VoidRows       int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
		   COALESCE(SUM(CASE WHEN status = 'pending' THEN commission_amount ELSE 0 END), 0) AS pending_amount,
		   COALESCE(SUM(CASE WHEN status = 'exported' THEN commission_amount ELSE 0 END), 0) AS exported_amount,
		   COALESCE(SUM(CASE WHEN status = 'paid' THEN commission_amount ELSE 0 END), 0) AS paid_amount,
		   COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_rows,
		   COALESCE(SUM(CASE WHEN status = 'exported' THEN 1 ELSE 0 END), 0) AS exported_rows,
		   COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0) AS paid_rows,
		   COALESCE(SUM(CASE WHEN status = 'void' THEN 1 ELSE 0 END), 0) AS void_rows
		 FROM affiliate_commissions`,
	).Scan(&row).Error
	if err != nil {
		return domain.Rollups{}, err
	}
	return domain.Rollups{
		PendingAmount:  row.PendingAmount,
		ExportedAmount: row.ExportedAmount,
		PaidAmount:     row.PaidAmount,
		PendingRows:    row.PendingRows,
		ExportedRows:   row.ExportedRows,
		PaidRows:       row.PaidRows,
		VoidRows:       row.VoidRows,
	}, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("status = ?", domain.StatusPending).
		Order("affiliate_id asc, created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) MarkPendingExported(ctx context.Context, db *gorm.DB, ids []snowflake.ID, batchID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE affiliate_commissions SET status = ?, batch_id = ? WHERE id IN ? AND status = ?`,
		domain.StatusExported,
		batchID,
		ids,
		domain.StatusPending,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) MarkBatchPaid(ctx context.Context, db *gorm.DB, batchID string, paidAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE affiliate_commissions SET status = ?, paid_at = ? WHERE batch_id = ? AND status = ?`,
		domain.StatusPaid,
		paidAt,
		batchID,
		domain.StatusExported,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) DeleteByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM affiliate_commissions WHERE affiliate_id = ?`,
		affiliateID,
	).Error
}
