package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// EntryFilter narrows ListByOrder. Zero value means all rows.
type EntryFilter struct {
	PositiveOnly bool
	NonVoid      bool
	UnpaidOnly   bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListByOrder(ctx context.Context, db *gorm.DB, orderID string, filter EntryFilter) ([]Entry, error)
	ExistsForOrderAffiliate(ctx context.Context, db *gorm.DB, orderID string, affiliateID snowflake.ID) (bool, error)
	HasPaidByOrder(ctx context.Context, db *gorm.DB, orderID string) (bool, error)

	// VoidUnpaidByOrder voids every pending or exported row for the order,
	// positive and negative alike, and returns the number voided.
	VoidUnpaidByOrder(ctx context.Context, db *gorm.DB, orderID string) (int64, error)

	// NetByAffiliateCurrency folds the order's non-void rows into net
	// balances per (affiliate, currency).
	NetByAffiliateCurrency(ctx context.Context, db *gorm.DB, orderID string) ([]AffiliateCurrencyNet, error)

	TotalsByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) (AffiliateTotals, error)
	RecentByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, limit int) ([]Entry, error)
	GlobalRollups(ctx context.Context, db *gorm.DB) (Rollups, error)

	ListPending(ctx context.Context, db *gorm.DB) ([]Entry, error)
	MarkPendingExported(ctx context.Context, db *gorm.DB, ids []snowflake.ID, batchID string) (int64, error)
	MarkBatchPaid(ctx context.Context, db *gorm.DB, batchID string, paidAt time.Time) (int64, error)

	DeleteByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) error
}
