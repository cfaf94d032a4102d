package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/worldcitisim/affiliates/internal/ledger/domain"
	"github.com/worldcitisim/affiliates/internal/migration"
	"gorm.io/gorm"
)

func setupRepo(t *testing.T) (domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	return Provide(), db, node
}

func insertEntry(t *testing.T, repo domain.Repository, db *gorm.DB, entry domain.Entry) domain.Entry {
	t.Helper()
	require.NoError(t, repo.Insert(context.Background(), db, &entry))
	return entry
}

func baseEntry(node *snowflake.Node, affiliateID snowflake.ID, orderID, amount string, status domain.EntryStatus) domain.Entry {
	return domain.Entry{
		ID:               node.Generate(),
		AffiliateID:      affiliateID,
		UID:              "AGENT1",
		OrderID:          orderID,
		CommissionAmount: decimal.RequireFromString(amount),
		Currency:         "COP",
		Status:           status,
		CreatedAt:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestListByOrderFilters(t *testing.T) {
	repo, db, node := setupRepo(t)
	affiliateID := node.Generate()
	ctx := context.Background()

	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "10.00", domain.StatusPending))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "-2.00", domain.StatusPending))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "3.00", domain.StatusVoid))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-2", "9.00", domain.StatusPending))

	all, err := repo.ListByOrder(ctx, db, "order-1", domain.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	positive, err := repo.ListByOrder(ctx, db, "order-1", domain.EntryFilter{PositiveOnly: true, NonVoid: true})
	require.NoError(t, err)
	require.Len(t, positive, 1)
	require.True(t, positive[0].CommissionAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestExistsForOrderAffiliate(t *testing.T) {
	repo, db, node := setupRepo(t)
	affiliateID := node.Generate()
	ctx := context.Background()

	exists, err := repo.ExistsForOrderAffiliate(ctx, db, "order-1", affiliateID)
	require.NoError(t, err)
	require.False(t, exists)

	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "10.00", domain.StatusPending))

	exists, err = repo.ExistsForOrderAffiliate(ctx, db, "order-1", affiliateID)
	require.NoError(t, err)
	require.True(t, exists)

	other, err := repo.ExistsForOrderAffiliate(ctx, db, "order-1", node.Generate())
	require.NoError(t, err)
	require.False(t, other)
}

func TestVoidUnpaidByOrder(t *testing.T) {
	repo, db, node := setupRepo(t)
	affiliateID := node.Generate()
	ctx := context.Background()

	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "10.00", domain.StatusPending))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "-2.00", domain.StatusExported))
	paid := insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "5.00", domain.StatusPaid))

	voided, err := repo.VoidUnpaidByOrder(ctx, db, "order-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), voided)

	rows, err := repo.ListByOrder(ctx, db, "order-1", domain.EntryFilter{NonVoid: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, paid.ID, rows[0].ID)
	require.Equal(t, domain.StatusPaid, rows[0].Status)
}

func TestNetByAffiliateCurrency(t *testing.T) {
	repo, db, node := setupRepo(t)
	alpha := node.Generate()
	beta := node.Generate()
	ctx := context.Background()

	insertEntry(t, repo, db, baseEntry(node, alpha, "order-1", "10.00", domain.StatusPaid))
	insertEntry(t, repo, db, baseEntry(node, alpha, "order-1", "-2.50", domain.StatusPaid))
	insertEntry(t, repo, db, baseEntry(node, alpha, "order-1", "99.00", domain.StatusVoid))
	insertEntry(t, repo, db, baseEntry(node, beta, "order-1", "4.00", domain.StatusPending))

	nets, err := repo.NetByAffiliateCurrency(ctx, db, "order-1")
	require.NoError(t, err)
	require.Len(t, nets, 2)

	byAffiliate := map[snowflake.ID]decimal.Decimal{}
	for _, net := range nets {
		byAffiliate[net.AffiliateID] = net.Net
	}
	require.True(t, byAffiliate[alpha].Equal(decimal.RequireFromString("7.50")), "got %s", byAffiliate[alpha])
	require.True(t, byAffiliate[beta].Equal(decimal.RequireFromString("4.00")))
}

func TestTotalsByAffiliate(t *testing.T) {
	repo, db, node := setupRepo(t)
	affiliateID := node.Generate()
	ctx := context.Background()

	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "10.00", domain.StatusPending))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-2", "-2.00", domain.StatusPending))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-3", "5.00", domain.StatusExported))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-4", "20.00", domain.StatusPaid))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-5", "99.00", domain.StatusVoid))

	totals, err := repo.TotalsByAffiliate(ctx, db, affiliateID)
	require.NoError(t, err)
	require.True(t, totals.Pending.Equal(decimal.RequireFromString("8.00")), "got %s", totals.Pending)
	require.True(t, totals.Exported.Equal(decimal.RequireFromString("5.00")))
	require.True(t, totals.Paid.Equal(decimal.RequireFromString("20.00")))
	require.True(t, totals.Total.Equal(decimal.RequireFromString("33.00")))
	require.True(t, totals.Unpaid().Equal(decimal.RequireFromString("13.00")))
}

func TestExportTransitions(t *testing.T) {
	repo, db, node := setupRepo(t)
	affiliateID := node.Generate()
	ctx := context.Background()

	first := insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "10.00", domain.StatusPending))
	second := insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-2", "4.00", domain.StatusPending))
	paid := insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-3", "7.00", domain.StatusPaid))

	marked, err := repo.MarkPendingExported(ctx, db, []snowflake.ID{first.ID, second.ID, paid.ID}, "batch-x")
	require.NoError(t, err)
	// The paid row is not pending, so only two rows move.
	require.Equal(t, int64(2), marked)

	markedPaid, err := repo.MarkBatchPaid(ctx, db, "batch-x", time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(2), markedPaid)

	rows, err := repo.ListByOrder(ctx, db, "order-1", domain.EntryFilter{})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, rows[0].Status)
	require.NotNil(t, rows[0].PaidAt)

	hasPaid, err := repo.HasPaidByOrder(ctx, db, "order-1")
	require.NoError(t, err)
	require.True(t, hasPaid)
}

func TestGlobalRollups(t *testing.T) {
	repo, db, node := setupRepo(t)
	affiliateID := node.Generate()
	ctx := context.Background()

	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-1", "10.00", domain.StatusPending))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-2", "5.00", domain.StatusExported))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-3", "20.00", domain.StatusPaid))
	insertEntry(t, repo, db, baseEntry(node, affiliateID, "order-4", "1.00", domain.StatusVoid))

	rollups, err := repo.GlobalRollups(ctx, db)
	require.NoError(t, err)
	require.True(t, rollups.PendingAmount.Equal(decimal.RequireFromString("10.00")))
	require.True(t, rollups.ExportedAmount.Equal(decimal.RequireFromString("5.00")))
	require.True(t, rollups.PaidAmount.Equal(decimal.RequireFromString("20.00")))
	require.Equal(t, int64(1), rollups.PendingRows)
	require.Equal(t, int64(1), rollups.ExportedRows)
	require.Equal(t, int64(1), rollups.PaidRows)
	require.Equal(t, int64(1), rollups.VoidRows)
}

func TestDeleteByAffiliate(t *testing.T) {
	repo, db, node := setupRepo(t)
	alpha := node.Generate()
	beta := node.Generate()
	ctx := context.Background()

	insertEntry(t, repo, db, baseEntry(node, alpha, "order-1", "10.00", domain.StatusPending))
	insertEntry(t, repo, db, baseEntry(node, beta, "order-1", "4.00", domain.StatusPending))

	require.NoError(t, repo.DeleteByAffiliate(ctx, db, alpha))

	rows, err := repo.ListByOrder(ctx, db, "order-1", domain.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, beta, rows[0].AffiliateID)
}
