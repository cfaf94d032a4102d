package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	affiliatedomain "github.com/worldcitisim/affiliates/internal/affiliate/domain"
	affiliaterepo "github.com/worldcitisim/affiliates/internal/affiliate/repository"
	auditdomain "github.com/worldcitisim/affiliates/internal/audit/domain"
	"github.com/worldcitisim/affiliates/internal/clock"
	ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"
	ledgerrepo "github.com/worldcitisim/affiliates/internal/ledger/repository"
	"github.com/worldcitisim/affiliates/internal/migration"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type auditStub struct{}

func (auditStub) Log(ctx context.Context, action, resourceType, resourceID string, metadata map[string]any) error {
	return nil
}
func (auditStub) OrderNote(ctx context.Context, orderID, note string) {}
func (auditStub) ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

type exportHarness struct {
	svc        *Service
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	ledger     ledgerdomain.Repository
	affiliates affiliatedomain.Repository
}

func setupExport(t *testing.T) *exportHarness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ledger := ledgerrepo.Provide()
	affiliates := affiliaterepo.Provide()

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      fake,
		Ledger:     ledger,
		Affiliates: affiliates,
		Audit:      auditStub{},
	})

	return &exportHarness{
		svc:        svc,
		db:         db,
		node:       node,
		clock:      fake,
		ledger:     ledger,
		affiliates: affiliates,
	}
}

func (h *exportHarness) createAgent(t *testing.T, uid string) affiliatedomain.Affiliate {
	t.Helper()
	affiliate := affiliatedomain.Affiliate{
		ID:                h.node.Generate(),
		UID:               uid,
		Name:              "Agent " + uid,
		Email:             "agent-" + uid + "@example.com",
		NequiPhone:        "300" + uid,
		BankName:          "Bancolombia",
		BankAccountType:   "savings",
		BankAccountNumber: "111-" + uid,
		DashboardMode:     "default",
		Status:            affiliatedomain.StatusActive,
		CreatedAt:         h.clock.Now(),
		UpdatedAt:         h.clock.Now(),
	}
	require.NoError(t, h.affiliates.Insert(context.Background(), h.db, &affiliate))
	return affiliate
}

func (h *exportHarness) insertEntry(t *testing.T, affiliate affiliatedomain.Affiliate, orderID, amount string, status ledgerdomain.EntryStatus) ledgerdomain.Entry {
	t.Helper()
	entry := ledgerdomain.Entry{
		ID:               h.node.Generate(),
		AffiliateID:      affiliate.ID,
		UID:              affiliate.UID,
		OrderID:          orderID,
		CommissionAmount: decimal.RequireFromString(amount),
		Currency:         "COP",
		Status:           status,
		CreatedAt:        h.clock.Now(),
	}
	require.NoError(t, h.ledger.Insert(context.Background(), h.db, &entry))
	return entry
}

func TestBuildPayoutBatch(t *testing.T) {
	h := setupExport(t)
	alpha := h.createAgent(t, "ALPHA1")
	beta := h.createAgent(t, "BETA22")

	h.insertEntry(t, alpha, "order-1", "10.00", ledgerdomain.StatusPending)
	h.insertEntry(t, alpha, "order-2", "-2.50", ledgerdomain.StatusPending)
	h.insertEntry(t, beta, "order-3", "7.00", ledgerdomain.StatusPending)
	// Non-pending rows never enter a batch.
	h.insertEntry(t, beta, "order-4", "99.00", ledgerdomain.StatusPaid)

	batch, err := h.svc.BuildPayoutBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "batch-20240501-120000", batch.BatchID)
	require.Equal(t, 3, batch.Entries)
	require.Equal(t, 2, batch.Affiliates)

	records, err := csv.NewReader(bytes.NewReader(batch.CSV)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, csvHeader, records[0])

	byUID := map[string][]string{}
	for _, record := range records[1:] {
		byUID[record[1]] = record
	}
	require.Equal(t, "7.50", byUID["ALPHA1"][8])
	require.Equal(t, "7.00", byUID["BETA22"][8])
	require.Equal(t, "COP", byUID["ALPHA1"][9])
	require.Equal(t, "Bancolombia", byUID["ALPHA1"][5])

	// Every pending row flipped to exported under the batch id.
	pending, err := h.ledger.ListPending(context.Background(), h.db)
	require.NoError(t, err)
	require.Empty(t, pending)

	rows, err := h.ledger.ListByOrder(context.Background(), h.db, "order-1", ledgerdomain.EntryFilter{})
	require.NoError(t, err)
	require.Equal(t, ledgerdomain.StatusExported, rows[0].Status)
	require.Equal(t, batch.BatchID, rows[0].BatchID)

	_, err = h.svc.BuildPayoutBatch(context.Background())
	require.ErrorIs(t, err, ErrNothingToExport)
}

func TestMarkBatchPaid(t *testing.T) {
	h := setupExport(t)
	alpha := h.createAgent(t, "ALPHA1")
	h.insertEntry(t, alpha, "order-1", "10.00", ledgerdomain.StatusPending)

	batch, err := h.svc.BuildPayoutBatch(context.Background())
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	marked, err := h.svc.MarkBatchPaid(context.Background(), batch.BatchID)
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)

	rows, err := h.ledger.ListByOrder(context.Background(), h.db, "order-1", ledgerdomain.EntryFilter{})
	require.NoError(t, err)
	require.Equal(t, ledgerdomain.StatusPaid, rows[0].Status)
	require.NotNil(t, rows[0].PaidAt)

	// Already paid; nothing left in the batch to mark.
	_, err = h.svc.MarkBatchPaid(context.Background(), batch.BatchID)
	require.ErrorIs(t, err, ErrBatchNotFound)

	_, err = h.svc.MarkBatchPaid(context.Background(), "batch-unknown")
	require.ErrorIs(t, err, ErrBatchNotFound)
}

func TestBuildPayoutBatchSkipsMissingAffiliate(t *testing.T) {
	h := setupExport(t)
	alpha := h.createAgent(t, "ALPHA1")
	ghost := affiliatedomain.Affiliate{
		ID:  h.node.Generate(),
		UID: "GHOST1",
	}

	h.insertEntry(t, alpha, "order-1", "10.00", ledgerdomain.StatusPending)
	h.insertEntry(t, ghost, "order-2", "5.00", ledgerdomain.StatusPending)

	batch, err := h.svc.BuildPayoutBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, batch.Affiliates)
	// The orphaned row is still flipped so it cannot wedge future batches.
	require.Equal(t, 2, batch.Entries)
}
