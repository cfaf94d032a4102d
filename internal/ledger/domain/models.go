package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusExported EntryStatus = "exported"
	StatusPaid     EntryStatus = "paid"
	StatusVoid     EntryStatus = "void"
)

// Entry is one signed monetary row. The net balance for an (order, agent)
// pair is the sum of commission_amount across its non-void rows; amount
// fields are never rewritten, only status/batch_id/paid_at move, and only
// forward: pending -> exported -> paid, pending|exported -> void.
type Entry struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	AffiliateID snowflake.ID `gorm:"not null;index" json:"affiliate_id"`
	// UID is denormalized at write time so historical rows keep the UID
	// the agent had when the entry was created.
	UID               string          `gorm:"type:varchar(128);not null" json:"uid"`
	OrderID           string          `gorm:"type:varchar(64);not null;index" json:"order_id"`
	OrderTotal        decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"order_total"`
	CommissionBase    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"commission_base"`
	CommissionPercent decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"commission_percent"`
	CommissionAmount  decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0" json:"commission_amount"`
	Currency          string          `gorm:"type:varchar(8);not null;default:''" json:"currency"`
	Status            EntryStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	BatchID           string          `gorm:"type:varchar(64);not null;default:'';index" json:"batch_id,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "affiliate_commissions" }

// IsUnpaid reports whether the row can still be voided.
func (e Entry) IsUnpaid() bool {
	return e.Status == StatusPending || e.Status == StatusExported
}

// AffiliateTotals aggregates an agent's ledger by status. All sums are
// over signed amounts, so refund adjustments reduce them naturally.
type AffiliateTotals struct {
	Pending  decimal.Decimal `json:"pending"`
	Exported decimal.Decimal `json:"exported"`
	Paid     decimal.Decimal `json:"paid"`
	// Total is the sum over all non-void rows.
	Total decimal.Decimal `json:"total"`
}

// Unpaid is the outstanding balance awaiting export or payment.
func (t AffiliateTotals) Unpaid() decimal.Decimal {
	return t.Pending.Add(t.Exported)
}

// AffiliateCurrencyNet is the net non-void balance for one
// (affiliate, currency) pair within an order.
type AffiliateCurrencyNet struct {
	AffiliateID snowflake.ID
	UID         string
	Currency    string
	Net         decimal.Decimal
}

// Rollups are program-wide sums for the admin summary cards.
type Rollups struct {
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	ExportedAmount decimal.Decimal `json:"exported_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	PendingRows    int64           `json:"pending_rows"`
	ExportedRows   int64           `json:"exported_rows"`
	PaidRows       int64           `json:"paid_rows"`
	VoidRows       int64           `json:"void_rows"`
}
