package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type AffiliateStatus string

const (
	StatusActive   AffiliateStatus = "active"
	StatusInactive AffiliateStatus = "inactive"
)

// Affiliate is one agent row. UID is immutable once assigned and is the
// key buyers carry in referral URLs and cookies.
type Affiliate struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID snowflake.ID `gorm:"index" json:"user_id,omitempty"`
	UID    string       `gorm:"type:varchar(128);not null;uniqueIndex:ux_affiliates_uid" json:"uid"`
	Name   string       `gorm:"type:varchar(191);not null" json:"name"`
	Email  string       `gorm:"type:varchar(191);not null" json:"email"`
	Phone  string       `gorm:"type:varchar(64);not null;default:''" json:"phone"`

	// Payout fields are opaque to the commission engine.
	NequiPhone        string `gorm:"type:varchar(64);not null;default:''" json:"nequi_phone"`
	BankName          string `gorm:"type:varchar(191);not null;default:''" json:"bank_name"`
	BankAccountType   string `gorm:"type:varchar(64);not null;default:''" json:"bank_account_type"`
	BankAccountNumber string `gorm:"type:varchar(191);not null;default:''" json:"bank_account_number"`

	// CommissionPercent of 0 falls back to the program default.
	CommissionPercent decimal.Decimal `gorm:"type:decimal(6,2);not null;default:0" json:"commission_percent"`

	DashboardMode string          `gorm:"type:varchar(16);not null;default:'default'" json:"dashboard_mode"`
	Status        AffiliateStatus `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Affiliate) TableName() string { return "affiliates" }

// IsActive reports whether commissions may accrue and attribute.
func (a Affiliate) IsActive() bool { return a.Status == StatusActive }
