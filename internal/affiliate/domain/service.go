package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"
	"github.com/worldcitisim/affiliates/pkg/db/pagination"
)

type CreateAffiliateRequest struct {
	Name              string
	Email             string
	Phone             string
	UID               string
	CommissionPercent decimal.Decimal
	NequiPhone        string
	BankName          string
	BankAccountType   string
	BankAccountNumber string
	DashboardMode     string
}

type UpdateAffiliateRequest struct {
	ID                string
	Name              string
	Email             string
	Phone             string
	CommissionPercent decimal.Decimal
	NequiPhone        string
	BankName          string
	BankAccountType   string
	BankAccountNumber string
	DashboardMode     string
	Status            AffiliateStatus
}

type UpdatePayoutRequest struct {
	UID               string
	NequiPhone        string
	BankName          string
	BankAccountType   string
	BankAccountNumber string
}

type ListAffiliateRequest struct {
	PageToken  string
	PageSize   int32
	Status     AffiliateStatus
	Search     string
	WithTotals bool
}

type AffiliateWithTotals struct {
	Affiliate
	Totals ledgerdomain.AffiliateTotals `json:"totals"`
}

type ListAffiliateResponse struct {
	pagination.PageInfo
	Affiliates []AffiliateWithTotals `json:"affiliates"`
}

type Service interface {
	Create(ctx context.Context, req CreateAffiliateRequest) (Affiliate, error)
	Update(ctx context.Context, req UpdateAffiliateRequest) (Affiliate, error)
	BulkGenerate(ctx context.Context, count int) ([]Affiliate, error)
	GetByID(ctx context.Context, id string) (Affiliate, error)
	GetActiveByUID(ctx context.Context, uid string) (Affiliate, error)
	List(ctx context.Context, req ListAffiliateRequest) (ListAffiliateResponse, error)
	UpdatePayoutDetails(ctx context.Context, req UpdatePayoutRequest) (Affiliate, error)
	Delete(ctx context.Context, id string) error
	ReferralURL(uid string) string
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidUID         = errors.New("invalid_uid")
	ErrUIDTaken           = errors.New("uid_taken")
	ErrNotFound           = errors.New("not_found")
	ErrInactive           = errors.New("affiliate_inactive")
	ErrInvalidCount       = errors.New("invalid_count")
	ErrInvalidPercent     = errors.New("invalid_percent")
	ErrPayoutEditDisabled = errors.New("payout_edit_disabled")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
)
