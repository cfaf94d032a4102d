package domain

import "github.com/shopspring/decimal"

// Order statuses that terminate commission accrual.
const (
	StatusCompleted = "completed"
	StatusRefunded  = "refunded"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Metadata keys stamped onto an order by the attribution tracker.
const (
	MetaAffiliateUID = "affiliate_uid"
	MetaAffiliateID  = "affiliate_id"
)

// Order is the snapshot of a storefront order carried on lifecycle
// event payloads. The service never stores orders; the storefront owns
// them and sends the fields the commission engine reads.
type Order struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Currency      string            `json:"currency"`
	Total         decimal.Decimal   `json:"total"`
	ShippingTotal decimal.Decimal   `json:"shipping_total"`
	ShippingTax   decimal.Decimal   `json:"shipping_tax"`
	LineItems     []LineItem        `json:"line_items"`
	Metadata      map[string]string `json:"metadata"`
}

// LineItem exposes the subtotal the line-subtotal commission base sums.
type LineItem struct {
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Refund is the snapshot of a refund sub-object on a refund event.
type Refund struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	ShippingTax    decimal.Decimal `json:"shipping_tax"`
}

// AffiliateUID returns the attributed agent UID, if any.
func (o Order) AffiliateUID() string {
	if o.Metadata == nil {
		return ""
	}
	return o.Metadata[MetaAffiliateUID]
}

// IsTerminalNegative reports whether the status means the order is dead
// and any commission must settle to zero.
func IsTerminalNegative(status string) bool {
	switch status {
	case StatusRefunded, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}
