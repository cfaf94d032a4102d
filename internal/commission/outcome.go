package commission

import ledgerdomain "github.com/worldcitisim/affiliates/internal/ledger/domain"

// No-op reasons. A business no-op resolves locally and never escalates;
// only storage failures travel as errors.
const (
	ReasonNoAttribution  = "no_attribution"
	ReasonAgentNotFound  = "agent_not_found"
	ReasonAgentInactive  = "agent_inactive"
	ReasonDuplicate      = "duplicate"
	ReasonZeroAmount     = "zero_amount"
	ReasonNoEntries      = "no_entries"
	ReasonRefundTooSmall = "refund_below_epsilon"
	ReasonNothingToDo    = "nothing_to_settle"
)

// Outcome reports what an engine entry point did. Applied=false with a
// Reason is a business no-op; a non-nil error from the entry point always
// means a storage failure, never a business rule.
type Outcome struct {
	Applied bool                `json:"applied"`
	Reason  string              `json:"reason,omitempty"`
	Entries []ledgerdomain.Entry `json:"entries,omitempty"`
	Voided  int64               `json:"voided,omitempty"`
}

func noop(reason string) Outcome {
	return Outcome{Applied: false, Reason: reason}
}
