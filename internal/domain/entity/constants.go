package entity

// Status is the primary lifecycle state of a ticket.
type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusPendingProcess  Status = "PENDING_PROCESS"
	StatusRejected        Status = "REJECTED"
	StatusProcessed       Status = "PROCESSED"
)

// IsValid reports whether s is one of the lifecycle statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingApproval, StatusPendingProcess, StatusRejected, StatusProcessed:
		return true
	}
	return false
}

// SekdepDecision is the secretary's verdict. Empty means undecided.
type SekdepDecision string

const (
	DecisionNone     SekdepDecision = ""
	DecisionApproved SekdepDecision = "APPROVED"
	DecisionRejected SekdepDecision = "REJECTED"
)

// TreasurerStatus is the treasurer sub-state of an approved ticket.
// Empty means the treasurer has not acted yet.
type TreasurerStatus string

const (
	TreasurerNone         TreasurerStatus = ""
	TreasurerNotProcessed TreasurerStatus = "NOT_PROCESSED"
	TreasurerInProgress   TreasurerStatus = "IN_PROGRESS"
	TreasurerProcessed    TreasurerStatus = "PROCESSED"
)

// RequiresReason reports whether moving into this sub-state needs a reason.
func (s TreasurerStatus) RequiresReason() bool {
	return s == TreasurerInProgress || s == TreasurerProcessed
}

// DefaultNotProcessedReason is recorded when the treasurer marks a ticket
// as not processed without giving a reason.
const DefaultNotProcessedReason = "Belum diproses"

// NotifyFlag names a per-ticket idempotency marker. The values double as
// the column headers of the ticket table.
type NotifyFlag string

const (
	FlagNewRequest NotifyFlag = "notifiedNew"
	FlagApproved   NotifyFlag = "sekdepNotified"
	FlagRejected   NotifyFlag = "rejectNotified"
	FlagInProgress NotifyFlag = "inProgressNotified"
	FlagProcessed  NotifyFlag = "processedNotified"
)

// AllNotifyFlags lists the flags in column order.
var AllNotifyFlags = []NotifyFlag{
	FlagNewRequest,
	FlagApproved,
	FlagRejected,
	FlagInProgress,
	FlagProcessed,
}
