package workflow

// Trigger represents an action that can move a ticket
type Trigger string

const (
	TriggerApprove          Trigger = "APPROVE"
	TriggerReject           Trigger = "REJECT"
	TriggerMarkNotProcessed Trigger = "MARK_NOT_PROCESSED"
	TriggerMarkInProgress   Trigger = "MARK_IN_PROGRESS"
	TriggerMarkProcessed    Trigger = "MARK_PROCESSED"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
