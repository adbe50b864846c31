package workflow

// State is one point on the ticket lifecycle graph. It combines the
// ticket status with the treasurer sub-state.
type State string

const (
	StatePendingApproval State = "PENDING_APPROVAL"
	StatePendingProcess  State = "PENDING_PROCESS"
	StateNotProcessed    State = "NOT_PROCESSED"
	StateInProgress      State = "IN_PROGRESS"
	StateProcessed       State = "PROCESSED"
	StateRejected        State = "REJECTED"
)

var validStates = map[State]bool{
	StatePendingApproval: true,
	StatePendingProcess:  true,
	StateNotProcessed:    true,
	StateInProgress:      true,
	StateProcessed:       true,
	StateRejected:        true,
}

var terminalStates = map[State]bool{
	StateRejected:  true,
	StateProcessed: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
