package workflow

import (
	"fmt"

	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

// TicketGraph is the ticket lifecycle. It is frozen at init and only read
// afterwards.
var TicketGraph = newTicketGraph()

func newTicketGraph() *Graph {
	b := NewGraphBuilder()

	b.From(StatePendingApproval).
		On(TriggerApprove, StatePendingProcess).
		On(TriggerReject, StateRejected)

	// The treasurer may move freely among the sub-states until PROCESSED.
	for _, s := range []State{StatePendingProcess, StateNotProcessed, StateInProgress} {
		b.From(s).
			On(TriggerMarkNotProcessed, StateNotProcessed).
			On(TriggerMarkInProgress, StateInProgress).
			On(TriggerMarkProcessed, StateProcessed)
	}

	return b.Graph()
}

// NewTicketMachine returns a lifecycle machine positioned at current.
func NewTicketMachine(current State) *Machine {
	return TicketGraph.Machine(current)
}

// StateOf maps a ticket's status and treasurer sub-state to a single point
// on the lifecycle graph.
func StateOf(t *entity.Ticket) (State, error) {
	switch t.Status {
	case entity.StatusPendingApproval:
		if t.StatusBendahara == entity.TreasurerNone {
			return StatePendingApproval, nil
		}
	case entity.StatusRejected:
		if t.StatusBendahara == entity.TreasurerNone {
			return StateRejected, nil
		}
	case entity.StatusPendingProcess:
		switch t.StatusBendahara {
		case entity.TreasurerNone:
			return StatePendingProcess, nil
		case entity.TreasurerNotProcessed:
			return StateNotProcessed, nil
		case entity.TreasurerInProgress:
			return StateInProgress, nil
		}
	case entity.StatusProcessed:
		// A sheet edited by hand may only carry the primary status.
		if t.StatusBendahara == entity.TreasurerProcessed || t.StatusBendahara == entity.TreasurerNone {
			return StateProcessed, nil
		}
	}

	return "", fmt.Errorf("%w: status=%q status_bendahara=%q", ErrInvalidState, t.Status, t.StatusBendahara)
}

// TriggerFor returns the treasurer trigger that moves a ticket into s.
func TriggerFor(s entity.TreasurerStatus) (Trigger, bool) {
	switch s {
	case entity.TreasurerNotProcessed:
		return TriggerMarkNotProcessed, true
	case entity.TreasurerInProgress:
		return TriggerMarkInProgress, true
	case entity.TreasurerProcessed:
		return TriggerMarkProcessed, true
	}
	return "", false
}

// Apply writes the status fields that represent s onto t. Reasons are the
// caller's concern.
func Apply(t *entity.Ticket, s State) {
	switch s {
	case StatePendingApproval:
		t.Status = entity.StatusPendingApproval
		t.ApprovalSekdep = entity.DecisionNone
		t.StatusBendahara = entity.TreasurerNone
	case StatePendingProcess:
		t.Status = entity.StatusPendingProcess
		t.ApprovalSekdep = entity.DecisionApproved
	case StateRejected:
		t.Status = entity.StatusRejected
		t.ApprovalSekdep = entity.DecisionRejected
		t.StatusBendahara = entity.TreasurerNone
	case StateNotProcessed:
		t.Status = entity.StatusPendingProcess
		t.StatusBendahara = entity.TreasurerNotProcessed
	case StateInProgress:
		t.Status = entity.StatusPendingProcess
		t.StatusBendahara = entity.TreasurerInProgress
	case StateProcessed:
		t.Status = entity.StatusProcessed
		t.StatusBendahara = entity.TreasurerProcessed
	}
}
