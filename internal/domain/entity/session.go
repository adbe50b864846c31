package entity

import "time"

// Step is a position in an actor's dialogue.
type Step string

const (
	StepIdle                         Step = ""
	StepAwaitingRequestForm          Step = "awaitingRequestForm"
	StepAwaitingRejectionReason      Step = "awaitingRejectionReason"
	StepAwaitingBendaharaReason      Step = "awaitingBendaharaReason"
	StepAwaitingQuestionForRequester Step = "awaitingQuestionForRequester"
	StepAwaitingReplyTarget          Step = "awaitingReplyTarget"
	StepAwaitingReplyText            Step = "awaitingReplyText"
)

// Session is the per-actor conversation state between inbound messages.
type Session struct {
	ActorID      string          `json:"actor_id"`
	Step         Step            `json:"step"`
	TicketNumber string          `json:"ticket_number,omitempty"`
	Counterpart  string          `json:"counterpart,omitempty"`
	GoodsName    string          `json:"goods_name,omitempty"`
	Treasurer    TreasurerStatus `json:"treasurer,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
