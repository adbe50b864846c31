package event

// Type identifies the type of domain event
type Type string

const (
	TypeTicketCreated      Type = "ticket.created"
	TypeTicketApproved     Type = "ticket.approved"
	TypeTicketRejected     Type = "ticket.rejected"
	TypeTreasurerUpdated   Type = "ticket.treasurer_updated"
	TypeQuestionAsked      Type = "ticket.question_asked"
	TypeQuestionAnswered   Type = "ticket.question_answered"
	TypeNotificationFailed Type = "notification.failed"
)

// All lists every event type, used by subscribers that mirror the whole stream.
var All = []Type{
	TypeTicketCreated,
	TypeTicketApproved,
	TypeTicketRejected,
	TypeTreasurerUpdated,
	TypeQuestionAsked,
	TypeQuestionAnswered,
	TypeNotificationFailed,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range All {
		if t == known {
			return true
		}
	}
	return false
}
