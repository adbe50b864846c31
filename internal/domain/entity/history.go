package entity

import "time"

// TicketHistory is one row of a ticket's audit trail.
type TicketHistory struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"event_id"`
	TicketNumber   string    `json:"ticket_number"`
	Actor          string    `json:"actor"`
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}
