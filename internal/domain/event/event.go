package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and subscribers.
const (
	KeyActor          = "actor"
	KeyPreviousStatus = "previous_status"
	KeyNewStatus      = "new_status"
	KeyReason         = "reason"
	KeyNotification   = "notification"
)

// Event represents a domain event about one ticket
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	TicketNumber  string                 `json:"ticket_number"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, ticketNumber string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		TicketNumber:  ticketNumber,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, ticketNumber string, payload map[string]interface{}, correlationID string) *Event {
	evt := NewEvent(eventType, ticketNumber, payload)
	evt.CorrelationID = correlationID
	return evt
}

// WithPayload returns a copy of the event with key set in its payload.
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	c := *e
	c.Payload = newPayload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
