package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"ticket created", TypeTicketCreated, true},
		{"ticket rejected", TypeTicketRejected, true},
		{"treasurer updated", TypeTreasurerUpdated, true},
		{"notification failed", TypeNotificationFailed, true},
		{"unknown type", Type("instance.created"), false},
		{"empty string", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeTicketApproved, "T-100", map[string]interface{}{
		KeyActor:     "6281100000001",
		KeyNewStatus: "PENDING_PROCESS",
	})

	if evt.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if evt.CorrelationID != evt.ID {
		t.Errorf("CorrelationID = %v, want the event ID %v", evt.CorrelationID, evt.ID)
	}
	if evt.TicketNumber != "T-100" {
		t.Errorf("TicketNumber = %v, want T-100", evt.TicketNumber)
	}
	if got := evt.GetPayloadString(KeyNewStatus); got != "PENDING_PROCESS" {
		t.Errorf("payload new_status = %v", got)
	}
	if time.Since(evt.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}

	other := NewEvent(TypeTicketApproved, "T-100", nil)
	if other.ID == evt.ID {
		t.Error("event IDs should be unique")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeQuestionAnswered, "T-7", nil, "chain-1")
	if evt.CorrelationID != "chain-1" {
		t.Errorf("CorrelationID = %v, want chain-1", evt.CorrelationID)
	}
	if evt.ID == "chain-1" {
		t.Error("ID should be freshly generated")
	}
}

func TestEvent_WithPayloadDoesNotMutateOriginal(t *testing.T) {
	original := NewEvent(TypeTicketCreated, "T-1", map[string]interface{}{"key1": "value1"})
	updated := original.WithPayload("key2", "value2")

	if _, ok := original.Payload["key2"]; ok {
		t.Error("original payload should not be modified")
	}
	if updated.GetPayloadString("key1") != "value1" || updated.GetPayloadString("key2") != "value2" {
		t.Errorf("updated payload = %v", updated.Payload)
	}
	if updated.ID != original.ID {
		t.Error("WithPayload should keep the event ID")
	}
	if updated.GetPayloadString("missing") != "" {
		t.Error("missing key should read as empty")
	}
}
