package entity

import (
	"strings"
	"time"
)

// Ticket is one procurement request and its approval state.
type Ticket struct {
	TicketNumber string    `json:"ticket_number"`
	Timestamp    time.Time `json:"timestamp"`
	SenderNumber string    `json:"sender_number"`
	SenderName   string    `json:"sender_name"`
	GoodsName    string    `json:"goods_name"`
	Quantity     string    `json:"quantity"`
	Link         string    `json:"link"`
	Reason       string    `json:"reason"`

	Status          Status          `json:"status"`
	ApprovalSekdep  SekdepDecision  `json:"approval_sekdep"`
	ReasonSekdep    string          `json:"reason_sekdep"`
	StatusBendahara TreasurerStatus `json:"status_bendahara"`
	ReasonBendahara string          `json:"reason_bendahara"`
	LastUpdated     time.Time       `json:"last_updated"`

	Notified NotificationFlags `json:"notified"`
}

// Clone returns a copy that can be mutated without touching t.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.Notified = t.Notified.clone()
	return &c
}

// NotificationFlags records which notifications were already delivered.
type NotificationFlags map[NotifyFlag]bool

// Has reports whether flag is set.
func (f NotificationFlags) Has(flag NotifyFlag) bool {
	return f[flag]
}

func (f NotificationFlags) clone() NotificationFlags {
	if f == nil {
		return nil
	}
	c := make(NotificationFlags, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}

// SetFlag marks flag on t, allocating the set when needed.
func (t *Ticket) SetFlag(flag NotifyFlag, value bool) {
	if t.Notified == nil {
		t.Notified = make(NotificationFlags)
	}
	t.Notified[flag] = value
}

// NormalizeTicketNumber is the comparison key for ticket numbers.
func NormalizeTicketNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// RequestForm is the five-field submission typed by a requester.
type RequestForm struct {
	SenderName string
	GoodsName  string
	Quantity   string
	Link       string
	Reason     string
}
