package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/application/service"
	"github.com/garyjia/procurement-bot/internal/container"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/internal/worker"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// TicketReader looks tickets up.
type TicketReader interface {
	Get(ctx context.Context, ticketNumber string) (*entity.Ticket, error)
}

// HistoryLister reads a ticket's audit trail.
type HistoryLister interface {
	List(ctx context.Context, ticketNumber string) ([]*entity.TicketHistory, error)
}

// PollTrigger runs one change-detection cycle on demand.
type PollTrigger interface {
	RunPollCycle(ctx context.Context) (worker.CycleStats, error)
}

// HealthReporter checks the backing components.
type HealthReporter interface {
	Health(ctx context.Context) *container.HealthStatus
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	health  HealthReporter
	tickets TicketReader
	history HistoryLister
	poller  PollTrigger
	sender  port.MessageSender
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, logger Logger) *Handlers {
	return &Handlers{
		health:  deps.Health,
		tickets: deps.Tickets,
		history: deps.History,
		poller:  deps.Poller,
		sender:  deps.Sender,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                               `json:"status"`
	Timestamp  string                               `json:"timestamp"`
	Components map[string]container.ComponentHealth `json:"components,omitempty"`
}

// NotifyRequest is the body of POST /notif. Phone carries the recipient's
// chat ID; the name is kept for existing callers.
type NotifyRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// TicketResponse is a ticket with its audit trail.
type TicketResponse struct {
	TicketNumber    string            `json:"ticket_number"`
	Timestamp       string            `json:"timestamp"`
	SenderNumber    string            `json:"sender_number"`
	SenderName      string            `json:"sender_name"`
	GoodsName       string            `json:"goods_name"`
	Quantity        string            `json:"quantity"`
	Link            string            `json:"link"`
	Reason          string            `json:"reason"`
	Status          string            `json:"status"`
	ApprovalSekdep  string            `json:"approval_sekdep,omitempty"`
	ReasonSekdep    string            `json:"reason_sekdep,omitempty"`
	StatusBendahara string            `json:"status_bendahara,omitempty"`
	ReasonBendahara string            `json:"reason_bendahara,omitempty"`
	LastUpdated     string            `json:"last_updated"`
	Notified        []string          `json:"notified"`
	History         []HistoryResponse `json:"history"`
}

// HistoryResponse is one audit trail entry.
type HistoryResponse struct {
	Actor          string `json:"actor"`
	Action         string `json:"action"`
	PreviousStatus string `json:"previous_status,omitempty"`
	NewStatus      string `json:"new_status,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// bearerAuth rejects requests whose Authorization header is not
// "Bearer <token>".
func bearerAuth(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("Authorization"))
		if token == "" || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.health != nil {
		status := h.health.Health(c.Request.Context())
		resp.Components = status.Components
		if !status.Overall {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{Success: code == http.StatusOK, Data: resp})
}

// Notify handles POST /notif, sending a message verbatim.
func (h *Handlers) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Phone) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and message are required"})
		return
	}

	if err := h.sender.SendMessage(c.Request.Context(), strings.TrimSpace(req.Phone), req.Message); err != nil {
		h.logger.Error("Failed to send admin message", "recipient", req.Phone, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Gagal kirim pesan"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Message sent"})
}

// GetTicket handles GET /api/tickets/:number
func (h *Handlers) GetTicket(c *gin.Context) {
	number := c.Param("number")

	ticket, err := h.tickets.Get(c.Request.Context(), number)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "ticket not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get ticket", "ticket_number", number, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve ticket"})
		return
	}

	history, err := h.history.List(c.Request.Context(), ticket.TicketNumber)
	if err != nil {
		// The ticket itself is still worth returning.
		h.logger.Error("Failed to get ticket history", "ticket_number", number, "error", err)
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toTicketResponse(ticket, history),
	})
}

// TriggerPoll handles POST /api/poll
func (h *Handlers) TriggerPoll(c *gin.Context) {
	stats, err := h.poller.RunPollCycle(c.Request.Context())
	if err != nil {
		h.logger.Error("Manual poll cycle failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "poll cycle failed"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

func toTicketResponse(t *entity.Ticket, history []*entity.TicketHistory) TicketResponse {
	resp := TicketResponse{
		TicketNumber:    t.TicketNumber,
		Timestamp:       utils.FormatWIB(t.Timestamp),
		SenderNumber:    t.SenderNumber,
		SenderName:      t.SenderName,
		GoodsName:       t.GoodsName,
		Quantity:        t.Quantity,
		Link:            t.Link,
		Reason:          t.Reason,
		Status:          string(t.Status),
		ApprovalSekdep:  string(t.ApprovalSekdep),
		ReasonSekdep:    t.ReasonSekdep,
		StatusBendahara: string(t.StatusBendahara),
		ReasonBendahara: t.ReasonBendahara,
		LastUpdated:     utils.FormatWIB(t.LastUpdated),
		Notified:        []string{},
		History:         make([]HistoryResponse, 0, len(history)),
	}

	for _, f := range entity.AllNotifyFlags {
		if t.Notified.Has(f) {
			resp.Notified = append(resp.Notified, string(f))
		}
	}

	for _, h := range history {
		resp.History = append(resp.History, HistoryResponse{
			Actor:          h.Actor,
			Action:         h.Action,
			PreviousStatus: h.PreviousStatus,
			NewStatus:      h.NewStatus,
			Reason:         h.Reason,
			Timestamp:      utils.FormatWIB(h.Timestamp),
		})
	}
	return resp
}
