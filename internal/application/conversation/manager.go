// Package conversation turns free-text chat messages into ticket actions.
// It keeps one session per actor between messages and replies in the
// bot's fixed Indonesian texts.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/application/service"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/internal/domain/workflow"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// OutboundMessage is one chat message to send.
type OutboundMessage struct {
	Recipient string
	Text      string
}

// Manager routes inbound messages by the actor's session step and role.
// Messages of one actor are handled one at a time.
type Manager struct {
	lifecycle service.LifecycleService
	sessions  port.SessionStore
	roles     service.Roles
	logger    service.Logger
	clock     utils.Clock
	actors    *utils.KeyedMutex
}

// NewManager creates a conversation manager.
func NewManager(lifecycle service.LifecycleService, sessions port.SessionStore, roles service.Roles, logger service.Logger) *Manager {
	return &Manager{
		lifecycle: lifecycle,
		sessions:  sessions,
		roles:     roles,
		logger:    logger,
		clock:     utils.SystemClock,
		actors:    utils.NewKeyedMutex(),
	}
}

// turn collects the replies of one inbound message.
type turn struct {
	actor    string
	messages []OutboundMessage
	err      error
}

func (t *turn) reply(text string) {
	t.messages = append(t.messages, OutboundMessage{Recipient: t.actor, Text: text})
}

// fail records an internal error. The actor gets the generic reply.
func (t *turn) fail(err error) {
	t.err = err
	t.reply(msgGenericError)
}

// HandleInbound processes one message and returns the replies to send.
// The returned error reports internal failures that were already answered
// with the generic reply; the messages are valid either way.
func (m *Manager) HandleInbound(ctx context.Context, actorID, text string) ([]OutboundMessage, error) {
	unlock := m.lockActor(actorID)
	defer unlock()
	return m.handle(ctx, actorID, text)
}

// lockActor serializes the handling of one actor's messages.
func (m *Manager) lockActor(actorID string) func() {
	return m.actors.Lock(actorID)
}

// handle is HandleInbound without the actor lock.
func (m *Manager) handle(ctx context.Context, actorID, text string) ([]OutboundMessage, error) {
	t := &turn{actor: actorID}
	text = strings.TrimSpace(text)

	sess, err := m.sessions.Get(ctx, actorID)
	if err != nil {
		m.logger.Error("Failed to load session", "actor", actorID, "error", err)
		t.fail(err)
		return t.messages, t.err
	}
	step := entity.StepIdle
	if sess != nil {
		step = sess.Step
	}

	switch {
	case isCommand(text, entity.CommandReply):
		m.startReply(ctx, t, sess, commandArgument(text, entity.CommandReply))

	case isCommand(text, entity.CommandRequest):
		if m.saveSession(ctx, t, &entity.Session{ActorID: actorID, Step: entity.StepAwaitingRequestForm}) {
			t.reply(msgFormExample)
			t.reply(msgFormTemplate)
		}

	case step == entity.StepAwaitingRequestForm:
		m.submitForm(ctx, t, text)

	case actorID == m.roles.Secretary && m.isActionLine(text):
		m.clearSession(ctx, t)
		line, _ := parseActionLine(text)
		m.secretaryAction(ctx, t, line)

	case step == entity.StepAwaitingQuestionForRequester:
		m.forwardQuestion(ctx, t, sess, text)

	case step == entity.StepAwaitingReplyText:
		m.forwardReply(ctx, t, sess, text)

	case step == entity.StepAwaitingRejectionReason:
		m.rejectWithReason(ctx, t, sess, text)

	case actorID == m.roles.Treasurer && m.isActionLine(text):
		m.clearSession(ctx, t)
		line, _ := parseActionLine(text)
		m.treasurerAction(ctx, t, line)

	case step == entity.StepAwaitingBendaharaReason:
		m.treasurerWithReason(ctx, t, sess, text)

	case isCommand(text, entity.CommandHelp):
		t.reply(helpText(actorID == m.roles.Secretary))

	case isTicketLookup(text):
		m.lookup(ctx, t, text)

	default:
		t.reply(msgUnrecognized)
	}

	if t.err != nil {
		m.logger.Error("Failed to handle message", "actor", actorID, "step", step, "error", t.err)
		m.clearSession(ctx, t)
	}
	return t.messages, t.err
}

func (m *Manager) isActionLine(text string) bool {
	_, ok := parseActionLine(text)
	return ok
}

func (m *Manager) submitForm(ctx context.Context, t *turn, text string) {
	ticket, err := m.lifecycle.Create(ctx, t.actor, parseRequestForm(text))

	var missing *service.MissingFieldsError
	if errors.As(err, &missing) {
		t.reply(formIncomplete(missing.Fields))
		return
	}

	m.clearSession(ctx, t)
	if err != nil {
		t.fail(err)
		return
	}
	t.reply(ticketReceived(ticket.TicketNumber))
}

func (m *Manager) secretaryAction(ctx context.Context, t *turn, line actionLine) {
	switch line.Code {
	case "1":
		if _, err := m.lifecycle.Approve(ctx, line.TicketNumber, t.actor, line.Text); err != nil {
			m.replyError(t, line.TicketNumber, err)
			return
		}
		t.reply(approvedReply(line.TicketNumber))

	case "2":
		if line.Text == "" {
			if _, err := m.lifecycle.Check(ctx, line.TicketNumber, workflow.TriggerReject); err != nil {
				m.replyError(t, line.TicketNumber, err)
				return
			}
			if m.saveSession(ctx, t, &entity.Session{
				ActorID:      t.actor,
				Step:         entity.StepAwaitingRejectionReason,
				TicketNumber: line.TicketNumber,
			}) {
				t.reply(rejectionReasonPrompt(line.TicketNumber))
			}
			return
		}
		m.reject(ctx, t, line.TicketNumber, line.Text)

	case "3":
		ticket, err := m.lifecycle.Get(ctx, line.TicketNumber)
		if err != nil {
			m.replyError(t, line.TicketNumber, err)
			return
		}
		if line.Text != "" {
			m.ask(ctx, t, ticket, line.Text)
			return
		}
		if m.saveSession(ctx, t, &entity.Session{
			ActorID:      t.actor,
			Step:         entity.StepAwaitingQuestionForRequester,
			TicketNumber: ticket.TicketNumber,
			Counterpart:  ticket.SenderNumber,
			GoodsName:    ticket.GoodsName,
		}) {
			t.reply(questionPrompt(ticket))
		}

	default:
		t.reply(secretaryUsage(line.TicketNumber))
	}
}

func (m *Manager) rejectWithReason(ctx context.Context, t *turn, sess *entity.Session, text string) {
	if text == "" {
		t.reply(rejectionReasonPrompt(sess.TicketNumber))
		return
	}
	m.clearSession(ctx, t)
	m.reject(ctx, t, sess.TicketNumber, text)
}

func (m *Manager) reject(ctx context.Context, t *turn, ticketNumber, reason string) {
	if _, err := m.lifecycle.Reject(ctx, ticketNumber, t.actor, reason); err != nil {
		m.replyError(t, ticketNumber, err)
		return
	}
	t.reply(rejectedReply(ticketNumber, reason))
}

func (m *Manager) forwardQuestion(ctx context.Context, t *turn, sess *entity.Session, text string) {
	if text == "" {
		return
	}
	m.clearSession(ctx, t)

	ticket, err := m.lifecycle.Get(ctx, sess.TicketNumber)
	if err != nil {
		m.replyError(t, sess.TicketNumber, err)
		return
	}
	m.ask(ctx, t, ticket, text)
}

// ask forwards a question and arms the requester to answer it.
func (m *Manager) ask(ctx context.Context, t *turn, ticket *entity.Ticket, question string) {
	_, delivered, err := m.lifecycle.AskRequester(ctx, ticket.TicketNumber, t.actor, question)
	if err != nil {
		m.replyError(t, ticket.TicketNumber, err)
		return
	}
	if !delivered {
		t.reply(msgQuestionFailed)
		return
	}

	requester := ticket.SenderNumber
	if requester != t.actor {
		unlock := m.actors.Lock(requester)
		defer unlock()
	}
	if err := m.sessions.Save(ctx, &entity.Session{
		ActorID:      requester,
		Step:         entity.StepAwaitingReplyTarget,
		TicketNumber: ticket.TicketNumber,
		Counterpart:  t.actor,
		GoodsName:    ticket.GoodsName,
		UpdatedAt:    m.clock(),
	}); err != nil {
		m.logger.Error("Failed to arm requester reply", "requester", requester, "ticket_number", ticket.TicketNumber, "error", err)
	}

	t.reply(questionSent(ticket))
}

// startReply handles the reply command. Text after the keyword is sent
// right away, otherwise the reply is asked for.
func (m *Manager) startReply(ctx context.Context, t *turn, sess *entity.Session, inline string) {
	if sess == nil || (sess.Step != entity.StepAwaitingReplyTarget && sess.Step != entity.StepAwaitingReplyText) {
		t.reply(msgNothingToReply)
		return
	}
	if inline != "" {
		m.forwardReply(ctx, t, sess, inline)
		return
	}

	next := *sess
	next.Step = entity.StepAwaitingReplyText
	if m.saveSession(ctx, t, &next) {
		t.reply(replyPrompt(sess.GoodsName, sess.TicketNumber))
	}
}

func (m *Manager) forwardReply(ctx context.Context, t *turn, sess *entity.Session, text string) {
	if text == "" {
		return
	}
	m.clearSession(ctx, t)

	secretary := sess.Counterpart
	if secretary == "" {
		secretary = m.roles.Secretary
	}
	_, delivered, err := m.lifecycle.ReplyToSecretary(ctx, sess.TicketNumber, t.actor, secretary, text)
	if err != nil {
		m.replyError(t, sess.TicketNumber, err)
		return
	}
	if !delivered {
		t.reply(msgReplyFailed)
		return
	}
	t.reply(msgReplySent)
}

func (m *Manager) treasurerAction(ctx context.Context, t *turn, line actionLine) {
	status, ok := map[string]entity.TreasurerStatus{
		"1": entity.TreasurerNotProcessed,
		"2": entity.TreasurerInProgress,
		"3": entity.TreasurerProcessed,
	}[line.Code]
	if !ok {
		t.reply(treasurerUsage(line.TicketNumber))
		return
	}

	if line.Text == "" && status.RequiresReason() {
		trigger, _ := workflow.TriggerFor(status)
		if _, err := m.lifecycle.Check(ctx, line.TicketNumber, trigger); err != nil {
			m.replyError(t, line.TicketNumber, err)
			return
		}
		if m.saveSession(ctx, t, &entity.Session{
			ActorID:      t.actor,
			Step:         entity.StepAwaitingBendaharaReason,
			TicketNumber: line.TicketNumber,
			Treasurer:    status,
		}) {
			t.reply(treasurerReasonPrompt(line.TicketNumber, status))
		}
		return
	}

	m.setTreasurerStatus(ctx, t, line.TicketNumber, status, line.Text)
}

func (m *Manager) treasurerWithReason(ctx context.Context, t *turn, sess *entity.Session, text string) {
	if text == "" {
		t.reply(treasurerReasonPrompt(sess.TicketNumber, sess.Treasurer))
		return
	}
	m.clearSession(ctx, t)
	m.setTreasurerStatus(ctx, t, sess.TicketNumber, sess.Treasurer, text)
}

func (m *Manager) setTreasurerStatus(ctx context.Context, t *turn, ticketNumber string, status entity.TreasurerStatus, reason string) {
	ticket, err := m.lifecycle.SetTreasurerStatus(ctx, ticketNumber, t.actor, status, reason)
	if err != nil {
		m.replyError(t, ticketNumber, err)
		return
	}
	t.reply(treasurerUpdated(ticket))
}

func (m *Manager) lookup(ctx context.Context, t *turn, text string) {
	number := entity.NormalizeTicketNumber(text)
	ticket, err := m.lifecycle.Get(ctx, number)
	if err != nil {
		m.replyError(t, number, err)
		return
	}
	t.reply(ticketStatus(ticket))
}

// replyError translates a lifecycle error into the actor's reply. Only
// unexpected errors are reported as failures.
func (m *Manager) replyError(t *turn, ticketNumber string, err error) {
	var te *workflow.TransitionError
	switch {
	case errors.Is(err, service.ErrNotFound):
		t.reply(ticketNotFound(ticketNumber))
	case errors.As(err, &te):
		t.reply(invalidTransition(ticketNumber, te.Current))
	default:
		t.fail(err)
	}
}

func (m *Manager) saveSession(ctx context.Context, t *turn, sess *entity.Session) bool {
	sess.UpdatedAt = m.clock()
	if err := m.sessions.Save(ctx, sess); err != nil {
		t.fail(fmt.Errorf("save session: %w", err))
		return false
	}
	return true
}

func (m *Manager) clearSession(ctx context.Context, t *turn) {
	if err := m.sessions.Delete(ctx, t.actor); err != nil {
		m.logger.Error("Failed to clear session", "actor", t.actor, "error", err)
	}
}
