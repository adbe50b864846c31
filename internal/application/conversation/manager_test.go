package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/application/service"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
	"github.com/garyjia/procurement-bot/internal/infrastructure/persistence/memory"
)

const (
	secretary = "628111"
	treasurer = "628222"
	requester = "628333"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type recordingSender struct {
	mu   sync.Mutex
	sent []OutboundMessage
	err  error
}

func (s *recordingSender) SendMessage(ctx context.Context, recipient, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, OutboundMessage{Recipient: recipient, Text: text})
	return nil
}

func (s *recordingSender) to(recipient string) []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OutboundMessage
	for _, m := range s.sent {
		if m.Recipient == recipient {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	store    *memory.TicketStore
	sessions *memory.SessionStore
	notices  *recordingSender
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewTicketStore(),
		sessions: memory.NewSessionStore(),
		notices:  &recordingSender{},
	}
	roles := service.Roles{Secretary: secretary, Treasurer: treasurer}
	notifier := service.NewNotificationService(f.notices, roles, time.Second, &mockLogger{})
	lifecycle := service.NewLifecycleService(f.store, memory.NewSequence("T-", 100), notifier, &mockLogger{})
	f.manager = NewManager(lifecycle, f.sessions, roles, &mockLogger{})
	return f
}

const validForm = "Nama Lengkap: Ana\nNama Barang: Projector\nJumlah: 1 unit\nLink: http://x/y\nKeperluan: meeting"

func (f *fixture) send(t *testing.T, actor, text string) []OutboundMessage {
	t.Helper()
	out, err := f.manager.HandleInbound(context.Background(), actor, text)
	require.NoError(t, err)
	return out
}

func (f *fixture) submitTicket(t *testing.T) {
	t.Helper()
	f.send(t, requester, "/request")
	out := f.send(t, requester, validForm)
	require.Len(t, out, 1)
	require.Contains(t, out[0].Text, "T-100")
}

func (f *fixture) session(t *testing.T, actor string) *entity.Session {
	t.Helper()
	sess, err := f.sessions.Get(context.Background(), actor)
	require.NoError(t, err)
	return sess
}

func TestManager_RequestFormCreatesTicket(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, requester, "/request")
	require.Len(t, out, 2)
	assert.Contains(t, out[0].Text, "Contoh request")
	assert.Equal(t, msgFormTemplate, out[1].Text)
	assert.Equal(t, entity.StepAwaitingRequestForm, f.session(t, requester).Step)

	out = f.send(t, requester, validForm)
	require.Len(t, out, 1)
	assert.Equal(t, requester, out[0].Recipient)
	assert.Contains(t, out[0].Text, "*Nomor Tiket: T-100*")
	assert.Nil(t, f.session(t, requester))

	ticket, err := f.store.Get(context.Background(), "T-100")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingApproval, ticket.Status)
	assert.Equal(t, "Projector", ticket.GoodsName)
	assert.Len(t, f.notices.to(secretary), 1)
	assert.Len(t, f.notices.to(treasurer), 1)
}

func TestManager_IncompleteFormRepromptsAndKeepsStep(t *testing.T) {
	f := newFixture(t)
	f.send(t, requester, "/request")

	out := f.send(t, requester, "Nama Lengkap: Ana\nNama Barang: Projector")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Format data tidak lengkap")
	assert.Contains(t, out[0].Text, "Jumlah, Link, Keperluan")
	assert.Equal(t, entity.StepAwaitingRequestForm, f.session(t, requester).Step)
	assert.Empty(t, f.store.Numbers())
}

func TestManager_RejectWithoutReasonPromptsThenRejects(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)

	out := f.send(t, secretary, "2 t-100")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "alasan penolakan")
	sess := f.session(t, secretary)
	require.NotNil(t, sess)
	assert.Equal(t, entity.StepAwaitingRejectionReason, sess.Step)
	assert.Equal(t, "T-100", sess.TicketNumber)

	out = f.send(t, secretary, "budget exceeded")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "budget exceeded")
	assert.Nil(t, f.session(t, secretary))

	ticket, _ := f.store.Get(context.Background(), "T-100")
	assert.Equal(t, entity.StatusRejected, ticket.Status)
	assert.Equal(t, entity.DecisionRejected, ticket.ApprovalSekdep)
	assert.Equal(t, "budget exceeded", ticket.ReasonSekdep)

	notices := f.notices.to(requester)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Text, `"budget exceeded"`)
}

func TestManager_UnknownTicketLookup(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)
	writes := f.store.Writes

	for _, actor := range []string{requester, secretary, treasurer} {
		out := f.send(t, actor, "T-999")
		require.Len(t, out, 1)
		assert.Contains(t, out[0].Text, "tidak ditemukan")
	}
	assert.Equal(t, writes, f.store.Writes)
}

func TestManager_TreasurerBeforeApprovalNamesState(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)
	writes := f.store.Writes

	out := f.send(t, treasurer, "3 T-100 shipped today")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "PENDING_APPROVAL")
	assert.Equal(t, writes, f.store.Writes)

	ticket, _ := f.store.Get(context.Background(), "T-100")
	assert.Equal(t, entity.TreasurerNone, ticket.StatusBendahara)
}

func TestManager_TreasurerReasonPrompt(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)
	f.send(t, secretary, "1 T-100")

	out := f.send(t, treasurer, "2 T-100")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "sedang diproses")
	assert.Equal(t, entity.StepAwaitingBendaharaReason, f.session(t, treasurer).Step)

	out = f.send(t, treasurer, "looking for vendor")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "looking for vendor")

	ticket, _ := f.store.Get(context.Background(), "T-100")
	assert.Equal(t, entity.TreasurerInProgress, ticket.StatusBendahara)
	assert.Equal(t, "looking for vendor", ticket.ReasonBendahara)

	out = f.send(t, treasurer, "3 T-100 shipped today")
	require.Len(t, out, 1)
	ticket, _ = f.store.Get(context.Background(), "T-100")
	assert.Equal(t, entity.StatusProcessed, ticket.Status)
	assert.Equal(t, "shipped today", ticket.ReasonBendahara)
}

func TestManager_TreasurerNotProcessedNeedsNoReason(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)
	f.send(t, secretary, "1 T-100")

	out := f.send(t, treasurer, "1 T-100")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, entity.DefaultNotProcessedReason)
	assert.Nil(t, f.session(t, treasurer))
}

func TestManager_UsageHintForUnknownCode(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)

	out := f.send(t, secretary, "7 T-100")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "*1 T-100* untuk menyetujui")
	assert.Contains(t, out[0].Text, "*2 T-100 [alasan]* untuk menolak")
	assert.Contains(t, out[0].Text, "*3 T-100* untuk bertanya")

	out = f.send(t, treasurer, "9 T-100")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "status sudah diproses")
}

func TestManager_ApproveWithNote(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)

	out := f.send(t, secretary, "1 T-100 buy the cheaper one")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "menyetujui permintaan *T-100*")

	notices := f.notices.to(requester)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Text, "Catatan: buy the cheaper one")

	out = f.send(t, secretary, "2 T-100 changed my mind")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "PENDING_PROCESS")
	out = f.send(t, requester, "T-100")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Catatan Sekdep: buy the cheaper one")
}

func TestManager_QuestionAndReply(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)

	out := f.send(t, secretary, "3 T-100")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "*Ana*")
	assert.Equal(t, entity.StepAwaitingQuestionForRequester, f.session(t, secretary).Step)

	out = f.send(t, secretary, "which model?")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Ana ("+requester+")")
	assert.Nil(t, f.session(t, secretary))

	question := f.notices.to(requester)
	require.Len(t, question, 1)
	assert.Contains(t, question[0].Text, "which model?")

	armed := f.session(t, requester)
	require.NotNil(t, armed)
	assert.Equal(t, entity.StepAwaitingReplyTarget, armed.Step)
	assert.Equal(t, secretary, armed.Counterpart)

	// Other messages still route normally while a question is pending.
	out = f.send(t, requester, "T-100")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Status Tiket: T-100")
	assert.Equal(t, entity.StepAwaitingReplyTarget, f.session(t, requester).Step)

	out = f.send(t, requester, "/jawab")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Projector")
	assert.Equal(t, entity.StepAwaitingReplyText, f.session(t, requester).Step)

	out = f.send(t, requester, "the cheaper one")
	require.Len(t, out, 1)
	assert.Equal(t, msgReplySent, out[0].Text)
	assert.Nil(t, f.session(t, requester))

	toSecretary := f.notices.to(secretary)
	assert.Contains(t, toSecretary[len(toSecretary)-1].Text, "the cheaper one")

	ticket, _ := f.store.Get(context.Background(), "T-100")
	assert.Equal(t, entity.StatusPendingApproval, ticket.Status)
	assert.Empty(t, ticket.ReasonSekdep)
}

func TestManager_InlineQuestion(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)

	out := f.send(t, secretary, "3 T-100 which model?")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "Pertanyaan Anda telah dikirimkan")
	assert.Nil(t, f.session(t, secretary))
	assert.Equal(t, entity.StepAwaitingReplyTarget, f.session(t, requester).Step)
}

func TestManager_ReplyWithoutPendingQuestion(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, requester, "/jawab")
	require.Len(t, out, 1)
	assert.Equal(t, msgNothingToReply, out[0].Text)
}

func TestManager_HelpHasPrivilegedSectionForSecretaryOnly(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, secretary, "/help")
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "KHUSUS SEKRETARIS DEPARTEMEN")

	for _, actor := range []string{requester, treasurer} {
		out = f.send(t, actor, "/help")
		require.Len(t, out, 1)
		assert.NotContains(t, out[0].Text, "KHUSUS SEKRETARIS DEPARTEMEN")
	}
}

func TestManager_Unrecognized(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, requester, "halo")
	require.Len(t, out, 1)
	assert.Equal(t, msgUnrecognized, out[0].Text)

	// Action lines from a non-privileged actor are not actions.
	out = f.send(t, requester, "1 T-100")
	require.Len(t, out, 1)
	assert.Equal(t, msgUnrecognized, out[0].Text)
}

func TestManager_NewCommandDiscardsSession(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)
	f.send(t, secretary, "2 T-100")

	f.send(t, secretary, "1 T-100")

	assert.Nil(t, f.session(t, secretary))
	ticket, _ := f.store.Get(context.Background(), "T-100")
	assert.Equal(t, entity.StatusPendingProcess, ticket.Status)
}

func TestManager_StoreFailureClearsSession(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)
	f.send(t, secretary, "2 T-100")

	f.store.GetErr = errors.New("sheet unavailable")
	out, err := f.manager.HandleInbound(context.Background(), secretary, "budget exceeded")

	require.Error(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, msgGenericError, out[0].Text)
	assert.Nil(t, f.session(t, secretary))
}

func TestManager_StatusLookup(t *testing.T) {
	f := newFixture(t)
	f.submitTicket(t)
	f.send(t, secretary, "2 T-100 budget exceeded")

	out := f.send(t, requester, " t-100 ")
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0].Text, "📋 *Status Tiket: T-100*"))
	assert.Contains(t, out[0].Text, "Ditolak oleh Sekretaris Departemen")
	assert.Contains(t, out[0].Text, "Alasan: budget exceeded")
}

func TestBot_SendsReplies(t *testing.T) {
	f := newFixture(t)
	replies := &recordingSender{}
	bot := NewBot(f.manager, replies, &mockLogger{})

	require.NoError(t, bot.OnInboundMessage(context.Background(), requester, "/help"))
	assert.Len(t, replies.to(requester), 1)
}

func TestBot_ReturnsUnrecoverableTransportError(t *testing.T) {
	f := newFixture(t)
	replies := &recordingSender{err: errors.New("timeout")}
	bot := NewBot(f.manager, replies, &mockLogger{})
	assert.NoError(t, bot.OnInboundMessage(context.Background(), requester, "/help"))

	replies.err = fmt.Errorf("device logged out: %w", port.ErrUnrecoverableTransport)
	err := bot.OnInboundMessage(context.Background(), requester, "/help")
	assert.True(t, errors.Is(err, port.ErrUnrecoverableTransport))
}

// gatedSender holds its first send until release is closed.
type gatedSender struct {
	recordingSender
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSender) SendMessage(ctx context.Context, recipient, text string) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.recordingSender.SendMessage(ctx, recipient, text)
}

func TestBot_RepliesOfOneActorKeepOrder(t *testing.T) {
	f := newFixture(t)
	replies := &gatedSender{entered: make(chan struct{}), release: make(chan struct{})}
	bot := NewBot(f.manager, replies, &mockLogger{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, bot.OnInboundMessage(ctx, requester, "/help"))
	}()
	<-replies.entered

	go func() {
		defer wg.Done()
		assert.NoError(t, bot.OnInboundMessage(ctx, requester, "/request"))
	}()

	// The second message is not handled while the first reply is in flight.
	assert.Never(t, func() bool {
		sess, _ := f.sessions.Get(ctx, requester)
		return sess != nil
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(replies.release)
	wg.Wait()

	out := replies.to(requester)
	require.Len(t, out, 3)
	assert.Contains(t, out[1].Text, "Contoh request")
	assert.Equal(t, msgFormTemplate, out[2].Text)
}

func TestBot_UnrecoverableNotificationAbortsTurn(t *testing.T) {
	f := newFixture(t)
	replies := &recordingSender{}
	bot := NewBot(f.manager, replies, &mockLogger{})
	ctx := context.Background()

	require.NoError(t, bot.OnInboundMessage(ctx, requester, "/request"))
	f.notices.err = fmt.Errorf("app credentials revoked: %w", port.ErrUnrecoverableTransport)

	err := bot.OnInboundMessage(ctx, requester, validForm)
	assert.True(t, errors.Is(err, port.ErrUnrecoverableTransport))
	assert.Len(t, replies.to(requester), 2)
	assert.Nil(t, f.session(t, requester))

	ticket, err := f.store.Get(ctx, "T-100")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.False(t, ticket.Notified.Has(entity.FlagNewRequest))
}
