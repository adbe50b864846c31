package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

const (
	testSecretary = "6281100000001"
	testTreasurer = "6281100000002"
	testRequester = "6281100000003"
)

func sampleTicket() *entity.Ticket {
	return &entity.Ticket{
		TicketNumber:    "T-100",
		SenderNumber:    testRequester,
		SenderName:      "Ana",
		GoodsName:       "Projector",
		Quantity:        "1 unit",
		Link:            "http://x/y",
		Reason:          "meeting",
		Status:          entity.StatusRejected,
		ReasonSekdep:    "budget exceeded",
		ReasonBendahara: "shipped today",
	}
}

func TestNotificationService_RecipientsAndTemplates(t *testing.T) {
	tests := []struct {
		kind      NotificationKind
		text      string
		recipient string
		contains  []string
	}{
		{NotifyNewRequestToSecretary, "", testSecretary, []string{"PERMINTAAN BARU", "T-100", "Ana (" + testRequester + ")", "*1 T-100*", "*2 T-100 [alasan]*", "*3 T-100*"}},
		{NotifyNewRequestToTreasurer, "", testTreasurer, []string{"NOTIFIKASI PERMINTAAN BARU", "Projector", "http://x/y"}},
		{NotifyApprovedToRequester, "", testRequester, []string{"DISETUJUI", "Projector (1 unit)", "Catatan: budget exceeded"}},
		{NotifyApprovedToTreasurer, "", testTreasurer, []string{"PERMINTAAN UNTUK DIPROSES", "(belum diproses)", "(sedang diproses)", "(sudah diproses)"}},
		{NotifyRejectedToRequester, "", testRequester, []string{"DITOLAK", `"budget exceeded"`}},
		{NotifyInProgressToRequester, "", testRequester, []string{"SEDANG DIPROSES", "Keterangan: shipped today"}},
		{NotifyProcessedToRequester, "", testRequester, []string{"SELESAI DIPROSES", "Keterangan: shipped today"}},
		{NotifyQuestionToRequester, "which model?", testRequester, []string{"PERTANYAAN", `"which model?"`, entity.CommandReply}},
		{NotifyReplyToSecretary, "the cheaper one", testSecretary, []string{"BALASAN", `"the cheaper one"`, "*3 T-100*"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			sender := &mockMessageSender{}
			svc := NewNotificationService(sender, Roles{Secretary: testSecretary, Treasurer: testTreasurer}, time.Second, &mockLogger{})

			ok := svc.Notify(context.Background(), Notification{Kind: tt.kind, Ticket: sampleTicket(), Text: tt.text})
			require.True(t, ok)

			sent := sender.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.recipient, sent[0].Recipient)
			for _, want := range tt.contains {
				assert.Contains(t, sent[0].Text, want)
			}
		})
	}
}

func TestNotificationService_Deterministic(t *testing.T) {
	a, err := renderNotification(Notification{Kind: NotifyApprovedToTreasurer, Ticket: sampleTicket()})
	require.NoError(t, err)
	b, err := renderNotification(Notification{Kind: NotifyApprovedToTreasurer, Ticket: sampleTicket()})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNotificationService_RecipientOverride(t *testing.T) {
	sender := &mockMessageSender{}
	svc := NewNotificationService(sender, Roles{Secretary: testSecretary, Treasurer: testTreasurer}, 0, &mockLogger{})

	require.True(t, svc.Notify(context.Background(), Notification{
		Kind:      NotifyReplyToSecretary,
		Ticket:    sampleTicket(),
		Text:      "ok",
		Recipient: "6289999",
	}))
	assert.Len(t, sender.SentTo("6289999"), 1)
}

func TestNotificationService_FailuresReportFalse(t *testing.T) {
	sender := &mockMessageSender{
		sendMessageFunc: func(ctx context.Context, recipient, text string) error {
			return errors.New("socket closed")
		},
	}
	svc := NewNotificationService(sender, Roles{Secretary: testSecretary, Treasurer: testTreasurer}, time.Second, &mockLogger{})

	assert.False(t, svc.Notify(context.Background(), Notification{Kind: NotifyRejectedToRequester, Ticket: sampleTicket()}))
	assert.False(t, svc.Notify(context.Background(), Notification{Kind: NotificationKind("bogus"), Ticket: sampleTicket()}))
	assert.False(t, svc.Notify(context.Background(), Notification{Kind: NotifyRejectedToRequester}))
}

func TestNotificationService_SendKeepsTransportError(t *testing.T) {
	sender := &mockMessageSender{
		sendMessageFunc: func(ctx context.Context, recipient, text string) error {
			return fmt.Errorf("lark code=99991663: %w", port.ErrUnrecoverableTransport)
		},
	}
	svc := NewNotificationService(sender, Roles{Secretary: testSecretary, Treasurer: testTreasurer}, 0, &mockLogger{})

	err := svc.Send(context.Background(), Notification{Kind: NotifyRejectedToRequester, Ticket: sampleTicket()})
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, port.ErrUnrecoverableTransport))

	err = svc.Send(context.Background(), Notification{Kind: NotifyRejectedToRequester})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNotificationService_SendTimeoutApplied(t *testing.T) {
	var deadlineSet bool
	sender := &mockMessageSender{
		sendMessageFunc: func(ctx context.Context, recipient, text string) error {
			_, deadlineSet = ctx.Deadline()
			return nil
		},
	}
	svc := NewNotificationService(sender, Roles{Secretary: testSecretary, Treasurer: testTreasurer}, 5*time.Second, &mockLogger{})

	require.True(t, svc.Notify(context.Background(), Notification{Kind: NotifyProcessedToRequester, Ticket: sampleTicket()}))
	assert.True(t, deadlineSet)
}
