package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
)

// Actors on Lark are addressed by open_id.
const receiveIDType = "open_id"

// Lark codes meaning the app credentials no longer work.
var credentialErrorCodes = map[int]bool{
	99991661: true, // missing access token
	99991663: true, // invalid tenant access token
	99991664: true, // invalid app access token
	10003:    true, // invalid app id or secret
}

// messageCreator is the slice of the SDK's im message service in use.
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger implements port.MessageSender with Lark text messages
type Messenger struct {
	api     messageCreator
	timeout time.Duration
	logger  *zap.Logger
}

var _ port.MessageSender = (*Messenger)(nil)

// NewMessenger creates a new Lark message sender. A zero timeout leaves
// the caller's deadline alone.
func NewMessenger(sdk *SDKClient, timeout time.Duration, logger *zap.Logger) *Messenger {
	return newMessenger(sdk.GetClient().Im.Message, timeout, logger.With(zap.String("app_id", sdk.AppID())))
}

func newMessenger(api messageCreator, timeout time.Duration, logger *zap.Logger) *Messenger {
	return &Messenger{api: api, timeout: timeout, logger: logger}
}

// SendMessage sends text to the user with the given open_id.
func (m *Messenger) SendMessage(ctx context.Context, openID string, text string) error {
	if openID == "" {
		return fmt.Errorf("openID cannot be empty")
	}
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := m.api.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", openID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		if credentialErrorCodes[resp.Code] {
			return fmt.Errorf("%w: lark code=%d, msg=%s", port.ErrUnrecoverableTransport, resp.Code, resp.Msg)
		}
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", openID))
	return nil
}
