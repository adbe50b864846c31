// Package websocket receives chat messages from long-lived event
// connections and hands them to the conversation layer.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
)

// LarkAdapter wraps the Lark WebSocket SDK client and turns direct text
// messages to the bot into inbound chat messages.
type LarkAdapter struct {
	appID     string
	appSecret string
	handler   port.InboundHandler
	logger    *zap.Logger

	wsClient *larkws.Client
	cancel   context.CancelFunc
	mu       sync.RWMutex
	started  bool
}

// LarkAdapterConfig holds configuration for the Lark WebSocket adapter.
type LarkAdapterConfig struct {
	AppID     string
	AppSecret string
}

// NewLarkAdapter creates a new Lark WebSocket adapter delivering to handler.
func NewLarkAdapter(cfg LarkAdapterConfig, handler port.InboundHandler, logger *zap.Logger) *LarkAdapter {
	return &LarkAdapter{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		handler:   handler,
		logger:    logger,
	}
}

// Name returns the worker name for identification
func (a *LarkAdapter) Name() string {
	return "LarkAdapter"
}

// Start opens the WebSocket connection in the background.
func (a *LarkAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("adapter already started")
	}

	// Verification token and encrypt key are not used in WebSocket mode.
	sdkDispatcher := larkdispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(a.handleMessageEvent)

	a.wsClient = larkws.NewClient(
		a.appID,
		a.appSecret,
		larkws.WithEventHandler(sdkDispatcher),
	)

	ctx, a.cancel = context.WithCancel(ctx)
	a.started = true

	a.logger.Info("Starting Lark WebSocket adapter", zap.String("app_id", a.appID))

	go func() {
		err := a.wsClient.Start(ctx)
		if ctx.Err() != nil {
			return
		}
		// The client gave up on its own; health reports the adapter down.
		a.logger.Error("Lark WebSocket client exited", zap.Error(err))
		a.mu.Lock()
		a.started = false
		a.mu.Unlock()
	}()
	return nil
}

// Stop cancels the connection context. The SDK client has no explicit
// shutdown, so this does not wait for it.
func (a *LarkAdapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}
	a.started = false
	a.cancel()
	a.logger.Info("Lark WebSocket adapter stopped")
}

// IsRunning returns whether the adapter is currently running.
func (a *LarkAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

// handleMessageEvent is called by the SDK for im.message.receive_v1.
func (a *LarkAdapter) handleMessageEvent(ctx context.Context, evt *larkim.P2MessageReceiveV1) error {
	senderID, text, ok := extractText(evt)
	if !ok {
		a.logger.Debug("Ignoring non-text or group message")
		return nil
	}

	a.logger.Debug("Inbound Lark message", zap.String("sender", senderID))
	a.handler(ctx, senderID, text)
	return nil
}

// extractText pulls the sender open_id and the text out of a direct text
// message. ok is false for anything else.
func extractText(evt *larkim.P2MessageReceiveV1) (senderID, text string, ok bool) {
	if evt == nil || evt.Event == nil || evt.Event.Message == nil || evt.Event.Sender == nil {
		return "", "", false
	}
	msg := evt.Event.Message
	sender := evt.Event.Sender

	if deref(msg.MessageType) != larkim.MsgTypeText {
		return "", "", false
	}
	if chatType := deref(msg.ChatType); chatType != "" && chatType != "p2p" {
		return "", "", false
	}
	if sender.SenderId == nil || deref(sender.SenderId.OpenId) == "" {
		return "", "", false
	}

	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(deref(msg.Content)), &content); err != nil {
		return "", "", false
	}

	text = strings.TrimSpace(content.Text)
	if text == "" {
		return "", "", false
	}
	return deref(sender.SenderId.OpenId), text, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
