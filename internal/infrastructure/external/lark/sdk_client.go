package lark

import (
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// SDKClient owns the tenant-token aware Lark API client shared by the
// outbound messenger.
type SDKClient struct {
	client *lark.Client
	appID  string
}

// Config holds the bot app credentials.
type Config struct {
	AppID     string
	AppSecret string
	// RequestTimeout bounds a single HTTP round trip; zero keeps the SDK default.
	RequestTimeout time.Duration
}

func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelWarn),
		lark.WithEnableTokenCache(true),
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, lark.WithReqTimeout(cfg.RequestTimeout))
	}

	logger.Info("Lark client configured", zap.String("app_id", cfg.AppID))
	return &SDKClient{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		appID:  cfg.AppID,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}

// AppID identifies the bot app, used to tag transport log records.
func (c *SDKClient) AppID() string {
	return c.appID
}
