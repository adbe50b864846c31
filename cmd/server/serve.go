package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/container"
	adminhttp "github.com/garyjia/procurement-bot/internal/interfaces/http"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat bot, the change poller and the admin HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting procurement bot",
		zap.Int("port", cfg.Server.Port),
		zap.String("sheet", cfg.Spreadsheet.Path),
		zap.String("session_backend", cfg.Session.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	if err := c.StartWorkers(ctx); err != nil {
		_ = c.Close()
		return err
	}

	server := adminhttp.NewServer(adminhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RequestTimeout:  cfg.Server.RequestTimeout,
		AuthToken:       cfg.Admin.AuthToken,
	}, adminhttp.Deps{
		Tickets: c.Lifecycle(),
		History: c.History(),
		Poller:  c.Poller(),
		Sender:  c.Sender(),
		Health:  c,
	}, utils.NewKVLogger(logger))

	// Start returns once ctx is cancelled and the server has shut down.
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
		stop()
	}

	logger.Info("Shutting down...")

	done := make(chan struct{})
	go func() {
		if err := c.Close(); err != nil {
			logger.Error("Shutdown finished with errors", zap.Error(err))
		}
		close(done)
	}()
	select {
	case <-done:
		logger.Info("Server exited successfully")
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("Components did not stop before the shutdown timeout")
	}
	return nil
}
