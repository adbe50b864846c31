package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/container"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one change-detection cycle and exit",
	RunE:  runPoll,
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	stats, err := c.Poller().RunPollCycle(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle failed: %w", err)
	}

	logger.Info("Poll cycle finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("changed", stats.Changed),
		zap.Int("delivered", stats.Delivered),
		zap.Int("failed", stats.Failed))
	fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d changed=%d delivered=%d failed=%d\n",
		stats.Scanned, stats.Changed, stats.Delivered, stats.Failed)
	return nil
}
