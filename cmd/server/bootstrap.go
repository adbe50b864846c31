package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/procurement-bot/internal/container"
	"github.com/garyjia/procurement-bot/pkg/database"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the ticket sheet header and apply database migrations",
	RunE:  runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := container.ProvideDatabase(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := database.NewMigrator(db, logger).Version(ctx)
	if err != nil {
		return err
	}

	if _, err := container.ProvideTicketStore(ctx, &cfg.Spreadsheet, logger); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sheet %q in %s ready; database %s at schema version %d\n",
		cfg.Spreadsheet.Sheet, cfg.Spreadsheet.Path, db.Path(), version)
	return nil
}
