package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
)

// CheckpointRepository persists poller watermarks
type CheckpointRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCheckpointRepository creates a new checkpoint repository
func NewCheckpointRepository(db *sql.DB, logger *zap.Logger) *CheckpointRepository {
	return &CheckpointRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns found=false when name has no checkpoint yet
func (r *CheckpointRepository) Get(ctx context.Context, name string) (time.Time, bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT checkpoint FROM poller_checkpoints WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		r.logger.Error("Failed to read checkpoint", zap.String("name", name), zap.Error(err))
		return time.Time{}, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	checkpoint, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid checkpoint %q: %w", raw, err)
	}
	return checkpoint, true, nil
}

// Save upserts the checkpoint for name
func (r *CheckpointRepository) Save(ctx context.Context, name string, checkpoint time.Time) error {
	query := `
		INSERT INTO poller_checkpoints (name, checkpoint) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			checkpoint = excluded.checkpoint,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.ExecContext(ctx, query, name, checkpoint.UTC().Format(time.RFC3339Nano)); err != nil {
		r.logger.Error("Failed to save checkpoint", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.CheckpointRepository = (*CheckpointRepository)(nil)
