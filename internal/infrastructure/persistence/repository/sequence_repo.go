package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
)

// SequenceRepository issues ticket numbers from a sqlite counter, so
// numbers survive restarts and are never reused.
type SequenceRepository struct {
	db     *sql.DB
	prefix string
	start  int64
	logger *zap.Logger
}

// NewSequenceRepository creates a generator of <prefix><n> numbers
// counting from start.
func NewSequenceRepository(db *sql.DB, prefix string, start int64, logger *zap.Logger) *SequenceRepository {
	if start < 1 {
		start = 1
	}
	return &SequenceRepository{
		db:     db,
		prefix: prefix,
		start:  start,
		logger: logger,
	}
}

// Next returns the next ticket number
func (r *SequenceRepository) Next(ctx context.Context) (string, error) {
	query := `
		INSERT INTO ticket_sequences (name, next_value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			next_value = next_value + 1,
			updated_at = CURRENT_TIMESTAMP
		RETURNING next_value
	`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, r.sequenceName(), r.start).Scan(&n); err != nil {
		r.logger.Error("Failed to advance ticket sequence", zap.String("prefix", r.prefix), zap.Error(err))
		return "", fmt.Errorf("failed to advance ticket sequence: %w", err)
	}

	return fmt.Sprintf("%s%d", r.prefix, n), nil
}

func (r *SequenceRepository) sequenceName() string {
	return "ticket:" + r.prefix
}

// Verify interface compliance
var _ port.TicketIDGenerator = (*SequenceRepository)(nil)
